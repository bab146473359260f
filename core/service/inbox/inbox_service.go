// Package inbox serves reads over the stored documents and routes chat turns to
// the agent with the right email context.
package inbox

import (
	"context"

	"github.com/rs/zerolog"

	"inbox_server/core/agent"
	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/core/port/out"
	"inbox_server/core/service/enrich"
	"inbox_server/pkg/apperr"
)

var _ in.InboxService = (*Service)(nil)

type Service struct {
	store    out.InboxStore
	pipeline *enrich.Service
	agent    *agent.Executor
	log      zerolog.Logger
}

func NewService(store out.InboxStore, pipeline *enrich.Service, executor *agent.Executor, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		pipeline: pipeline,
		agent:    executor,
		log:      log.With().Str("component", "inbox").Logger(),
	}
}

func (s *Service) RawInbox(ctx context.Context) ([]domain.RawEmail, error) {
	return s.store.LoadRawInbox(ctx)
}

func (s *Service) EnrichedInbox(ctx context.Context) ([]domain.EmailRecord, error) {
	return s.store.LoadEnrichedInbox(ctx)
}

func (s *Service) ActionItems(ctx context.Context) ([]domain.EmailRecord, error) {
	emails, err := s.store.LoadEnrichedInbox(ctx)
	if err != nil {
		return nil, err
	}
	return domain.ActionItemEmails(emails), nil
}

func (s *Service) Prompts(ctx context.Context) (domain.PromptTemplateSet, error) {
	return s.store.LoadPromptTemplates(ctx)
}

// UpdatePrompts accepts only the known guidance slots.
func (s *Service) UpdatePrompts(ctx context.Context, prompts domain.PromptTemplateSet) error {
	for slot := range prompts {
		switch slot {
		case domain.PromptCategorization, domain.PromptActionItem, domain.PromptAutoReply:
		default:
			return apperr.InvalidInput(slot, "unknown prompt slot")
		}
	}
	if err := s.store.SavePromptTemplates(ctx, prompts); err != nil {
		return err
	}
	s.log.Info().Int("slots", len(prompts)).Msg("prompt templates updated")
	return nil
}

func (s *Service) Categorize(ctx context.Context) (*enrich.RunResult, error) {
	return s.pipeline.Run(ctx)
}

// Chat resolves the selected email from the enriched inbox and runs one turn.
func (s *Service) Chat(ctx context.Context, req *in.ChatRequest) (*in.ChatResponse, error) {
	if req == nil {
		return nil, apperr.BadRequest("chat request is required")
	}

	emails, err := s.store.LoadEnrichedInbox(ctx)
	if err != nil {
		return nil, err
	}
	prompts, err := s.store.LoadPromptTemplates(ctx)
	if err != nil {
		return nil, err
	}

	var selected *domain.EmailRecord
	if req.EmailID != "" {
		selected = domain.FindEmail(emails, req.EmailID)
		if selected == nil {
			return nil, apperr.NotFound("email " + req.EmailID)
		}
	}

	result, err := s.agent.ExecuteTurn(ctx, agent.TurnRequest{
		History:  req.History,
		Message:  req.Message,
		Selected: selected,
		Inbox:    emails,
		Prompts:  prompts,
	})
	if err != nil {
		return nil, err
	}

	resp := &in.ChatResponse{Reply: result.Reply, History: result.History}
	if selected != nil {
		resp.EmailID = selected.ID
	}
	return resp, nil
}
