// Package draft generates email drafts through the agent and manages the
// drafts document.
package draft

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inbox_server/core/agent"
	"inbox_server/core/agent/prompt"
	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
)

var _ in.DraftService = (*Service)(nil)

type Service struct {
	store out.InboxStore
	agent *agent.Executor
	log   zerolog.Logger
}

func NewService(store out.InboxStore, executor *agent.Executor, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		agent: executor,
		log:   log.With().Str("component", "draft").Logger(),
	}
}

// Generate runs one agent turn with an empty history and parses the reply into
// a draft. The draft is returned unsaved.
func (s *Service) Generate(ctx context.Context, req *in.DraftRequest) (*domain.Draft, error) {
	if req == nil || strings.TrimSpace(req.Instructions) == "" {
		return nil, apperr.MissingField("instructions")
	}

	draftType := req.Type
	switch draftType {
	case "":
		draftType = domain.DraftNew
		if req.RelatedEmailID != "" {
			draftType = domain.DraftReply
		}
	case domain.DraftNew, domain.DraftReply:
	default:
		return nil, apperr.InvalidInput("type", "must be 'new' or 'reply'")
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
	if req.RelatedEmailID != "" {
		selected = domain.FindEmail(emails, req.RelatedEmailID)
		if selected == nil {
			return nil, apperr.NotFound("email " + req.RelatedEmailID)
		}
	} else if draftType == domain.DraftReply {
		return nil, apperr.MissingField("related_email_id")
	}

	result, err := s.agent.ExecuteTurn(ctx, agent.TurnRequest{
		Message:  prompt.BuildDraftInstruction(draftType, req.Instructions),
		Selected: selected,
		Inbox:    emails,
		Prompts:  prompts,
	})
	if err != nil {
		return nil, err
	}

	subject, body := prompt.ParseDraft(result.Reply)
	draft := &domain.Draft{
		Type:    draftType,
		Subject: subject,
		Body:    body,
	}
	if selected != nil {
		id := selected.ID
		draft.RelatedEmailID = &id
	}
	return draft, nil
}

// Save assigns an id and the saved status and appends the draft.
func (s *Service) Save(ctx context.Context, draft *domain.Draft) (*domain.Draft, error) {
	if draft == nil {
		return nil, apperr.BadRequest("draft is required")
	}
	if strings.TrimSpace(draft.Subject) == "" && strings.TrimSpace(draft.Body) == "" {
		return nil, apperr.MissingField("body")
	}
	if draft.Type == "" {
		draft.Type = domain.DraftNew
	}
	if draft.Type != domain.DraftNew && draft.Type != domain.DraftReply {
		return nil, apperr.InvalidInput("type", "must be 'new' or 'reply'")
	}

	saved := *draft
	saved.ID = uuid.NewString()
	saved.Status = domain.DraftStatusSaved

	if err := s.store.AppendDraft(ctx, saved); err != nil {
		return nil, err
	}
	s.log.Info().Str("draft_id", saved.ID).Str("type", string(saved.Type)).Msg("draft saved")
	return &saved, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Draft, error) {
	return s.store.LoadDrafts(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.MissingField("id")
	}
	return s.store.RemoveDraft(ctx, id)
}
