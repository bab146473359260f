package in

import (
	"context"

	"inbox_server/core/domain"
	"inbox_server/core/service/enrich"
)

type InboxService interface {
	RawInbox(ctx context.Context) ([]domain.RawEmail, error)
	EnrichedInbox(ctx context.Context) ([]domain.EmailRecord, error)
	// ActionItems lists enriched records with real action items, in inbox order.
	ActionItems(ctx context.Context) ([]domain.EmailRecord, error)

	Prompts(ctx context.Context) (domain.PromptTemplateSet, error)
	UpdatePrompts(ctx context.Context, prompts domain.PromptTemplateSet) error

	// Categorize runs one enrichment pass over the raw inbox.
	Categorize(ctx context.Context) (*enrich.RunResult, error)

	// Chat runs one agent turn. History is owned by the caller.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ChatRequest selects an email by id or message id; empty means inbox-wide.
type ChatRequest struct {
	Message string        `json:"message"`
	EmailID string        `json:"email_id,omitempty"`
	History []domain.Turn `json:"history,omitempty"`
}

type ChatResponse struct {
	Reply   string        `json:"reply"`
	EmailID string        `json:"email_id,omitempty"`
	History []domain.Turn `json:"history"`
}

type DraftService interface {
	Generate(ctx context.Context, req *DraftRequest) (*domain.Draft, error)
	Save(ctx context.Context, draft *domain.Draft) (*domain.Draft, error)
	List(ctx context.Context) ([]domain.Draft, error)
	Delete(ctx context.Context, id string) error
}

type DraftRequest struct {
	Type           domain.DraftType `json:"type"`
	RelatedEmailID string           `json:"related_email_id,omitempty"`
	Instructions   string           `json:"instructions"`
}
