package out

import (
	"context"

	"inbox_server/core/domain"
)

// InboxStore is the flat-file snapshot store the core reads from and writes to.
// Every failure is returned as a STORE_ERROR application error.
type InboxStore interface {
	// LoadRawInbox reads the raw inbox document ({"emails": [...]} or a bare list).
	LoadRawInbox(ctx context.Context) ([]domain.RawEmail, error)

	// LoadPromptTemplates returns the user guidance prompts. A missing document
	// yields an empty set.
	LoadPromptTemplates(ctx context.Context) (domain.PromptTemplateSet, error)
	SavePromptTemplates(ctx context.Context, prompts domain.PromptTemplateSet) error

	// LoadEnrichedInbox returns the last committed enrichment snapshot, empty when
	// no run has committed yet.
	LoadEnrichedInbox(ctx context.Context) ([]domain.EmailRecord, error)
	// ReplaceEnrichedInbox atomically swaps the whole enriched snapshot.
	ReplaceEnrichedInbox(ctx context.Context, emails []domain.EmailRecord) error

	LoadDrafts(ctx context.Context) ([]domain.Draft, error)
	AppendDraft(ctx context.Context, draft domain.Draft) error
	RemoveDraft(ctx context.Context, id string) error
	SaveDrafts(ctx context.Context, drafts []domain.Draft) error
	// ReplaceDraftsWhere keeps the drafts keep accepts, appends add and writes the
	// result, all under one writer lock so concurrent appends are not lost.
	ReplaceDraftsWhere(ctx context.Context, keep func(domain.Draft) bool, add []domain.Draft) error
}

// WriterLock serializes enrichment commits across processes.
type WriterLock interface {
	// Acquire takes the lock or fails with a BUSY application error. The returned
	// function releases it.
	Acquire(ctx context.Context) (release func(), err error)
}
