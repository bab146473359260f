package draft

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox_server/core/agent"
	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/pkg/apperr"
)

type memoryStore struct {
	enriched []domain.EmailRecord
	prompts  domain.PromptTemplateSet
	drafts   []domain.Draft
}

func (m *memoryStore) LoadRawInbox(context.Context) ([]domain.RawEmail, error) { return nil, nil }
func (m *memoryStore) LoadPromptTemplates(context.Context) (domain.PromptTemplateSet, error) {
	return m.prompts, nil
}
func (m *memoryStore) SavePromptTemplates(context.Context, domain.PromptTemplateSet) error {
	return nil
}
func (m *memoryStore) LoadEnrichedInbox(context.Context) ([]domain.EmailRecord, error) {
	return m.enriched, nil
}
func (m *memoryStore) ReplaceEnrichedInbox(context.Context, []domain.EmailRecord) error { return nil }
func (m *memoryStore) LoadDrafts(context.Context) ([]domain.Draft, error)             { return m.drafts, nil }
func (m *memoryStore) AppendDraft(_ context.Context, d domain.Draft) error {
	m.drafts = append(m.drafts, d)
	return nil
}
func (m *memoryStore) RemoveDraft(_ context.Context, id string) error {
	for i, d := range m.drafts {
		if d.ID == id {
			m.drafts = append(m.drafts[:i], m.drafts[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("draft")
}
func (m *memoryStore) SaveDrafts(_ context.Context, d []domain.Draft) error {
	m.drafts = d
	return nil
}
func (m *memoryStore) ReplaceDraftsWhere(_ context.Context, keep func(domain.Draft) bool, add []domain.Draft) error {
	kept := m.drafts[:0]
	for _, d := range m.drafts {
		if keep(d) {
			kept = append(kept, d)
		}
	}
	m.drafts = append(kept, add...)
	return nil
}

type fakeLLM struct {
	reply  string
	err    error
	system string
	turns  []domain.Turn
}

func (f *fakeLLM) Complete(_ context.Context, system string, turns []domain.Turn) (string, error) {
	f.system = system
	f.turns = turns
	return f.reply, f.err
}

func (f *fakeLLM) CompleteJSON(context.Context, string) (string, error) { return "", nil }

func newService(store *memoryStore, llm *fakeLLM) *Service {
	return NewService(store, agent.NewExecutor(llm, zerolog.Nop()), zerolog.Nop())
}

func inbox() []domain.EmailRecord {
	return []domain.EmailRecord{
		{ID: "e1", MessageID: "m1", Sender: "alice@example.com", Subject: "Sync tomorrow?", Body: "Can we meet at 10?"},
	}
}

func TestGenerateReplyDraft(t *testing.T) {
	store := &memoryStore{enriched: inbox()}
	llm := &fakeLLM{reply: "Subject: Re: Sync tomorrow?\n\nHi Alice,\n\n10 works.\n\nBest,\nSam"}
	svc := newService(store, llm)

	draft, err := svc.Generate(context.Background(), &in.DraftRequest{
		RelatedEmailID: "m1",
		Instructions:   "accept",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DraftReply, draft.Type)
	assert.Equal(t, "Re: Sync tomorrow?", draft.Subject)
	assert.Equal(t, "Hi Alice,\n\n10 works.\n\nBest,\nSam", draft.Body)
	require.NotNil(t, draft.RelatedEmailID)
	assert.Equal(t, "e1", *draft.RelatedEmailID)
	assert.Empty(t, draft.ID)

	assert.Contains(t, llm.system, "Can we meet at 10?")
	require.Len(t, llm.turns, 1)
	assert.Contains(t, llm.turns[0].Content, "This is a reply.")
	assert.Contains(t, llm.turns[0].Content, "Instructions: accept")
}

func TestGenerateNewDraftWithoutSubject(t *testing.T) {
	svc := newService(&memoryStore{enriched: inbox()}, &fakeLLM{reply: "Hello team, lunch on Friday?"})

	draft, err := svc.Generate(context.Background(), &in.DraftRequest{Type: domain.DraftNew, Instructions: "invite the team"})
	require.NoError(t, err)
	assert.Equal(t, domain.DraftNew, draft.Type)
	assert.Equal(t, "Draft Subject", draft.Subject)
	assert.Equal(t, "Hello team, lunch on Friday?", draft.Body)
	assert.Nil(t, draft.RelatedEmailID)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *in.DraftRequest
		llm  *fakeLLM
		code string
	}{
		{"empty instructions", &in.DraftRequest{Instructions: "  "}, &fakeLLM{}, apperr.CodeValidationFailed},
		{"bad type", &in.DraftRequest{Type: "forward", Instructions: "x"}, &fakeLLM{}, apperr.CodeValidationFailed},
		{"unknown email", &in.DraftRequest{RelatedEmailID: "nope", Instructions: "x"}, &fakeLLM{}, apperr.CodeNotFound},
		{"reply without email", &in.DraftRequest{Type: domain.DraftReply, Instructions: "x"}, &fakeLLM{}, apperr.CodeValidationFailed},
		{"model failure", &in.DraftRequest{Instructions: "x"}, &fakeLLM{err: errors.New("down")}, apperr.CodeAgentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&memoryStore{enriched: inbox()}, tt.llm)
			_, err := svc.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSaveListDelete(t *testing.T) {
	store := &memoryStore{}
	svc := newService(store, &fakeLLM{})
	ctx := context.Background()

	saved, err := svc.Save(ctx, &domain.Draft{Subject: "Hello", Body: "Hi there", Status: "whatever"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, domain.DraftStatusSaved, saved.Status)
	assert.Equal(t, domain.DraftNew, saved.Type)

	drafts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, saved.ID, drafts[0].ID)

	require.NoError(t, svc.Delete(ctx, saved.ID))
	assert.True(t, apperr.IsCode(svc.Delete(ctx, saved.ID), apperr.CodeNotFound))

	_, err = svc.Save(ctx, &domain.Draft{})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}
