package inbox

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
	"inbox_server/core/service/enrich"
	"inbox_server/pkg/apperr"
)

type memoryStore struct {
	raw      []domain.RawEmail
	enriched []domain.EmailRecord
	prompts  domain.PromptTemplateSet
	loadErr  error
}

func (m *memoryStore) LoadRawInbox(context.Context) ([]domain.RawEmail, error) { return m.raw, nil }
func (m *memoryStore) LoadPromptTemplates(context.Context) (domain.PromptTemplateSet, error) {
	return m.prompts, nil
}
func (m *memoryStore) SavePromptTemplates(_ context.Context, p domain.PromptTemplateSet) error {
	m.prompts = p
	return nil
}
func (m *memoryStore) LoadEnrichedInbox(context.Context) ([]domain.EmailRecord, error) {
	return m.enriched, m.loadErr
}
func (m *memoryStore) ReplaceEnrichedInbox(_ context.Context, e []domain.EmailRecord) error {
	m.enriched = e
	return nil
}
func (m *memoryStore) LoadDrafts(context.Context) ([]domain.Draft, error)   { return nil, nil }
func (m *memoryStore) AppendDraft(context.Context, domain.Draft) error      { return nil }
func (m *memoryStore) RemoveDraft(context.Context, string) error            { return nil }
func (m *memoryStore) SaveDrafts(context.Context, []domain.Draft) error     { return nil }
func (m *memoryStore) ReplaceDraftsWhere(context.Context, func(domain.Draft) bool, []domain.Draft) error {
	return nil
}

type fakeLLM struct {
	reply  string
	system string
}

func (f *fakeLLM) Complete(_ context.Context, system string, _ []domain.Turn) (string, error) {
	f.system = system
	return f.reply, nil
}

func (f *fakeLLM) CompleteJSON(context.Context, string) (string, error) {
	return `{"category":"Personal","summary":"hi"}`, nil
}

func strPtr(s string) *string { return &s }

func newService(store *memoryStore, llm *fakeLLM) *Service {
	log := zerolog.Nop()
	return NewService(store, enrich.NewService(store, llm, nil, enrich.Config{}, log), agent.NewExecutor(llm, log), log)
}

func TestActionItems(t *testing.T) {
	store := &memoryStore{enriched: []domain.EmailRecord{
		{ID: "e1", ActionItems: strPtr("- send report")},
		{ID: "e2", ActionItems: strPtr(domain.NoActionItems)},
		{ID: "e3"},
		{ID: "e4", ActionItems: strPtr("- book room")},
	}}
	svc := newService(store, &fakeLLM{})

	items, err := svc.ActionItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "e1", items[0].ID)
	assert.Equal(t, "e4", items[1].ID)
}

func TestUpdatePrompts(t *testing.T) {
	store := &memoryStore{}
	svc := newService(store, &fakeLLM{})
	ctx := context.Background()

	err := svc.UpdatePrompts(ctx, domain.PromptTemplateSet{"tone_prompt": "casual"})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))

	want := domain.PromptTemplateSet{domain.PromptAutoReply: "Sign as Sam."}
	require.NoError(t, svc.UpdatePrompts(ctx, want))
	got, err := svc.Prompts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestChatSelectsEmail(t *testing.T) {
	store := &memoryStore{enriched: []domain.EmailRecord{
		{ID: "e1", MessageID: "m1", Sender: "a@example.com", Subject: "Budget", Body: "The budget is approved."},
		{ID: "e2", MessageID: "m2", Sender: "b@example.com", Subject: "Party", Body: "Party on Saturday."},
	}}
	llm := &fakeLLM{reply: "The budget was approved."}
	svc := newService(store, llm)

	resp, err := svc.Chat(context.Background(), &in.ChatRequest{Message: "summarize this", EmailID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "The budget was approved.", resp.Reply)
	assert.Equal(t, "e1", resp.EmailID)
	assert.Len(t, resp.History, 2)
	assert.Contains(t, llm.system, "The budget is approved.")
	assert.NotContains(t, llm.system, "Party on Saturday.")
}

func TestChatErrors(t *testing.T) {
	svc := newService(&memoryStore{}, &fakeLLM{})

	_, err := svc.Chat(context.Background(), &in.ChatRequest{Message: "hi", EmailID: "missing"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	_, err = svc.Chat(context.Background(), nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeBadRequest))

	failing := newService(&memoryStore{loadErr: apperr.StoreFailed("read", "x", errors.New("io"))}, &fakeLLM{})
	_, err = failing.Chat(context.Background(), &in.ChatRequest{Message: "hi"})
	assert.True(t, apperr.IsCode(err, apperr.CodeStoreError))
}

func TestCategorize(t *testing.T) {
	store := &memoryStore{raw: []domain.RawEmail{{ID: "e1", MessageID: "m1", Sender: "a@example.com", Body: "hi"}}}
	svc := newService(store, &fakeLLM{})

	result, err := svc.Categorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, store.enriched, 1)
	assert.Equal(t, domain.CategoryPersonal, *store.enriched[0].Category)
}
