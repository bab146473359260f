package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/core/service/enrich"
	"inbox_server/infra/middleware"
	"inbox_server/internal/session"
	"inbox_server/pkg/apperr"
)

type fakeInboxService struct {
	mu       sync.Mutex
	enriched []domain.EmailRecord
	prompts  domain.PromptTemplateSet
	chatErr  error
	chats    []*in.ChatRequest
	runErr   error
}

func (f *fakeInboxService) RawInbox(context.Context) ([]domain.RawEmail, error) {
	return []domain.RawEmail{{ID: "e1", MessageID: "m1", Sender: "a@example.com"}}, nil
}

func (f *fakeInboxService) EnrichedInbox(context.Context) ([]domain.EmailRecord, error) {
	return f.enriched, nil
}

func (f *fakeInboxService) ActionItems(context.Context) ([]domain.EmailRecord, error) {
	return domain.ActionItemEmails(f.enriched), nil
}

func (f *fakeInboxService) Prompts(context.Context) (domain.PromptTemplateSet, error) {
	return f.prompts, nil
}

func (f *fakeInboxService) UpdatePrompts(_ context.Context, p domain.PromptTemplateSet) error {
	f.prompts = p
	return nil
}

func (f *fakeInboxService) Categorize(context.Context) (*enrich.RunResult, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &enrich.RunResult{Processed: len(f.enriched)}, nil
}

func (f *fakeInboxService) Chat(_ context.Context, req *in.ChatRequest) (*in.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	reply := "reply to " + req.Message
	history := append(append([]domain.Turn(nil), req.History...),
		domain.Turn{Role: domain.RoleUser, Content: req.Message},
		domain.Turn{Role: domain.RoleAssistant, Content: reply},
	)
	return &in.ChatResponse{Reply: reply, EmailID: req.EmailID, History: history}, nil
}

type fakeDraftService struct {
	saved []domain.Draft
}

func (f *fakeDraftService) Generate(_ context.Context, req *in.DraftRequest) (*domain.Draft, error) {
	if strings.TrimSpace(req.Instructions) == "" {
		return nil, apperr.MissingField("instructions")
	}
	return &domain.Draft{Type: domain.DraftNew, Subject: "Hello", Body: req.Instructions}, nil
}

func (f *fakeDraftService) Save(_ context.Context, d *domain.Draft) (*domain.Draft, error) {
	saved := *d
	saved.ID = "d1"
	saved.Status = domain.DraftStatusSaved
	f.saved = append(f.saved, saved)
	return &saved, nil
}

func (f *fakeDraftService) List(context.Context) ([]domain.Draft, error) { return f.saved, nil }

func (f *fakeDraftService) Delete(_ context.Context, id string) error {
	if id != "d1" {
		return apperr.NotFound("draft")
	}
	return nil
}

func newTestApp(t *testing.T, inbox *fakeInboxService, drafts *fakeDraftService) (*fiber.App, *session.Manager) {
	t.Helper()
	sessions := session.NewManager()
	t.Cleanup(sessions.Stop)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())

	pass := func(c *fiber.Ctx) error { return c.Next() }
	api := app.Group("/api/v1")
	NewInboxHandler(inbox).Register(api, pass)
	NewAgentHandler(inbox, sessions).Register(api, pass)
	NewDraftHandler(drafts).Register(api, pass)
	NewHealthHandler(nil).Register(app)
	return app, sessions
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, APIResponse, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope APIResponse
	var data map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
		if m, ok := envelope.Data.(map[string]any); ok {
			data = m
		}
	}
	return resp.StatusCode, envelope, data
}

func sampleEnriched() []domain.EmailRecord {
	todo := domain.CategoryToDo
	personal := domain.CategoryPersonal
	items := "- send report"
	return []domain.EmailRecord{
		{ID: "e1", MessageID: "m1", Sender: "a@example.com", Category: &todo, ActionItems: &items},
		{ID: "e2", MessageID: "m2", Sender: "b@example.com", Category: &personal},
	}
}

func TestInboxRoutes(t *testing.T) {
	app, _ := newTestApp(t, &fakeInboxService{enriched: sampleEnriched()}, &fakeDraftService{})

	status, env, data := doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.EqualValues(t, 2, data["total"])

	_, _, data = doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox?category=Personal", "")
	assert.EqualValues(t, 1, data["total"])

	_, _, data = doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox/action-items", "")
	assert.EqualValues(t, 1, data["total"])

	_, _, data = doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox/raw", "")
	assert.EqualValues(t, 1, data["total"])

	status, _, data = doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox/m2", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "e2", data["id"])

	status, env, _ = doJSON(t, app, nethttp.MethodGet, "/api/v1/inbox/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestCategorizeErrorEnvelope(t *testing.T) {
	runErr := apperr.PipelineFailed(2, "m3", apperr.MissingField("summary"))
	app, _ := newTestApp(t, &fakeInboxService{runErr: runErr}, &fakeDraftService{})

	status, env, _ := doJSON(t, app, nethttp.MethodPost, "/api/v1/inbox/categorize", "")
	assert.Equal(t, fiber.StatusBadGateway, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperr.CodePipelineFailed, env.Error.Code)
	assert.EqualValues(t, 2, env.Error.Details["index"])
	assert.Equal(t, "m3", env.Error.Details["message_id"])
}

func TestPromptsRoundTrip(t *testing.T) {
	svc := &fakeInboxService{}
	app, _ := newTestApp(t, svc, &fakeDraftService{})

	status, _, _ := doJSON(t, app, nethttp.MethodPut, "/api/v1/prompts", `{"auto_reply_prompt":"Sign as Sam."}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Sign as Sam.", svc.prompts[domain.PromptAutoReply])

	status, env, _ := doJSON(t, app, nethttp.MethodPut, "/api/v1/prompts", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeBadRequest, env.Error.Code)
}

func TestChatSessionKeepsHistory(t *testing.T) {
	svc := &fakeInboxService{}
	app, sessions := newTestApp(t, svc, &fakeDraftService{})

	status, _, data := doJSON(t, app, nethttp.MethodPost, "/api/v1/agent/chat", `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "s1", data["session_id"])
	assert.Equal(t, "reply to hi", data["reply"])

	_, _, data = doJSON(t, app, nethttp.MethodPost, "/api/v1/agent/chat", `{"session_id":"s1","message":"and then?","email_id":"m1"}`)
	assert.Len(t, data["history"], 4)
	require.Len(t, svc.chats, 2)
	assert.Len(t, svc.chats[1].History, 2)
	assert.Equal(t, "m1", svc.chats[1].EmailID)

	svc.chatErr = apperr.AgentFailed(errors.New("model down"))
	status, env, _ := doJSON(t, app, nethttp.MethodPost, "/api/v1/agent/chat", `{"session_id":"s1","message":"again"}`)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, apperr.CodeAgentFailed, env.Error.Code)
	assert.Len(t, sessions.Get("s1").History(), 4)

	status, _, _ = doJSON(t, app, nethttp.MethodDelete, "/api/v1/agent/sessions/s1", "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _, _ = doJSON(t, app, nethttp.MethodDelete, "/api/v1/agent/sessions/s1", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestChatStatelessHistory(t *testing.T) {
	svc := &fakeInboxService{}
	app, sessions := newTestApp(t, svc, &fakeDraftService{})

	body := `{"message":"next","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	status, _, data := doJSON(t, app, nethttp.MethodPost, "/api/v1/agent/chat", body)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, data["history"], 4)
	assert.Nil(t, data["session_id"])
	assert.Equal(t, 0, sessions.Count())
}

func TestChatRequiresMessage(t *testing.T) {
	app, _ := newTestApp(t, &fakeInboxService{}, &fakeDraftService{})

	status, env, _ := doJSON(t, app, nethttp.MethodPost, "/api/v1/agent/chat", `{"session_id":"s1","message":"  "}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, apperr.CodeValidationFailed, env.Error.Code)
}

func TestDraftRoutes(t *testing.T) {
	drafts := &fakeDraftService{}
	app, _ := newTestApp(t, &fakeInboxService{}, drafts)

	status, _, data := doJSON(t, app, nethttp.MethodPost, "/api/v1/drafts/generate", `{"type":"new","instructions":"invite the team"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Hello", data["subject"])

	status, _, _ = doJSON(t, app, nethttp.MethodPost, "/api/v1/drafts/generate", `{"instructions":""}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _, data = doJSON(t, app, nethttp.MethodPost, "/api/v1/drafts", `{"type":"new","subject":"Hello","body":"Hi"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "d1", data["id"])

	_, _, data = doJSON(t, app, nethttp.MethodGet, "/api/v1/drafts?status=saved", "")
	assert.EqualValues(t, 1, data["total"])

	status, _, _ = doJSON(t, app, nethttp.MethodDelete, "/api/v1/drafts/d1", "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _, _ = doJSON(t, app, nethttp.MethodDelete, "/api/v1/drafts/zzz", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, &fakeInboxService{}, &fakeDraftService{})

	req := httptest.NewRequest(nethttp.MethodGet, "/ready", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
