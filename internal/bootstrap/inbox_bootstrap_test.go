package bootstrap

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox_server/config"
	"inbox_server/pkg/apperr"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewDependenciesRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = ""

	_, _, err := NewDependencies(cfg)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeConfigError))
}

func TestNewDependenciesWithoutRedis(t *testing.T) {
	cfg := testConfig(t)

	deps, cleanup, err := NewDependencies(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.Lock)
	assert.Equal(t, cfg.LLMModel, deps.ChatLLM.Model())
	assert.Equal(t, cfg.LLMCategorizeModel, deps.CategorizeLLM.Model())

	prompts, err := deps.InboxService.Prompts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestNewAPIRoutes(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "inbox.json"), []byte(`{"emails":[{"id":"e1","message_id":"m1","sender":"a@example.com"}]}`), 0o644))

	app, cleanup, err := NewAPI(cfg)
	require.NoError(t, err)
	defer cleanup()

	get := func(path string) (int, string) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, _ := get("/health")
	assert.Equal(t, 200, status)

	status, body := get("/api/v1/inbox/raw")
	assert.Equal(t, 200, status)
	assert.True(t, strings.Contains(body, `"message_id":"m1"`), body)

	status, body = get("/api/v1/inbox")
	assert.Equal(t, 200, status)
	assert.True(t, strings.Contains(body, `"total":0`), body)

	status, body = get("/metrics")
	assert.Equal(t, 200, status)
	assert.True(t, strings.Contains(body, "inbox_http_request_duration_seconds"), "metrics exposition")
}

func TestRunCategorizeFailsWithoutRawInbox(t *testing.T) {
	cfg := testConfig(t)

	_, err := RunCategorize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeStoreError))

	_, statErr := os.Stat(filepath.Join(cfg.DataDir, "processed_inbox.json"))
	assert.True(t, os.IsNotExist(statErr))
}
