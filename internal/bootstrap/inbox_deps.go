package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"inbox_server/adapter/out/persistence"
	"inbox_server/config"
	"inbox_server/core/agent"
	"inbox_server/core/agent/llm"
	"inbox_server/core/port/out"
	"inbox_server/core/service/draft"
	"inbox_server/core/service/enrich"
	"inbox_server/core/service/inbox"
	"inbox_server/infra/database"
	"inbox_server/internal/session"
	"inbox_server/pkg/cache"
	"inbox_server/pkg/logger"
	"inbox_server/pkg/resilience"
)

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	Redis *redis.Client    // nil when REDIS_URL is unset or unreachable
	Lock  *cache.RedisLock // nil without Redis
	Store *persistence.FileStore

	// Categorization runs deterministic; chat and drafting use the configured temperature.
	ChatLLM       *llm.Client
	CategorizeLLM *llm.Client

	Executor     *agent.Executor
	Enricher     *enrich.Service
	InboxService *inbox.Service
	DraftService *draft.Service
	Sessions     *session.Manager
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "inbox",
	})
	log := logger.Default()

	deps := &Dependencies{Config: cfg, Log: log}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Snapshot store
	store, err := persistence.NewFileStore(persistence.FileStoreConfig{
		Dir:           cfg.DataDir,
		InboxFile:     cfg.InboxFile,
		ProcessedFile: cfg.ProcessedFile,
		PromptsFile:   cfg.PromptsFile,
		DraftsFile:    cfg.DraftsFile,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	deps.Store = store

	// Redis (optional)
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, enrichment runs are serialized in-process only")
		} else {
			deps.Redis = client
			deps.Lock = cache.NewRedisLock(client, cache.DefaultLockKey, cfg.RedisLockTTL(), log)
			cleanups = append(cleanups, func() { client.Close() })
			log.Info().Msg("Redis writer lock enabled")
		}
	}

	// Model clients
	deps.ChatLLM = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout(),
		Retry:       retryPolicy(cfg.LLMMaxRetries),
		Logger:      log,

		RequestsPerSecond: cfg.LLMRequestsPerSec,
		Burst:             cfg.LLMBurst,
		MaxConcurrent:     cfg.EnrichConcurrency,
	})
	deps.CategorizeLLM = deps.ChatLLM.WithModel(cfg.LLMCategorizeModel, cfg.LLMCategorizeTemperature)

	// Core services
	var lock out.WriterLock
	if deps.Lock != nil {
		lock = deps.Lock
	}
	deps.Executor = agent.NewExecutor(deps.ChatLLM, log)
	deps.Enricher = enrich.NewService(store, deps.CategorizeLLM, lock, enrich.Config{
		Concurrency:     cfg.EnrichConcurrency,
		AutoReplyDrafts: cfg.AutoReplyDrafts,
	}, log)
	deps.InboxService = inbox.NewService(store, deps.Enricher, deps.Executor, log)
	deps.DraftService = draft.NewService(store, deps.Executor, log)

	// Chat sessions
	deps.Sessions = session.NewManagerWithTTL(cfg.SessionTTL(), cfg.SessionMaxTurns)
	cleanups = append(cleanups, deps.Sessions.Stop)

	log.Info().
		Str("model", deps.ChatLLM.Model()).
		Str("categorize_model", deps.CategorizeLLM.Model()).
		Str("data_dir", cfg.DataDir).
		Int("concurrency", cfg.EnrichConcurrency).
		Msg("dependencies initialized")

	return deps, cleanup, nil
}

func retryPolicy(maxAttempts int) resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}
	return policy
}
