package bootstrap

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"inbox_server/adapter/in/http"
	"inbox_server/config"
	"inbox_server/infra/middleware"
	"inbox_server/pkg/logger"
	"inbox_server/pkg/metrics"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		l := logger.WithError(err)
		l.Error().Msg("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		// go-json for every request and response body
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    4 * 1024 * 1024, // 4MB
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())         // 1. Panic recovery
	app.Use(middleware.RequestID())       // 2. Request ID
	app.Use(middleware.SecurityHeaders()) // 3. Security headers
	app.Use(middleware.RequestLogger())   // 4. Request logging
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check
	var healthHandler *http.HealthHandler
	if deps.Lock != nil {
		healthHandler = http.NewHealthHandler(deps.Lock)
	} else {
		healthHandler = http.NewHealthHandler(nil)
	}
	healthHandler.Register(app)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Model-backed endpoints share one per-IP budget
	limiter := middleware.NewRateLimiter(cfg.ModelRateLimitPerMin, time.Minute)
	limit := limiter.Handler()

	api := app.Group("/api/v1")

	http.NewInboxHandler(deps.InboxService).Register(api, limit)
	http.NewAgentHandler(deps.InboxService, deps.Sessions).Register(api, limit)
	http.NewDraftHandler(deps.DraftService).Register(api, limit)

	logger.Info("API server initialized successfully")

	return app, func() {
		limiter.Stop()
		cleanup()
	}, nil
}
