package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"medical-triage-agent/internal/agent"
	"medical-triage-agent/internal/config"
	"medical-triage-agent/internal/platform/logging"
	"medical-triage-agent/internal/platform/smartwatch"
	"medical-triage-agent/internal/platform/telegram"
	"medical-triage-agent/internal/report"
	"medical-triage-agent/internal/triage"
)

func main() {
	cfg := config.Load()
	logging.Init("medical-triage-agent", cfg.App.Environment)

	store := buildStore(cfg)
	model := buildModelClient(cfg)
	if model == nil {
		log.Warn().Msg("no model API key configured, triage endpoints will answer 503")
	}

	var reportSvc *report.Service
	if cfg.Telegram.BotToken != "" && cfg.Telegram.PhysicianChatID != 0 {
		tgClient := telegram.NewClient(cfg.Telegram.BotToken)
		reportSvc = report.NewService(tgClient, cfg.Telegram.PhysicianChatID)
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN or PHYSICIAN_CHAT_ID not set, physician reports disabled")
	}

	var reportIface triage.ReportService
	var rendererIface triage.RecordRenderer
	if reportSvc != nil {
		reportIface = reportSvc
		rendererIface = reportSvc
	}

	svc := triage.NewService(store, model, smartwatch.NewClient(), reportIface)
	handler := triage.NewHandler(svc, rendererIface)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the patient/physician frontends
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		triage.RegisterRoutes(r, handler)
	})

	addr := ":" + cfg.App.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func buildStore(cfg *config.Config) triage.Store {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		runMigrations(cfg.Store.DatabaseURL)
		log.Info().Msg("using postgres session store")
		return triage.NewPostgresStore(db)
	case "redis":
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to ping redis")
		}
		log.Info().Msg("using redis session store")
		return triage.NewRedisStore(client)
	default:
		log.Info().Msg("using in-memory session store")
		return triage.NewMemoryStore()
	}
}

func runMigrations(databaseURL string) {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		log.Error().Err(err).Msg("migration init failed")
		return
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Error().Err(err).Msg("migration up failed")
		return
	}
	log.Info().Msg("migrations applied")
}

func buildModelClient(cfg *config.Config) agent.Client {
	switch cfg.Model.Provider {
	case "openai":
		if cfg.Model.OpenAIAPIKey == "" {
			return nil
		}
		log.Info().Str("model", cfg.Model.OpenAIModel).Msg("using openai model client")
		return agent.NewOpenAIClient(cfg.Model.OpenAIAPIKey, cfg.Model.OpenAIModel)
	default:
		if cfg.Model.GeminiAPIKey == "" {
			return nil
		}
		log.Info().Str("model", cfg.Model.GeminiModel).Msg("using gemini model client")
		return agent.NewGeminiClient(cfg.Model.GeminiAPIKey, cfg.Model.GeminiModel)
	}
}
