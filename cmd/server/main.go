package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/api"
	"github.com/p-n-ai/pai-quiz/internal/catalog"
	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

// quizStore is a quiz store that can also be seeded from the catalog.
type quizStore interface {
	quiz.Store
	quiz.CatalogWriter
}

// readinessCheck reports whether a backing service is reachable.
type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		store  quizStore
		events quiz.EventLogger = quiz.NopEventLogger{}
		views  quiz.ViewCache   = quiz.NopViewCache{}
		checks []readinessCheck
	)

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.New(ctx, cfg.Database.URL, database.Options{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		pgStore, err := quiz.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		store = pgStore
		events = quiz.NewPostgresEventLogger(db.Pool)
		checks = append(checks, readinessCheck{name: "database", check: db.HealthCheck})
		slog.Info("using postgres storage")
	default:
		store = quiz.NewMemoryStore()
		slog.Info("using in-memory storage")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, serving quiz views uncached", "error", err)
		} else {
			defer c.Close()
			views = quiz.NewRedisViewCache(c, cfg.Quiz.ViewCacheTTL)
			checks = append(checks, readinessCheck{name: "cache", check: c.HealthCheck})
		}
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if err := cat.Apply(ctx, store); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	provider, providerChecks := newQuestionProvider(cfg)
	checks = append(checks, providerChecks...)
	generator := quizgen.New(provider, quizgen.WithTimeout(cfg.Quiz.GenerationTimeout))

	svc, err := quiz.NewService(quiz.Config{
		Store:     store,
		Generator: generator,
		Events:    events,
		Views:     views,
	})
	if err != nil {
		return err
	}

	mux := newMux(checks...)
	api.NewHandler(svc).Register(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newQuestionProvider registers every configured AI provider behind a router.
// It returns nil when none is configured so the generator always falls back.
func newQuestionProvider(cfg *config.Config) (quizgen.Provider, []readinessCheck) {
	if !cfg.HasAIProvider() {
		slog.Warn("no AI provider configured, quizzes will use fallback questions")
		return nil, nil
	}

	var checks []readinessCheck

	router := ai.NewRouter()
	if key := cfg.AI.Google.APIKey; key != "" {
		router.Register("google", ai.NewGoogleProvider(key, ai.WithGoogleModel(cfg.AI.Google.Model)))
	}
	if key := cfg.AI.OpenAI.APIKey; key != "" {
		router.Register("openai", ai.NewOpenAIProvider(key, ai.WithDefaultModel(cfg.AI.OpenAI.Model)))
	}
	if key := cfg.AI.Anthropic.APIKey; key != "" {
		p, err := ai.NewAnthropicProvider(key, ai.WithAnthropicModel(cfg.AI.Anthropic.Model))
		if err != nil {
			slog.Warn("skipping anthropic provider", "error", err)
		} else {
			router.Register("anthropic", p)
		}
	}
	if key := cfg.AI.DeepSeek.APIKey; key != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(key))
	}
	if key := cfg.AI.OpenRouter.APIKey; key != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(key))
	}
	if url := cfg.AI.Ollama.URL; url != "" {
		p := ai.NewOllamaProvider(url, ai.WithOllamaModel(cfg.AI.Ollama.Model))
		router.Register("ollama", p)
		checks = append(checks, readinessCheck{name: "ollama", check: p.HealthCheck})
	}
	return quizgen.NewAIProvider(router), checks
}

// newMux creates the HTTP router with health check endpoints.
func newMux(checks ...readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.name, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "check": c.name})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
