package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/identity"
	"live-quiz-service/internal/infra/memory"
	pgcatalog "live-quiz-service/internal/infra/postgres"
	rediscatalog "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.GameLoader = memory.NewStaticGameLoader(sampleGames())
	if pool != nil {
		loader = pgcatalog.NewGameLoader(pool)
	}

	gameTTL := config.TTLDuration(cfg.Game.TTL, 10*time.Minute)
	var catalog app.GameCatalog
	if redisClient != nil {
		catalog = rediscatalog.NewGameCatalog(redisClient, loader, gameTTL)
	} else {
		catalog = memory.NewGameCatalog(loader, gameTTL)
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret"
		log.Warn("auth secret not configured, using development default")
	}

	registry := memory.NewSessionRegistry()
	service := app.NewSessionService(registry, catalog, log)
	api := transport.NewAPI(service, identity.NewVerifier(secret), log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting session engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleGames provides minimal demo content; a Postgres-backed catalog
// replaces this loader in production.
func sampleGames() map[string]domain.Game {
	return map[string]domain.Game{
		"game-1": {
			ID:    "game-1",
			Owner: "host-1",
			Questions: []domain.Question{
				{
					Type:   domain.QuestionSingle,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{Text: "3"},
						{Text: "4", Correct: true},
						{Text: "5"},
					},
					TimeLimitSec: 15,
				},
				{
					Type:   domain.QuestionJudgement,
					Prompt: "The sun is a star.",
					Options: []domain.Option{
						{Text: "True", Correct: true},
						{Text: "False"},
					},
					TimeLimitSec: 10,
				},
			},
		},
	}
}
