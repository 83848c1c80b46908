package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizlink-service/internal/app"
	"quizlink-service/internal/auth"
	"quizlink-service/internal/config"
	"quizlink-service/internal/domain"
	"quizlink-service/internal/extract"
	infraamqp "quizlink-service/internal/infra/amqp"
	"quizlink-service/internal/infra/memory"
	"quizlink-service/internal/infra/postgres"
	infraredis "quizlink-service/internal/infra/redis"
	transport "quizlink-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort
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

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		quizzes  app.QuizStore
		sessions app.SessionStore
		grants   app.GrantStore
		jobs     app.JobStore
		users    auth.UserStore
		refresh  auth.RefreshStore
	)
	if pool != nil {
		quizzes = postgres.NewQuizStore(pool)
		sessions = postgres.NewSessionStore(pool)
		grants = postgres.NewGrantStore(pool)
		jobs = postgres.NewJobStore(pool)
		users = postgres.NewUserStore(pool)
	} else {
		quizzes = memory.NewQuizStore()
		sessions = memory.NewSessionStore()
		grants = memory.NewGrantStore()
		jobs = memory.NewJobStore()
		users = memory.NewUserStore()
	}
	if redisClient != nil {
		refresh = infraredis.NewRefreshStore(redisClient)
		quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
		quizzes = infraredis.NewShareCodeCache(redisClient, quizzes, quizTTL)
	} else {
		refresh = memory.NewRefreshStore()
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte(cfg.Auth.Secret),
		Issuer:    cfg.Auth.Issuer,
		AccessTTL: config.TTLDuration(cfg.Auth.AccessTTL, 15*time.Minute),
		Leeway:    config.TTLDuration(cfg.Auth.Leeway, 0),
	})
	if err != nil {
		return err
	}
	authority := auth.NewAuthority(users, refresh, tokens, config.TTLDuration(cfg.Auth.RefreshTTL, 7*24*time.Hour))

	var events app.EventPublisher = memory.NewEventLog()
	if cfg.AMQP.URL != "" {
		exchange := cfg.AMQP.Exchange
		if exchange == "" {
			exchange = "quizlink.events"
		}
		publisher, err := infraamqp.NewPublisher(cfg.AMQP.URL, exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		events = publisher
	}

	var extractor app.Extractor = disabledExtractor{}
	if cfg.Ingestion.ExtractorURL != "" {
		extractor = extract.NewClient(cfg.Ingestion.ExtractorURL, cfg.Ingestion.APIKey,
			config.TTLDuration(cfg.Ingestion.Timeout, time.Minute))
	}

	registry := app.NewRegistry(quizzes, grants, baseURL)
	engine := app.NewSessionEngine(sessions, quizzes, grants, events)
	pipeline := app.NewIngestionPipeline(jobs, quizzes, extractor, events,
		cfg.Ingestion.Workers, config.TTLDuration(cfg.Ingestion.Timeout, time.Minute))

	api := transport.NewAPI(authority, registry, engine, pipeline)
	wsHandler := transport.NewWSHandler(engine, authority)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizlink service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Let queued extractions write their terminal state before the stores go away.
	pipeline.Wait()
	return nil
}

// disabledExtractor stands in when no extraction service is configured;
// submitted jobs fail with an upstream error instead of hanging.
type disabledExtractor struct{}

func (disabledExtractor) Extract(context.Context, string) ([]domain.ExtractedQuestion, error) {
	return nil, domain.ErrExtractorUnavailable
}
