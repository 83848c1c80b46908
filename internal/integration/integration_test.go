package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizlink-service/internal/app"
	"quizlink-service/internal/auth"
	"quizlink-service/internal/domain"
	"quizlink-service/internal/infra/memory"
	"quizlink-service/internal/infra/postgres"
	pgmigrations "quizlink-service/internal/infra/postgres/migrations"
	infraredis "quizlink-service/internal/infra/redis"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	var quizzes app.QuizStore = infraredis.NewShareCodeCache(redisClient, postgres.NewQuizStore(pool), 5*time.Minute)
	sessions := postgres.NewSessionStore(pool)
	grants := postgres.NewGrantStore(pool)

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte("integration-secret"),
		AccessTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	authority := auth.NewAuthority(postgres.NewUserStore(pool), infraredis.NewRefreshStore(redisClient), tokens, 24*time.Hour)

	registry := app.NewRegistry(quizzes, grants, "http://test.local")
	engine := app.NewSessionEngine(sessions, quizzes, grants, memory.NewEventLog())

	owner, err := authority.Register(ctx, "owner@example.com", "ownersecret")
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	taker, err := authority.Register(ctx, "taker@example.com", "takersecret")
	if err != nil {
		t.Fatalf("register taker: %v", err)
	}

	quiz, err := registry.Create(ctx, owner.ID, app.QuizInput{
		Title:           "Arithmetic",
		DurationSeconds: 60,
		Visibility:      domain.VisibilityPublic,
		Questions: []app.QuestionInput{
			{Prompt: "What is 2 + 2?", Choices: []string{"3", "4"}, CorrectChoiceIndex: 1},
			{Prompt: "What is 3 * 3?", Choices: []string{"9", "6"}, CorrectChoiceIndex: 0},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	// Resolve twice: the second hit comes from the Redis cache.
	for i := 0; i < 2; i++ {
		resolved, err := registry.ResolveShareCode(ctx, taker.ID, quiz.ShareCode)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if resolved.ID != quiz.ID {
			t.Fatalf("expected quiz %s, got %s", quiz.ID, resolved.ID)
		}
	}

	session, err := engine.Start(ctx, taker.ID, app.QuizRef{ShareCode: quiz.ShareCode})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	q1, q2 := session.Questions[0], session.Questions[1]
	if _, err := engine.SubmitAnswer(ctx, taker.ID, session.ID, q1.ID, q1.CorrectChoiceID); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	wrong := q2.Choices[0].ID
	if wrong == q2.CorrectChoiceID {
		wrong = q2.Choices[1].ID
	}
	if _, err := engine.SubmitAnswer(ctx, taker.ID, session.ID, q2.ID, wrong); err != nil {
		t.Fatalf("answer q2: %v", err)
	}

	completed, err := engine.Complete(ctx, taker.ID, session.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.State != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", completed.State)
	}
	if completed.Score.Correct != 1 || completed.Score.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", completed.Score)
	}

	// The terminal session survives in Postgres with its frozen score.
	stored, err := sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if stored.State != domain.SessionCompleted || stored.Score == nil || stored.Score.Correct != 1 {
		t.Fatalf("expected persisted completed session, got %+v", stored)
	}
}

func TestRefreshRotationEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte("integration-secret"),
		AccessTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	authority := auth.NewAuthority(postgres.NewUserStore(pool), infraredis.NewRefreshStore(redisClient), tokens, 24*time.Hour)

	if _, err := authority.Register(ctx, "user@example.com", "usersecret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := authority.Issue(ctx, "user@example.com", "usersecret")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := authority.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected rotated refresh token")
	}

	// The consumed token must not rotate twice.
	if _, err := authority.Refresh(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token on reuse, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
