package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"quizz-service/internal/app"
	"quizz-service/internal/config"
	"quizz-service/internal/domain"
	"quizz-service/internal/infra/memory"
	"quizz-service/internal/infra/postgres"
	rediscache "quizz-service/internal/infra/redis"
)

type entityStore interface {
	app.Store
	app.Catalog
	memory.QuizLoader
}

// backend is the storage selected by the configuration.
type backend struct {
	store   entityStore
	quizzes app.QuizRepository
	close   func()
}

// openBackend connects Postgres and Redis when configured. Without Postgres the
// in-memory store is used, seeded with a sample sending.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{close: func() {}}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.store = postgres.NewStore(pool)
		b.close = pool.Close
	} else {
		store := memory.NewStore()
		token, err := seedSample(ctx, store, time.Now())
		if err != nil {
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
		glog.Infof("no postgres configured, serving in-memory sample sending %s", token)
		b.store = store
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeStore := b.close
		b.close = func() {
			_ = client.Close()
			closeStore()
		}
		b.quizzes = rediscache.NewQuizRepository(client, b.store, quizTTL)
	} else {
		b.quizzes = memory.NewQuizRepository(b.store, quizTTL)
	}
	return b, nil
}

// seedSample provides a minimal quiz sent to one student; swap the memory
// store for Postgres in production.
func seedSample(ctx context.Context, c app.Catalog, now time.Time) (string, error) {
	sum, err := domain.NewQuestion("What is 2 + 2?", []string{"3", "4", "5"}, 1)
	if err != nil {
		return "", err
	}
	primes, err := domain.NewQuestion("Which numbers are prime?", []string{"2", "4", "7", "9"}, 0, 2)
	if err != nil {
		return "", err
	}
	quiz, err := c.CreateQuiz(ctx, domain.NewQuiz("Sample quiz", true,
		sum, primes, domain.NewSelfEvaluationQuestion("I can add two numbers")))
	if err != nil {
		return "", err
	}
	group, _, err := app.Enroll(ctx, c, "Sample group", "student@example.com")
	if err != nil {
		return "", err
	}
	sending := domain.NewSending(quiz.ID, group.ID, now)
	sending.Started = true
	sending, err = c.CreateSending(ctx, sending)
	if err != nil {
		return "", err
	}
	return sending.DateToken(), nil
}
