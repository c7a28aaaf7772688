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

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/config"
	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/infra/memory"
	pgstore "studyquiz-service/internal/infra/postgres"
	redisstore "studyquiz-service/internal/infra/redis"
	transport "studyquiz-service/internal/transport/http"
)

const devJWTSecret = "dev-secret-change-me"

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

// quizCatalog is a quiz repository that can drop cached definitions.
type quizCatalog interface {
	app.QuizRepository
	app.QuizCacheInvalidator
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source app.QuizCatalog = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		source = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes quizCatalog
	if redisClient != nil {
		quizzes = redisstore.NewQuizRepository(redisClient, source, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(source, quizTTL)
	}

	store, err := attemptStore(cfg.LedgerBackend(), pool, redisClient)
	if err != nil {
		return err
	}
	log.Printf("attempt ledger backend: %s", cfg.LedgerBackend())

	// guest attempts never outlive the process and expire after guestTTL
	guests := memory.NewScratchAttemptStore(config.TTLDuration(cfg.Ledger.GuestTTL, 2*time.Hour))
	ledger := app.NewLedger(store, guests, quizzes)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Printf("auth.jwtSecret not configured, using the development secret")
		secret = devJWTSecret
	}

	router := transport.NewRouter(transport.Services{
		Attempts:   app.NewAttemptService(ledger, quizzes),
		Authoring:  app.NewAuthoringService(source, quizzes),
		Statistics: app.NewStatistics(ledger, quizzes),
	}, transport.NewAuthenticator(secret))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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
	return server.Shutdown(shutdownCtx)
}

func attemptStore(backend string, pool *pgxpool.Pool, client *redis.Client) (app.AttemptStore, error) {
	switch backend {
	case config.BackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("ledger backend postgres requires postgres.url")
		}
		return pgstore.NewAttemptStore(pool), nil
	case config.BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("ledger backend redis requires redis.addr")
		}
		return redisstore.NewAttemptStore(client), nil
	default:
		return memory.NewAttemptStore(), nil
	}
}

// sampleQuizzes seeds the in-memory catalog when no database is configured.
func sampleQuizzes() map[string]domain.QuizDefinition {
	maxAttempts := 3
	passingScore := 2.0
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Arithmetic warm-up",
			Subject:          "Math",
			Difficulty:       domain.DifficultyEasy,
			Visibility:       domain.VisibilityPublic,
			EstimatedMinutes: 5,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Type: domain.QuestionMultipleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
				},
				{
					ID:   "q2",
					Text: "Zero is an even number.",
					Type: domain.QuestionTrueFalse,
					Options: []domain.Option{
						{ID: "t", Text: "True", Correct: true},
						{ID: "f", Text: "False", Correct: false},
					},
				},
				{
					ID:   "q3",
					Text: "Spell the number 7.",
					Type: domain.QuestionShortAnswer,
					Options: []domain.Option{
						{ID: "a1", Text: "seven", Correct: true},
					},
				},
			},
			Settings: domain.Settings{
				RandomizeQuestions: true,
				RandomizeOptions:   true,
				ShowCorrectAnswers: true,
				MaxAttempts:        &maxAttempts,
				PassingScore:       &passingScore,
			},
		},
	}
}
