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
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"llm-quiz-service/internal/app"
	"llm-quiz-service/internal/config"
	"llm-quiz-service/internal/content"
	"llm-quiz-service/internal/infra/csvfile"
	"llm-quiz-service/internal/infra/memory"
	pgstore "llm-quiz-service/internal/infra/postgres"
	redisstore "llm-quiz-service/internal/infra/redis"
	"llm-quiz-service/internal/llm"
	transport "llm-quiz-service/internal/transport/http"
)

const defaultModel = "gpt-3.5-turbo"

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

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	apiKey := cfg.OpenAI.APIKey
	if env := os.Getenv("OPENAI_API_KEY"); env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return fmt.Errorf("openai api key not configured")
	}
	model := cfg.OpenAI.Model
	if model == "" {
		model = defaultModel
	}

	opts := []llm.Option{}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(cfg.OpenAI.Temperature))
	}
	client := llm.New(apiKey, model, opts...)

	passageTTL := config.DurationOr(cfg.Quiz.PassageTTL, 10*time.Minute)
	generator := memory.NewPassageCache(client, passageTTL)

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessionTTL := config.DurationOr(cfg.Redis.TTL, 30*time.Minute)
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var board app.LeaderboardStore
	switch cfg.Leaderboard.Backend {
	case "postgres":
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("postgres backend selected but no url configured")
		}
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		board = pgstore.NewLeaderboardStore(pool)
	case "redis":
		if redisClient == nil {
			return fmt.Errorf("redis backend selected but no addr configured")
		}
		board = redisstore.NewLeaderboardStore(redisClient)
	default:
		path := cfg.Leaderboard.Path
		if path == "" {
			path = "leaderboard.csv"
		}
		board, err = csvfile.New(path)
		if err != nil {
			return err
		}
	}

	service := app.NewQuizService(sessions, generator, content.Extract, board)
	handler := transport.NewHandler(service, cfg.Leaderboard.TopN)
	answerDelay := config.DurationOr(cfg.Quiz.AnswerDelay, 3*time.Second)
	wsHandler := transport.NewWSHandler(service, answerDelay, cfg.Leaderboard.TopN)

	router := transport.NewRouter(handler, wsHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      cors.AllowAll().Handler(router),
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
