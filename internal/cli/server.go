package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ielts-practice-service/internal/app"
	"ielts-practice-service/internal/config"
	"ielts-practice-service/internal/domain"
	"ielts-practice-service/internal/infra/memory"
	"ielts-practice-service/internal/infra/postgres"
	rediscache "ielts-practice-service/internal/infra/redis"
	"ielts-practice-service/internal/logging"
	transport "ielts-practice-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice test server",
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

	logger, err := logging.New(debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

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
	}

	var (
		store    app.AttemptStore
		catalog  app.Catalog
		profiles app.ProfileStore
	)
	if cfg.Postgres.URL != "" {
		db := postgres.NewDB(cfg.Postgres.URL)
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = postgres.NewAttemptStore(db)
		catalog = postgres.NewCatalog(pool)
		profiles = postgres.NewProfileStore(db)
	} else {
		// Demo mode: everything in memory with a tiny built-in catalog.
		sections, questions := sampleCatalog()
		store = memory.NewAttemptStore()
		catalog = memory.NewCatalog(sections, questions)
		profiles = memory.NewGuestProfileStore()
		logger.Info("no postgres url configured, using in-memory stores")
	}

	if redisClient != nil {
		catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
		catalog = rediscache.NewCatalogCache(redisClient, catalog, catalogTTL)
	}

	attempts := app.NewAttemptService(store, catalog, logger)
	dashboard := app.NewDashboardService(store, catalog, profiles, logger)
	handler := transport.NewHandler(attempts, dashboard, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting practice test service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleCatalog provides one reading part so the service is usable without a
// database.
func sampleCatalog() ([]domain.Section, []domain.Question) {
	sections := []domain.Section{
		{ID: 1, ExamSource: "cambridge", TestNumber: 1, Skill: "reading", PartNumber: 1},
	}
	content := func(prompt string) json.RawMessage {
		raw, _ := json.Marshal(map[string]string{"prompt": prompt})
		return raw
	}
	answer := func(values ...string) json.RawMessage {
		raw, _ := json.Marshal(values)
		return raw
	}
	questions := []domain.Question{
		{ID: 1, SectionID: 1, Number: 1, UID: "r1-q1", Type: "TRUE_FALSE_NOT_GIVEN", Content: content("The survey covered all age groups."), CorrectAnswer: answer("TRUE")},
		{ID: 2, SectionID: 1, Number: 2, UID: "r1-q2", Type: "TRUE_FALSE_NOT_GIVEN", Content: content("Most respondents preferred the morning session."), CorrectAnswer: answer("NOT GIVEN")},
		{ID: 3, SectionID: 1, Number: 3, UID: "r1-q3", Type: "SENTENCE_COMPLETION", Content: content("The study began in the year ____."), CorrectAnswer: answer("1998")},
	}
	return sections, questions
}
