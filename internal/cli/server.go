package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag-challenge-service/internal/app"
	"flag-challenge-service/internal/config"
	"flag-challenge-service/internal/domain"
	"flag-challenge-service/internal/infra/memory"
	pgstore "flag-challenge-service/internal/infra/postgres"
	rediscache "flag-challenge-service/internal/infra/redis"
	transport "flag-challenge-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daily challenge server",
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

	logger, err := zap.NewProduction()
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

	loc, err := cfg.Location()
	if err != nil {
		return err
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

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, time.Hour)

	var (
		catalog    app.CatalogRepository
		rotation   app.RotationRepository
		challenges app.ChallengeRepository
		attempts   app.AttemptRepository
		stats      app.StatsRepository
	)
	if pool != nil {
		store := pgstore.NewStore(pool)
		rotation = store
		challenges = store
		attempts = store
		stats = store
		if redisClient != nil {
			catalog = rediscache.NewCatalogCache(redisClient, store, catalogTTL)
		} else {
			catalog = memory.NewCatalogCache(store, catalogTTL)
		}
	} else {
		logger.Warn("postgres not configured, using in-memory store with sample catalog")
		mem := memory.NewStore()
		mem.SeedCountries(sampleCountries())
		catalog = mem
		rotation = mem
		challenges = mem
		attempts = mem
		stats = mem
	}

	tier := domain.DefaultTier()
	if cfg.Challenge.Tier != "" && cfg.Challenge.Tier != "default" {
		tier = domain.NamedTier(cfg.Challenge.Tier)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("auth.jwtSecret not configured, using insecure development secret")
		secret = "insecure-dev-secret"
	}

	feed := app.NewCompletionFeed()
	selector := app.NewSelector(catalog, rotation, loc)
	service := app.NewChallengeService(catalog, challenges, attempts, stats, selector, app.ChallengeServiceConfig{
		Timezone:           loc,
		Tier:               tier,
		AlternateOverrides: cfg.Catalog.AlternateOverrides,
		Feed:               feed,
	})
	handler := transport.NewHandler(service, catalog, logger)
	feedHandler := transport.NewFeedHandler(feed, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router([]byte(secret), feedHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting flag challenge service", zap.String("port", finalPort), zap.String("timezone", loc.String()))
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

// sampleCountries provides a small catalog for running without Postgres; load
// the full dataset with the load-countries command in real deployments.
func sampleCountries() []domain.Country {
	return []domain.Country{
		{
			Code: "FRA", Name: "France", FlagEmoji: "🇫🇷",
			FlagSVGURL: "https://flagcdn.com/fr.svg", FlagPNGURL: "https://flagcdn.com/w320/fr.png",
			Capital: "Paris", Region: "Europe", Population: 67391582,
			AlternateNames: []string{"fra", "french republic"},
		},
		{
			Code: "DEU", Name: "Germany", FlagEmoji: "🇩🇪",
			FlagSVGURL: "https://flagcdn.com/de.svg", FlagPNGURL: "https://flagcdn.com/w320/de.png",
			Capital: "Berlin", Region: "Europe", Population: 83240525,
			AlternateNames: []string{"deu", "deutschland", "federal republic of germany"},
		},
		{
			Code: "JPN", Name: "Japan", FlagEmoji: "🇯🇵",
			FlagSVGURL: "https://flagcdn.com/jp.svg", FlagPNGURL: "https://flagcdn.com/w320/jp.png",
			Capital: "Tokyo", Region: "Asia", Population: 125836021,
			AlternateNames: []string{"jpn", "nippon", "nihon"},
		},
		{
			Code: "BRA", Name: "Brazil", FlagEmoji: "🇧🇷",
			FlagSVGURL: "https://flagcdn.com/br.svg", FlagPNGURL: "https://flagcdn.com/w320/br.png",
			Capital: "Brasília", Region: "Americas", Population: 212559409,
			AlternateNames: []string{"bra", "brasil", "federative republic of brazil"},
		},
		{
			Code: "USA", Name: "United States", FlagEmoji: "🇺🇸",
			FlagSVGURL: "https://flagcdn.com/us.svg", FlagPNGURL: "https://flagcdn.com/w320/us.png",
			Capital: "Washington, D.C.", Region: "Americas", Population: 329484123,
			AlternateNames: []string{"usa", "america", "united states of america"},
		},
	}
}
