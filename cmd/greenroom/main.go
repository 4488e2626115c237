package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penlane/greenroom/internal/api"
	"github.com/penlane/greenroom/internal/auth"
	"github.com/penlane/greenroom/internal/bulkmatch"
	"github.com/penlane/greenroom/internal/config"
	"github.com/penlane/greenroom/internal/database"
	"github.com/penlane/greenroom/internal/enrich"
	"github.com/penlane/greenroom/internal/event"
	"github.com/penlane/greenroom/internal/logging"
	"github.com/penlane/greenroom/internal/provider"
	"github.com/penlane/greenroom/internal/provider/itunes"
	"github.com/penlane/greenroom/internal/provider/songsterr"
	"github.com/penlane/greenroom/internal/provider/spotify"
	"github.com/penlane/greenroom/internal/search"
	"github.com/penlane/greenroom/internal/song"
	"github.com/penlane/greenroom/internal/version"
)

func main() {
	// Handle subcommands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "reset-token":
			if err := resetToken(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := configPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging via the logging Manager
	logManager, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	// Open database and migrate
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// External integrations
	rateLimiters := provider.NewRateLimiterMap()
	catalog := itunes.NewWithBaseURL(rateLimiters, logger, cfg.Catalog.BaseURL)
	tempo := spotify.New(spotify.Config{
		BaseURL:      cfg.AudioFeat.BaseURL,
		TokenURL:     cfg.AudioFeat.TokenURL,
		ClientID:     cfg.AudioFeat.ClientID,
		ClientSecret: cfg.AudioFeat.ClientSecret,
	}, rateLimiters, logger)
	tabs := songsterr.NewWithBaseURL(rateLimiters, logger, cfg.Tabs.BaseURL)
	if !tempo.Configured() {
		logger.Info("audio-features API not configured, tempo resolution uses the fallback table only")
	}

	// Event bus
	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()

	// Services
	authService := auth.NewService(db)
	songService := song.NewService(db)
	enricher := enrich.New(tempo, tabs, logger)
	searchService := search.NewService(songService, catalog, enricher, eventBus, logger, cfg.Search.MaxResults)
	matchService := bulkmatch.NewService(db)
	matchExecutor := bulkmatch.NewExecutor(matchService, catalog, logger, cfg.Search.AmbiguityWindow)
	matchExecutor.SetEventBus(eventBus)

	if hasTokens, err := authService.HasTokens(context.Background()); err == nil && !hasTokens {
		logger.Warn("no API tokens exist, run the reset-token subcommand to create one")
	}

	logger.Info("starting greenroom",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	router := api.NewRouter(api.RouterDeps{
		AuthService:   authService,
		SongService:   songService,
		SearchService: searchService,
		MatchService:  matchService,
		MatchExecutor: matchExecutor,
		Logger:        logger,
		BasePath:      cfg.Server.BasePath,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload logging settings on config file changes
	go func() {
		err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
			logManager.Reconfigure(logging.Config{
				Level:          next.Logging.Level,
				Format:         next.Logging.Format,
				FilePath:       next.Logging.FilePath,
				FileMaxSizeMB:  next.Logging.FileMaxSizeMB,
				FileMaxFiles:   next.Logging.FileMaxFiles,
				FileMaxAgeDays: next.Logging.FileMaxAgeDays,
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// resetToken replaces the default API token and prints the new value. This is
// an offline operation intended for first-time setup or lost-token recovery.
func resetToken() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	name := "default"
	if len(os.Args) > 2 {
		name = os.Args[2]
	}

	token, err := auth.NewService(db).ResetToken(context.Background(), name)
	if err != nil {
		return fmt.Errorf("resetting token: %w", err)
	}

	fmt.Printf("API token %q reset.\n", name)
	fmt.Println("Store it now; it is not recoverable later:")
	fmt.Println(token)
	return nil
}

func configPath() string {
	if v := os.Getenv("GR_CONFIG_PATH"); v != "" {
		return v
	}
	return "/data/config.yaml"
}
