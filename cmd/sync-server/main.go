package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nu11ified/sync-server/pkg/api"
	"github.com/Nu11ified/sync-server/pkg/config"
	"github.com/Nu11ified/sync-server/pkg/discord"
	"github.com/Nu11ified/sync-server/pkg/gdrive"
	"github.com/Nu11ified/sync-server/pkg/identity"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
	"github.com/Nu11ified/sync-server/pkg/teamspeak"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, metrics, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize identity store")
		os.Exit(1)
	}
	defer cleanup()

	chat, err := discord.New(discord.Config{
		APIBase:  cfg.Discord.APIBase,
		BotToken: chatToken(cfg),
		RoleTTL:  cfg.Discord.RoleTTL,
		Backoff:  cfg.Sync.RetryBackoff,
	}, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("failed to initialize chat adapter")
		os.Exit(1)
	}

	storage, err := gdrive.New(ctx, gdrive.Config{
		APIBase: cfg.GDrive.APIBase,
		KeyFile: storageKeyFile(cfg),
		ItemTTL: cfg.GDrive.ItemTTL,
		Backoff: cfg.Sync.RetryBackoff,
	}, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("failed to initialize storage adapter")
		os.Exit(1)
	}

	voice, err := teamspeak.New(voiceConfig(cfg), logger, metrics)
	if err != nil {
		logger.WithError(err).Error("failed to initialize voice adapter")
		os.Exit(1)
	}

	orch := reconcile.NewOrchestrator(store, chat, storage, voice, reconcile.Config{
		ActionTimeout: cfg.Sync.ActionTimeout,
	}, logger, metrics)

	server := api.NewServer(orch, chat, storage, voice, logger, metrics)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("sync server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info("sync server stopped")
}

// buildStore picks the remote HTTP store when a base URL is configured,
// otherwise the local sqlite store, seeded from the mapping file when set.
func buildStore(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *observability.Logger) (reconcile.Store, func(), error) {
	if cfg.Store.BaseURL != "" {
		logger.WithField("base_url", cfg.Store.BaseURL).Info("using remote identity store")
		store := identity.NewHTTPStore(cfg.Store.BaseURL,
			platform.WithBackoff(cfg.Sync.RetryBackoff),
			platform.WithMetrics(metrics),
		)
		return store, func() {}, nil
	}

	store, err := identity.NewSQLStore(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store.MappingFile != "" {
		seed, err := identity.LoadSeedFile(cfg.Store.MappingFile)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := store.ImportSeed(ctx, seed); err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := identity.WatchSeedFile(ctx, cfg.Store.MappingFile, store, logger); err != nil {
			logger.WithError(err).Warn("mapping file watch unavailable, live reload disabled")
		}
	}

	return store, func() { store.Close() }, nil
}

func chatToken(cfg *config.Config) string {
	if !cfg.Discord.Enabled {
		return ""
	}
	return cfg.Discord.BotToken
}

func storageKeyFile(cfg *config.Config) string {
	if !cfg.GDrive.Enabled {
		return ""
	}
	return cfg.GDrive.KeyFile
}

// voiceConfig blanks the connection details when the adapter is disabled so
// it comes up in simulated mode.
func voiceConfig(cfg *config.Config) teamspeak.Config {
	if !cfg.TeamSpeak.Enabled {
		return teamspeak.Config{GroupTTL: cfg.TeamSpeak.GroupTTL, Backoff: cfg.Sync.RetryBackoff}
	}
	return teamspeak.Config{
		Host:     cfg.TeamSpeak.Host,
		Port:     cfg.TeamSpeak.Port,
		ServerID: cfg.TeamSpeak.ServerID,
		Login:    cfg.TeamSpeak.Login,
		Password: cfg.TeamSpeak.Password,
		GroupTTL: cfg.TeamSpeak.GroupTTL,
		Backoff:  cfg.Sync.RetryBackoff,
	}
}
