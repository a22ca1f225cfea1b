package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/config"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/crypto"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/handlers"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/metrics"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/middleware"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/services"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.LoggingOptions())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Int("max_connections", cfg.Manager.MaxConnections),
	)

	// Master key, then the encrypted credential store
	keySource := crypto.NewKeySource(crypto.KeySourceConfig{
		ExplicitKey:    cfg.Storage.CredentialsKey,
		UseKeyring:     cfg.Storage.UseKeyring,
		KeyringService: cfg.Storage.KeyringService,
		KeyFile:        cfg.Storage.KeyPath(),
	}, logger.Named("keysource"))
	key, err := keySource.Load()
	if err != nil {
		logger.Fatal("Failed to load credentials key", zap.Error(err))
	}
	encryptor, err := crypto.NewCredentialEncryptor(key)
	if err != nil {
		logger.Fatal("Failed to create credential encryptor", zap.Error(err))
	}
	connStore, err := store.NewFileStore(cfg.Storage.ConnectionsPath(), encryptor, logger.Named("store"))
	if err != nil {
		logger.Fatal("Failed to open connection store", zap.Error(err))
	}

	observer := metrics.NewObserver()
	manager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		MaxConnections:      cfg.Manager.MaxConnections,
		QueryTimeout:        cfg.Manager.QueryTimeout,
		IdleTimeout:         cfg.Manager.IdleTimeout,
		HealthCheckInterval: cfg.Manager.HealthCheckInterval,
		ConnectRetries:      cfg.Manager.ConnectRetries,
	}, logger.Named("manager"), datasource.WithObserver(observer))
	manager.AddCleanupHandler(connStore.Close)
	manager.AddCleanupHandler(func(ctx context.Context) error {
		return logger.Sync()
	})

	for _, info := range manager.Factory().ListTypes() {
		logger.Debug("Adapter available", zap.String("type", string(info.Type)), zap.Int("default_port", info.DefaultPort))
	}

	connectionService := services.NewConnectionService(connStore, manager, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, manager, logger)
	healthHandler.RegisterRoutes(mux)

	connectionsHandler := handlers.NewConnectionsHandler(connectionService, logger.Named("http"))
	connectionsHandler.RegisterRoutes(mux)

	observer.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.Chain(mux, middleware.Recoverer(logger), middleware.RequestLogger(logger.Named("http"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-dbclient",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			logger.Error("Server failed", zap.String("addr", server.Addr), zap.Error(err))
			exitCode = 1
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	manager.Cleanup(shutdownCtx)
	cancel()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
