package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cbodonnell/arena/pkg/api"
	authhandlers "github.com/cbodonnell/arena/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/arena/pkg/auth/providers"
	"github.com/cbodonnell/arena/pkg/config"
	"github.com/cbodonnell/arena/pkg/game"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/cbodonnell/arena/pkg/repositories"
	"github.com/cbodonnell/arena/pkg/version"
	"github.com/cbodonnell/arena/pkg/workers"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	var logFile *log.FileOptions
	if cfg.LogFile != "" {
		logFile = &log.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   true,
		}
	}
	logger := log.NewWithFile(os.Stdout, parsedLogLevel, logFile)
	log.SetDefaultLogger(logger)
	defer log.Sync()
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting arena server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := openRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}

	resolver := &authproviders.IdentityResolver{Guests: authproviders.NewGuestProvider()}
	if cfg.FirebaseProjectID != "" {
		provider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       cfg.FirebaseProjectID,
			APIKey:          cfg.FirebaseAPIKey,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
		}
		resolver.Provider = provider
	} else {
		log.Warn("No Firebase project configured, only guests can join")
	}

	var saveMatchChan chan workers.SaveMatchRequest
	if repository != nil {
		saveMatchChan = make(chan workers.SaveMatchRequest, cfg.SaveQueueSize)
	}
	registry := game.NewRegistry(game.RegistryOptions{
		SaveMatchChan: saveMatchChan,
		RecordEvery:   uint32(cfg.RecordEvery),
		Logger:        logger,
	})

	heartbeat := network.NewHeartbeat(cfg.HeartbeatInterval)
	upgrader := network.NewUpgrader(network.ChannelOptions{
		MaxMessageSize: cfg.MaxMessageSize,
		OutboundBuffer: cfg.OutboundBuffer,
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateBurst:      cfg.RateBurst,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	apiServerOpts := api.NewAPIServerOptions{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins(),
		Resolver:       resolver,
		Registry:       registry,
		Upgrader:       upgrader,
		Heartbeat:      heartbeat,
		Repository:     repository,
		Context:        gctx,
	}
	if cfg.FirebaseAPIKey != "" {
		apiServerOpts.AuthHandler = authhandlers.NewFirebaseAuthHandler(authhandlers.NewFirebaseAuthHandlerOptions{
			APIKey: cfg.FirebaseAPIKey,
		})
	}
	if cfg.TLSEnabled() {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)

	g.Go(server.Start)
	g.Go(func() error {
		heartbeat.Start(gctx)
		return nil
	})
	if repository != nil {
		saveMatchWorker := workers.NewSaveMatchWorker(workers.NewSaveMatchWorkerOptions{
			Repository:    repository,
			SaveMatchChan: saveMatchChan,
		})
		g.Go(func() error {
			saveMatchWorker.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, room := range registry.List() {
			registry.Delete(room.ID())
		}
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped: %v", err)
	}

	if repository != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := repository.Close(closeCtx); err != nil {
			log.Error("Failed to close repository: %v", err)
		}
	}
}

// openRepository picks the match store from the database url scheme. An
// empty url disables persistence.
func openRepository(ctx context.Context, cfg *config.Config) (repositories.Repository, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("No database configured, matches will not be saved")
		return nil, nil
	}

	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		return repositories.NewSQLiteRepository(ctx, u.Host+u.Path, filepath.Join(cfg.MigrationsDir, "sqlite"))
	case "postgres", "postgresql":
		return repositories.NewPostgresRepository(ctx, u.String())
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
