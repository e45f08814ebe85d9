package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cbodonnell/tsuro/pkg/api"
	authproviders "github.com/cbodonnell/tsuro/pkg/auth/providers"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/network"
	"github.com/cbodonnell/tsuro/pkg/repositories"
	"github.com/cbodonnell/tsuro/pkg/storage"
	"github.com/cbodonnell/tsuro/pkg/version"
	"github.com/cbodonnell/tsuro/pkg/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	migrations := flag.String("migrations", "./migrations", "directory holding the sqlite and postgres migrations")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting storage server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authProvider, err := newAuthProvider(ctx)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	repository, err := newRepository(ctx, *migrations)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	broadcastEventChan := make(chan workers.BroadcastEvent, workers.BroadcastEventChanSize)
	subscriberManager := network.NewSubscriberManager()
	broadcastWorker := workers.NewBroadcastWorker(workers.NewBroadcastWorkerOptions{
		SubscriberManager:  subscriberManager,
		BroadcastEventChan: broadcastEventChan,
		Logger:             logger,
	})

	service := storage.NewService(storage.NewServiceOptions{
		Repository: repository,
		OnChange: func(db string, e *messages.Event) {
			select {
			case broadcastEventChan <- workers.BroadcastEvent{Database: db, Event: e}:
			default:
				log.Warn("Broadcast queue is full, dropping %s event for %s/%s", e.Event, db, e.Key)
			}
		},
		Logger: logger,
	})

	apiServerOpts := api.NewAPIServerOptions{
		Port:              *port,
		AuthProvider:      authProvider,
		Storage:           service,
		SubscriberManager: subscriberManager,
	}
	tlsCertFile := os.Getenv("TSURO_API_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("TSURO_API_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		broadcastWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		defer stop()
		server.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop server: %v", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error: %v", err)
	}
}

func newAuthProvider(ctx context.Context) (authproviders.AuthProvider, error) {
	if projectID := os.Getenv("TSURO_FIREBASE_PROJECT_ID"); projectID != "" {
		log.Info("Verifying Firebase ID tokens for project %s", projectID)
		return authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       projectID,
			APIKey:          os.Getenv("TSURO_FIREBASE_API_KEY"),
			CredentialsFile: os.Getenv("TSURO_FIREBASE_CREDENTIALS_FILE"),
		})
	}
	if apiKey := os.Getenv("TSURO_API_KEY"); apiKey != "" {
		log.Info("Verifying API keys")
		return authproviders.NewAPIKeyAuthProvider(map[string]string{"default": apiKey}), nil
	}
	log.Warn("No TSURO_API_KEY or TSURO_FIREBASE_PROJECT_ID set, accepting every request")
	return &authproviders.NoAuthProvider{}, nil
}

func newRepository(ctx context.Context, migrations string) (repositories.Repository, error) {
	connStr := os.Getenv("TSURO_DATABASE_URL")
	if connStr == "" {
		connStr = "sqlite://tsuro.db"
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		return repositories.NewSQLiteRepository(ctx, u.Host+u.Path, filepath.Join(migrations, "sqlite"))
	case "postgres", "postgresql":
		return repositories.NewPostgresRepository(ctx, u.String(), filepath.Join(migrations, "postgres"))
	case "memory":
		log.Warn("Using the in-memory repository, nothing will survive a restart")
		return repositories.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
