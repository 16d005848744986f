package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"nexus/internal/adapter/api"
	"nexus/internal/adapter/api/handler"
	apimiddleware "nexus/internal/adapter/api/middleware"
	"nexus/internal/adapter/api/router"
	"nexus/internal/adapter/repository"
	domainrepo "nexus/internal/domain/repository"
	"nexus/internal/domain/service"
	"nexus/internal/infrastructure/database"
	"nexus/internal/infrastructure/metrics"
	"nexus/internal/infrastructure/ratelimit"
	"nexus/internal/infrastructure/websocket"
	"nexus/internal/usecase"
	"nexus/pkg/config"
	"nexus/pkg/logger"
)

type recordStore interface {
	Users() domainrepo.UserRepository
	Requests() domainrepo.RequestRepository
	Collaborations() domainrepo.CollaborationRepository
	Messages() domainrepo.MessageRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.StoreDriver, err)
		os.Exit(1)
	}
	defer closeStore()

	collector := metrics.NewCollector()

	wsLimiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionMessage: {PerMinute: cfg.WSMessageRatePerMinute, Burst: 10},
		ratelimit.ActionTyping:  {PerMinute: cfg.WSTypingRatePerMinute, Burst: 20},
	})
	wsLimiter.StartCleanupRoutine(ctx, 10*time.Minute)

	httpLimiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionHTTP: {PerMinute: cfg.HTTPRatePerMinute, Burst: 50},
	})
	httpLimiter.StartCleanupRoutine(ctx, 10*time.Minute)

	guard := service.NewChatAccessGuard(store.Collaborations())
	chatUseCase := usecase.NewChatUseCase(store.Messages(), guard, cfg.MessageEditPolicy)

	wsManager := websocket.NewManager(chatUseCase, websocket.Options{
		OpTimeout: cfg.StoreOpTimeout,
		Limiter:   wsLimiter,
		Metrics:   collector,
	})
	wsManager.Start(ctx)

	requestUseCase := usecase.NewRequestUseCase(store.Requests(), store.Users(), wsManager, collector)
	collabUseCase := usecase.NewCollaborationUseCase(store.Collaborations(), store.Users(), wsManager, collector)
	userUseCase := usecase.NewUserUseCase(store.Users())

	handlers := handler.Setup(requestUseCase, collabUseCase, chatUseCase, userUseCase, wsManager, cfg.StoreDriver)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.Metrics(collector))
	e.Use(apimiddleware.RateLimit(httpLimiter))
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: cfg.StoreOpTimeout,
		Skipper: func(c echo.Context) bool { return c.Path() == "/ws" },
	}))

	e.Validator = api.NewValidator()

	identity := apimiddleware.NewIdentityMiddleware(apimiddleware.TrustedCallerResolver{})
	router.Setup(e, handlers, identity, collector)

	go func() {
		logger.Info("Starting server on port %s (store=%s, edit policy=%s)", cfg.ServerPort, cfg.StoreDriver, chatUseCase.EditPolicy())
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (recordStore, func(), error) {
	policy := database.RetryPolicy{
		Attempts: cfg.StoreConnectRetries,
		Backoff:  cfg.StoreConnectBackoff,
	}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, policy)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoStore(db)

		indexCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
		defer cancel()
		if err := store.EnsureIndexes(indexCtx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}

		return store, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("Mongo disconnect: %v", err)
			}
		}, nil

	case config.StoreFirestore:
		client, err := database.ConnectFirestore(ctx, database.FirestoreOptions{
			ProjectID:       cfg.FirebaseProject,
			CredentialsJSON: cfg.FirebaseCredsJSON,
			CredentialsFile: cfg.FirebaseCredsFile,
		}, policy)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewFirestoreStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("Firestore close: %v", err)
			}
		}, nil

	case config.StorePostgres:
		db, err := database.ConnectPostgres(ctx, cfg.PostgresDSN, policy)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewSQLStore(db)

		migrateCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
		defer cancel()
		if err := store.Migrate(migrateCtx); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}

		return store, func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Postgres close: %v", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
