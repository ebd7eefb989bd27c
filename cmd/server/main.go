package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/foodbridge/api/handler"
	"github.com/fastygo/foodbridge/internal/config"
	"github.com/fastygo/foodbridge/internal/infrastructure/buffer"
	"github.com/fastygo/foodbridge/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/foodbridge/internal/infrastructure/postgres"
	"github.com/fastygo/foodbridge/internal/infrastructure/rabbitmq"
	redisInfra "github.com/fastygo/foodbridge/internal/infrastructure/redis"
	"github.com/fastygo/foodbridge/internal/middleware"
	"github.com/fastygo/foodbridge/internal/realtime"
	"github.com/fastygo/foodbridge/internal/router"
	"github.com/fastygo/foodbridge/internal/services"
	"github.com/fastygo/foodbridge/internal/services/lifecycle"
	"github.com/fastygo/foodbridge/pkg/httpcontext"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/repository/memory"
	"github.com/fastygo/foodbridge/repository/postgres"
	redisRepo "github.com/fastygo/foodbridge/repository/redis"
	"github.com/fastygo/foodbridge/usecase"
	adminUC "github.com/fastygo/foodbridge/usecase/admin"
	authUC "github.com/fastygo/foodbridge/usecase/auth"
	donationUC "github.com/fastygo/foodbridge/usecase/donation"
	matchingUC "github.com/fastygo/foodbridge/usecase/matching"
	notificationUC "github.com/fastygo/foodbridge/usecase/notification"
)

type repositories struct {
	users         repository.UserRepository
	donations     repository.DonationRepository
	tasks         repository.TaskRepository
	notifications repository.NotificationRepository
	events        repository.EventRepository
	sessions      repository.SessionRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx := manager.Context(context.Background())

	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = uuid.NewString()
		zapLogger.Warn("JWT_SECRET not set; using a random secret, tokens will not survive restarts")
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path)
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(bufferStore, 10*time.Second, zapLogger)

	var repos repositories
	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.New()
		repos = repositories{
			users:         store.Users(),
			donations:     store.Donations(),
			tasks:         store.Tasks(),
			notifications: store.Notifications(),
			events:        store.Events(),
			sessions:      store.Sessions(),
		}
		zapLogger.Warn("using in-memory storage; data is lost on restart")
	default:
		if cfg.Migrations.Enabled {
			if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
				zapLogger.Fatal("migrations failed", zap.Error(err))
			}
		}

		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		mon.Register("postgresql", pgInfra.Ping(pool), true)

		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		mon.Register("redis", redisInfra.Ping(redisClient), true)

		repos = repositories{
			users:         postgres.NewUserRepository(pool),
			donations:     postgres.NewDonationRepository(pool),
			tasks:         postgres.NewTaskRepository(pool),
			notifications: postgres.NewNotificationRepository(pool),
			events:        postgres.NewEventRepository(pool),
			sessions:      redisRepo.NewSessionRepository(redisClient, cfg.JWT.TTL),
		}
	}

	fanoutOpts := []notificationUC.FanoutOption{
		notificationUC.WithFallback(services.NewBufferBridge(bufferStore)),
	}
	if cfg.Events.URL != "" {
		publisher, err := rabbitmq.Dial(appCtx, cfg.Events.URL, cfg.Events.Exchange, zapLogger)
		if err != nil {
			zapLogger.Error("event bus unavailable; lifecycle events stay local", zap.Error(err))
		} else {
			manager.Register("amqp", func(ctx context.Context) error {
				return publisher.Close()
			})
			mon.Register("amqp", publisher.Ping, false)
			fanoutOpts = append(fanoutOpts, notificationUC.WithPublisher(publisher))
		}
	}

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		repos.notifications,
		repos.events,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	hub := realtime.NewHub(zapLogger)
	var conns usecase.Disconnector = usecase.NopDisconnector
	if cfg.Realtime.Enabled {
		fanoutOpts = append(fanoutOpts, notificationUC.WithPusher(hub))
		conns = hub
	}
	fanout := notificationUC.NewFanout(repos.notifications, repos.events, zapLogger, fanoutOpts...)

	tokens := authUC.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	authUseCase := authUC.New(repos.users, repos.sessions, tokens, fanout, zapLogger).WithDisconnector(conns)
	donationUseCase := donationUC.New(repos.donations, repos.tasks, repos.users, repos.events, fanout, zapLogger)
	matchingUseCase := matchingUC.New(repos.donations, repos.tasks, repos.users, fanout, matchingUC.Config{
		AverageSpeedKmh: cfg.Matching.AverageSpeedKmh,
		PickupRadiusKm:  cfg.Matching.PickupRadiusKm,
	}, zapLogger)
	adminUseCase := adminUC.New(repos.users, repos.sessions, repos.donations, repos.tasks, fanout, zapLogger).WithDisconnector(conns)
	notificationUseCase := notificationUC.New(repos.notifications, zapLogger)

	if cfg.Bootstrap.AdminEmail != "" {
		seedCtx, cancel := context.WithTimeout(appCtx, cfg.Context.RequestTimeout)
		if _, err := authUseCase.EnsureAdmin(seedCtx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
			zapLogger.Fatal("admin bootstrap failed", zap.Error(err))
		}
		cancel()
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:         apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Donation:     apiHandler.NewDonationHandler(donationUseCase, matchingUseCase, ctxAdapter, zapLogger),
		Task:         apiHandler.NewTaskHandler(matchingUseCase, ctxAdapter, zapLogger),
		Notification: apiHandler.NewNotificationHandler(notificationUseCase, ctxAdapter, zapLogger),
		Admin:        apiHandler.NewAdminHandler(adminUseCase, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go("http_server", func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	if cfg.Realtime.Enabled {
		dispatcher := usecase.NewDispatcher()
		realtime.RegisterCommands(dispatcher, hub, notificationUseCase)
		wsServer := realtime.NewServer(hub, authUseCase, dispatcher, realtime.Config{
			Addr:         cfg.RealtimeAddress(),
			PingInterval: cfg.Realtime.PingInterval,
			SendBuffer:   cfg.Realtime.SendBuffer,
		}, zapLogger)
		manager.Go("realtime_server", wsServer.ListenAndServe)
		manager.Register("realtime_server", wsServer.Shutdown)
	}

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := manager.Err(); err != nil {
		zapLogger.Error("stopped after component failure", zap.Error(err))
	}
}
