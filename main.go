package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/cache"
	"storycast/infrastructure/clients/facebook"
	"storycast/infrastructure/clients/instagram"
	"storycast/infrastructure/clients/tiktok"
	"storycast/infrastructure/configuration"
	"storycast/infrastructure/logger"
	"storycast/infrastructure/objectstore"
	"storycast/infrastructure/persistence"
	"storycast/infrastructure/pubsub"
	"storycast/infrastructure/realtime"
	"storycast/infrastructure/renderer"
	httpHandler "storycast/interfaces/http"
	"storycast/server"
	"storycast/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	cfg := configuration.C

	mongoDb, err := persistence.NewMongoDb(
		cfg.Database.Mongo.Host,
		cfg.Database.Mongo.Port,
		cfg.Database.Mongo.User,
		cfg.Database.Mongo.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("MongoDB initialization failed")
		os.Exit(1)
	}
	if err := mongoDb.Ping(ctx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("MongoDB ping failed")
		os.Exit(1)
	}
	logger.GetLogger().Info("MongoDB connected successfully")

	psqlDb, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("PostgreSQL initialization failed")
		os.Exit(1)
	}
	if err := persistence.EnsureAccountSchema(ctx, psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring linked_accounts schema")
	}

	redisClient, err := cache.NewRedisClient(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - rate limiting falls back to local windows")
		redisClient = nil
	}

	objectStore, err := objectstore.NewS3Store()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Object store initialization failed")
		os.Exit(1)
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - status events disabled")
		pubSubClient = nil
	}
	eventPublisher := pubsub.NewStoryEventPublisher(pubSubClient, cfg.Pubsub.Topic)

	storyRepository := persistence.NewStoryRepository(mongoDb, cfg.Database.Mongo.Name)
	accountRepository := persistence.NewAccountRepository(psqlDb)

	clients := map[model.Platform]repository.IPlatformClient{
		model.PlatformFacebook:  facebook.NewClient(cfg.Platforms.Facebook.ClientID, cfg.Platforms.Facebook.ClientSecret),
		model.PlatformInstagram: instagram.NewClient(),
		model.PlatformTikTok:    tiktok.NewClient(cfg.Platforms.TikTok.ClientID, cfg.Platforms.TikTok.ClientSecret),
	}

	limiter := usecase.NewRateLimiter(cfg.Scheduler.PublishesPerMinute)
	if redisClient != nil {
		limiter = limiter.WithCounter(cache.NewRequestCounter(redisClient))
	}

	mediaValidator := usecase.NewMediaValidator(
		objectStore,
		time.Duration(cfg.Scheduler.SignedURLRefreshMinutes)*time.Minute,
		24*time.Hour,
	)
	tokenManager := usecase.NewTokenLifecycleManager(accountRepository, clients)
	classifier := usecase.NewErrorClassifier(limiter)

	dispatchHub := realtime.NewDispatchHub()
	dispatcher := usecase.NewPublishDispatcher(
		storyRepository,
		storyRepository,
		accountRepository,
		clients,
		mediaValidator,
		tokenManager,
		classifier,
		limiter,
	).
		WithBroadcaster(dispatchHub.BroadcastDispatch).
		WithEventPublisher(eventPublisher)

	scheduleLoop := usecase.NewScheduleLoop(
		storyRepository,
		storyRepository,
		dispatcher,
		time.Duration(cfg.Scheduler.PollIntervalSeconds)*time.Second,
	)
	videoPrep := usecase.NewVideoPrepCoordinator(
		storyRepository,
		renderer.NewRenderClient(cfg.Renderer.Host),
		time.Duration(cfg.Scheduler.VideoPollSeconds)*time.Second,
		time.Duration(cfg.Scheduler.VideoLeadHours)*time.Hour,
		time.Duration(cfg.Scheduler.VideoStaggerMinutes)*time.Minute,
	)

	g.Go(func() error { return runOrDone(scheduleLoop.Run(ctx)) })
	g.Go(func() error { return runOrDone(videoPrep.Run(ctx)) })

	// Calendar-driven maintenance: token sweep and quota resets.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.TokenSweepSpec, func() {
		if err := tokenManager.Sweep(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Token sweep failed")
		}
	}); err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid token sweep schedule")
	}
	if _, err := scheduler.AddFunc(cfg.Scheduler.QuotaResetSpec, func() {
		if err := accountRepository.ResetExpiredQuotas(ctx, time.Now().UTC()); err != nil {
			logger.GetLogger().WithField("error", err).Error("Quota reset failed")
		}
	}); err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid quota reset schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	schedulerHandler := httpHandler.NewSchedulerHandler(scheduleLoop, videoPrep, tokenManager)
	accountHandler := httpHandler.NewAccountHandler(accountRepository, tokenManager)
	storyHandler := httpHandler.NewStoryHandler(storyRepository, storyRepository)

	router := server.InitiateRouter(schedulerHandler, accountHandler, storyHandler, dispatchHub)

	port := cfg.App.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// runOrDone swallows the context cancellation the background loops return on
// shutdown so g.Wait treats a clean stop as success.
func runOrDone(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
