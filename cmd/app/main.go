package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"giveaway-poll-backend/internal/app"
	membercache "giveaway-poll-backend/internal/cache/redis"
	"giveaway-poll-backend/internal/common/config"
	"giveaway-poll-backend/internal/common/logger"
	"giveaway-poll-backend/internal/common/middleware"
	eventhttp "giveaway-poll-backend/internal/features/event/delivery/http"
	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/repository"
	filestore "giveaway-poll-backend/internal/features/event/repository/file"
	redisstore "giveaway-poll-backend/internal/features/event/repository/redis"
	"giveaway-poll-backend/internal/features/event/service"
	"giveaway-poll-backend/internal/platform/redis"
	"giveaway-poll-backend/internal/service/identity"
	"giveaway-poll-backend/internal/service/notifications"
	"giveaway-poll-backend/internal/utils/debounce"
	"giveaway-poll-backend/internal/workers"
)

const serviceName = "giveaway-poll-backend"

type domain struct {
	name string
	kind models.Kind
}

var domains = []domain{
	{name: "giveaways", kind: models.KindGiveaway},
	{name: "polls", kind: models.KindPoll},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Debug)
	log.Info().
		Str("store_backend", cfg.Store.Backend).
		Str("notify_sink", cfg.Notify.Sink).
		Bool("activity_worker", cfg.Activity.Enabled).
		Msg("Starting event engine")

	ctx := context.Background()
	registry := app.NewRegistry(logger.Component("registry"))
	health := app.NewHealth(serviceName)

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = redis.Open(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		health.AddCheck("redis", redisClient.Check)
		// registered first so it runs after every other closer
		registry.AddCloser("redis", func() {
			if err := redisClient.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis client")
			}
		})
		log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis connection established")
	}

	sink := buildSink(cfg, redisClient)
	provider := buildIdentity(cfg, redisClient, registry)

	for _, d := range domains {
		store := repository.NewStore(d.name, d.kind, buildPersister(cfg, redisClient, d.name), logger.Component("store:"+d.name))
		if err := store.Open(ctx); err != nil {
			log.Fatal().Err(err).Str("domain", d.name).Msg("Failed to load event store")
		}
		health.AddCheck("store:"+d.name, func(context.Context) error {
			if !store.Loaded() {
				return fmt.Errorf("event store %s not loaded", store.Domain())
			}
			return nil
		})

		views := debounce.New(cfg.Debounce.Window, cfg.Debounce.ActionTimeout, logger.Component("debounce:"+d.name))
		lifecycle := service.NewLifecycleService(store, sink, views, logger.Component("lifecycle:"+d.name),
			service.WithMaxWinners(cfg.Limits.MaxWinners),
			service.WithIdentity(provider),
		)
		expiration := service.NewExpirationService(lifecycle, service.ExpirationConfig{
			InitialDelay: cfg.Expiry.InitialDelay,
			Interval:     cfg.Expiry.Interval,
			StopTimeout:  cfg.Expiry.StopTimeout,
		}, logger.Component("expiration:"+d.name))

		registry.AddRoutes(eventhttp.NewEventHandler("/"+d.name, lifecycle, expiration))
		registry.AddBackground(expiration)
		// closers run in reverse: pending re-renders are dropped before
		// closure notifications are awaited
		registry.AddCloser("notifications:"+d.name, lifecycle.Wait)
		registry.AddCloser("debounce:"+d.name, views.Stop)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(middleware.ErrorHandler(logger.Component("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", middleware.HeaderRequestID}
	router.Use(cors.New(corsConfig))

	health.RegisterRoutes(&router.RouterGroup)
	registry.RegisterRoutes(router.Group("/api/v1"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	registry.StartAll()

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	registry.StopAll()

	log.Info().Msg("Server exited")
}

func buildPersister(cfg *config.Config, client *redis.Client, name string) repository.Persister {
	if cfg.Store.Backend == config.StoreBackendRedis {
		return redisstore.NewPersister(client, name, logger.Component("persister:"+name))
	}
	return filestore.NewPersister(cfg.Store.DataDir, name, logger.Component("persister:"+name))
}

func buildSink(cfg *config.Config, client *redis.Client) service.NotificationSink {
	logSink := notifications.NewLogSink(logger.Component("notifications"))
	if cfg.Notify.Sink != config.NotifySinkRedis {
		return logSink
	}
	stream := notifications.NewStreamSink(client, cfg.Notify.Stream, cfg.Notify.StreamMaxLen)
	return notifications.NewMultiSink(stream, logSink)
}

// buildIdentity prefers the redis member cache fed by the activity worker.
// Without it only the account age derived from snowflake ids is known.
func buildIdentity(cfg *config.Config, client *redis.Client, registry *app.Registry) service.IdentityProvider {
	if !cfg.Activity.Enabled {
		return identity.NewSnowflakeAgeProvider(identity.NewStaticProvider(), logger.Component("identity"))
	}

	members := membercache.NewMemberCache(client, cfg.Activity.MemberTTL)
	registry.AddBackground(workers.NewActivityWorker(client, members, workers.StreamConfig{
		Stream:   cfg.Activity.Stream,
		Group:    cfg.Activity.Group,
		Consumer: cfg.Activity.Consumer,
	}, logger.Component("activity-worker")))
	return identity.NewSnowflakeAgeProvider(members, logger.Component("identity"))
}
