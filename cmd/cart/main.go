package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/api"
	"github.com/fjod/rocketshoes-cart/internal/config"
	"github.com/fjod/rocketshoes-cart/internal/consumer"
	"github.com/fjod/rocketshoes-cart/internal/engine"
	h "github.com/fjod/rocketshoes-cart/internal/http"
	"github.com/fjod/rocketshoes-cart/internal/logger"
	"github.com/fjod/rocketshoes-cart/internal/notify"
	"github.com/fjod/rocketshoes-cart/internal/session"
	"github.com/fjod/rocketshoes-cart/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "cart", Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open cart store")
	}
	defer closeStore()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	log.WithField("api_base_url", cfg.APIBaseURL).Info("using store api")

	sinks := notify.Multi{notify.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notify.NewKafkaSink(log, cfg.NotifyTopic, cfg.KafkaBrokers...)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	registry := session.NewRegistry(client, client, snapshots, sinks, log,
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithMaxSessions(cfg.MaxSessions),
	)
	go registry.Run(ctx, cfg.SessionSweepInterval)

	if len(cfg.KafkaBrokers) > 0 {
		checkouts := consumer.NewCheckoutConsumer(registry, log, cfg.CheckoutTopic, cfg.KafkaBrokers...)
		defer checkouts.Close()
		go checkouts.Run(ctx)
		log.WithField("topic", cfg.CheckoutTopic).Info("consuming checkout events")
	}

	cartHandler := h.NewCartHandler(registry, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(cartHandler, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("cart service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()

	log.Info("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("cart service stopped")
}

func openStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (engine.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory cart store, carts are lost on restart")
		return store.NewMemoryStore(), func() {}, nil

	case "mongo":
		db, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		mongoStore := store.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			log.WithError(err).Warn("failed to create cart indexes")
		}
		log.WithField("database", cfg.MongoDBName).Info("connected to MongoDB")
		return mongoStore, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.WithError(err).Error("failed to disconnect MongoDB")
			}
		}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")
		return store.NewRedisStore(client), func() { client.Close() }, nil

	default:
		return nil, nil, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}
}
