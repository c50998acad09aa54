package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/dm-service/internal/api"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/handlers"
	"github.com/yourorg/dm-service/internal/hub"
	"github.com/yourorg/dm-service/internal/logger"
	"github.com/yourorg/dm-service/internal/metrics"
	"github.com/yourorg/dm-service/internal/presence"
	"github.com/yourorg/dm-service/internal/rabbit"
	"github.com/yourorg/dm-service/internal/repository"
	"github.com/yourorg/dm-service/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.App.JWTSecret == "" {
		log.Fatal("app.jwt_secret is required")
	}

	zl, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	metrics.Register()

	mongoClient, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	coll := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
	if err := repository.EnsureIndexes(context.Background(), coll); err != nil {
		zl.Fatalw("mongo ensure indexes", "err", err)
	}
	repo := repository.NewMongoMessageRepository(coll)
	svc := service.NewMessageService(repo, zl)

	pub := rabbit.NewPublisher(cfg.Rabbit, zl)

	ctx, cancel := context.WithCancel(context.Background())
	consumer := rabbit.NewConsumer(cfg.Rabbit, svc, zl)
	consumerDone := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(consumerDone)
	}()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	tracker := presence.NewTracker()
	h := hub.New()
	wsh := handlers.NewWSHandler(h, tracker, pub, cfg, zl)
	rest := handlers.NewRestHandler(svc, tracker, zl)
	app := api.NewServer(cfg, wsh, rest, rdb)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zl.Infow("starting dm-service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-sig:
		zl.Infow("signal received, shutting down", "signal", s)
	}

	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}

	cancel()
	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		zl.Warnw("consumer did not stop in time")
	}

	pub.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()
	if err := mongoClient.Disconnect(disconnectCtx); err != nil {
		zl.Warnw("mongo disconnect", "err", err)
	}
	zl.Infow("shutdown complete")
}
