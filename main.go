package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocks-social/cache"
	"stocks-social/config"
	"stocks-social/database"
	"stocks-social/guard"
	"stocks-social/handlers"
	"stocks-social/ledger"
	"stocks-social/logger"
	"stocks-social/marketdata"
	"stocks-social/prices"
	"stocks-social/reviews"
	"stocks-social/stats"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(logger.Config{Level: "info", Pretty: true})
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := database.Open(cfg.DB, cfg.LogLevel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close the database")
		}
	}()

	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate models")
	}

	deps := handlers.Deps{Store: store, JWTSecret: cfg.JWTSecret, Log: log}
	var statCache stats.ResultCache
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.Timeout)
		rdb, err := cache.Connect(ctx, cfg.Redis)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		redisCache := cache.NewRedis(rdb)
		statCache = redisCache
		deps.Tokens = redisCache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis cache enabled")
	}
	if cfg.AlphaVantageKey != "" {
		deps.Feed = marketdata.NewClient(cfg.AlphaVantageKey, cfg.AlphaVantageURL, log)
	}

	g := guard.New(store)
	deps.Prices = prices.NewStore(store, log)
	deps.Ledger = ledger.NewService(store, g, log)
	deps.Reviews = reviews.NewService(store, g, reviews.NewStoreFriendGraph(store), log)
	deps.Stats = stats.NewEngine(store, deps.Prices, g, stats.Options{
		MarketIndex:      cfg.MarketIndex,
		MaxMatrixSymbols: cfg.MaxMatrixSymbols,
		Workers:          cfg.MatrixWorkers,
		Cache:            statCache,
	}, log)

	router := handlers.NewRouter(handlers.New(deps), cfg.JWTSecret, cfg.AdminKey, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
