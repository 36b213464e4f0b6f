// Command server runs the prediction backend HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/titanicml/prediction-backend/internal/app"
	"github.com/titanicml/prediction-backend/internal/app/httpapi"
	"github.com/titanicml/prediction-backend/internal/app/services/auth"
	modelsvc "github.com/titanicml/prediction-backend/internal/app/services/models"
	"github.com/titanicml/prediction-backend/internal/app/storage/postgres"
	"github.com/titanicml/prediction-backend/internal/config"
	"github.com/titanicml/prediction-backend/internal/modelclient"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("invalid configuration")
	}

	log := logger.New("server", cfg.LogLevel, cfg.LogFormat)

	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect to database")
		}
		defer db.Close()

		store := postgres.New(db)
		stores.Users = store
		stores.Predictions = store
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	client, err := modelclient.New(modelclient.Config{
		BaseURL: cfg.ModelServiceURL,
		Timeout: cfg.ModelTimeout,
		Policy: modelclient.Policy{
			MaxAttempts: cfg.ModelMaxAttempts,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Jitter:      0.2,
		},
		MaxConcurrent:     cfg.ModelMaxConcurrent,
		RequestsPerSecond: cfg.ModelRequestsPerSecond,
		Logger:            log,
	})
	if err != nil {
		log.WithError(err).Fatal("configure model service client")
	}

	var cache modelsvc.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		cache = modelsvc.NewRedisCache(rdb, cfg.ModelListCacheTTL)
		log.Info("model list cache enabled")
	}

	application := app.New(app.Config{
		Stores:      stores,
		Tokens:      auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL),
		Predictor:   client,
		ModelClient: client,
		ModelCache:  cache,
		Logger:      log,
	})

	handler := httpapi.New(application, version, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
