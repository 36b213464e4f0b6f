// Package app assembles the backend's services over their storage and the
// model service client.
package app

import (
	"context"

	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/app/services/auth"
	modelsvc "github.com/titanicml/prediction-backend/internal/app/services/models"
	predictionsvc "github.com/titanicml/prediction-backend/internal/app/services/prediction"
	"github.com/titanicml/prediction-backend/internal/app/storage"
	"github.com/titanicml/prediction-backend/internal/app/storage/memory"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

// AuthService is the authentication surface the HTTP layer depends on.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (user.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, token string) (auth.Claims, error)
	Authorize(claims auth.Claims, required user.Role) error
}

// PredictionService is the prediction surface the HTTP layer depends on.
type PredictionService interface {
	Predict(ctx context.Context, userID string, features prediction.Features) (prediction.Record, error)
	History(ctx context.Context, userID string) ([]prediction.Record, error)
}

// ModelService is the model management surface the HTTP layer depends on.
type ModelService interface {
	List(ctx context.Context) ([]mlmodel.Metadata, error)
	Train(ctx context.Context, spec mlmodel.TrainingSpec) (mlmodel.TrainingJob, error)
	Delete(ctx context.Context, id string) error
}

// Stores bundles the persistence interfaces. Nil fields default to the
// in-memory store, which keeps tests and local development free of external
// services.
type Stores struct {
	Users       storage.UserStore
	Predictions storage.PredictionStore
}

func (s Stores) withDefaults() Stores {
	var mem *memory.Store
	if s.Users == nil || s.Predictions == nil {
		mem = memory.New()
	}
	if s.Users == nil {
		s.Users = mem
	}
	if s.Predictions == nil {
		s.Predictions = mem
	}
	return s
}

// Application is the assembled service graph.
type Application struct {
	Auth        AuthService
	Predictions PredictionService
	Models      ModelService
}

// Config carries the application's collaborators.
type Config struct {
	Stores      Stores
	Tokens      *auth.TokenService
	Predictor   predictionsvc.Predictor
	ModelClient modelsvc.ModelClient
	ModelCache  modelsvc.Cache
	Logger      *logger.Logger
}

// New wires the services together.
func New(cfg Config) *Application {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("app")
	}
	stores := cfg.Stores.withDefaults()

	return &Application{
		Auth:        auth.New(stores.Users, cfg.Tokens, nil, cfg.Logger),
		Predictions: predictionsvc.New(stores.Predictions, cfg.Predictor, cfg.Logger),
		Models:      modelsvc.New(cfg.ModelClient, cfg.ModelCache, cfg.Logger),
	}
}
