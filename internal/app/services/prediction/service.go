// Package prediction runs the predict-and-record flow: validate the feature
// snapshot, ask the model service, persist the outcome.
package prediction

import (
	"context"

	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/storage"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

// Predictor is the slice of the model client this service needs.
type Predictor interface {
	Predict(ctx context.Context, features prediction.Features) (prediction.Result, error)
}

// Service orchestrates predictions for authenticated users.
type Service struct {
	store     storage.PredictionStore
	predictor Predictor
	log       *logger.Logger
}

// New constructs the prediction service.
func New(store storage.PredictionStore, predictor Predictor, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("prediction")
	}
	return &Service{store: store, predictor: predictor, log: log}
}

// Predict validates the snapshot, obtains a prediction from the model service
// and records it under the user. The record is written only after a
// successful model response, so history never contains failed calls.
func (s *Service) Predict(ctx context.Context, userID string, features prediction.Features) (prediction.Record, error) {
	if err := features.Validate(); err != nil {
		return prediction.Record{}, err
	}

	result, err := s.predictor.Predict(ctx, features)
	if err != nil {
		return prediction.Record{}, err
	}

	rec, err := s.store.SavePrediction(ctx, prediction.Record{
		UserID:      userID,
		Input:       features,
		Survived:    result.Survived,
		Probability: result.Probability,
		ModelID:     result.ModelID,
	})
	if err != nil {
		return prediction.Record{}, err
	}

	s.log.WithContext(ctx).
		WithField("prediction_id", rec.ID).
		WithField("model_id", rec.ModelID).
		Info("prediction recorded")
	return rec, nil
}

// History returns the user's most recent predictions, newest first. The
// store enforces the cap on how far back it reaches.
func (s *Service) History(ctx context.Context, userID string) ([]prediction.Record, error) {
	records, err := s.store.PredictionHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []prediction.Record{}
	}
	return records, nil
}
