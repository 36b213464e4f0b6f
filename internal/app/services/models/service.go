// Package models exposes the admin-facing model management operations,
// delegating to the model service and caching the model list.
package models

import (
	"context"
	"strings"

	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
	"github.com/titanicml/prediction-backend/internal/errors"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

// ModelClient is the slice of the model service client this package needs.
type ModelClient interface {
	ListModels(ctx context.Context) ([]mlmodel.Metadata, error)
	TrainModel(ctx context.Context, spec mlmodel.TrainingSpec) (mlmodel.TrainingJob, error)
	DeleteModel(ctx context.Context, id string) error
}

// Service manages models through the model service.
type Service struct {
	client ModelClient
	cache  Cache
	log    *logger.Logger
}

// New constructs the models service. A nil cache disables caching.
func New(client ModelClient, cache Cache, log *logger.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = logger.NewDefault("models")
	}
	return &Service{client: client, cache: cache, log: log}
}

// List returns the model service's model inventory, served from cache when
// fresh. A cache failure is invisible to the caller.
func (s *Service) List(ctx context.Context) ([]mlmodel.Metadata, error) {
	if cached, ok := s.cache.GetModelList(ctx); ok {
		return cached, nil
	}

	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []mlmodel.Metadata{}
	}

	s.cache.SetModelList(ctx, models)
	return models, nil
}

// Train starts a training run and invalidates the cached list so the new
// model shows up on the next read.
func (s *Service) Train(ctx context.Context, spec mlmodel.TrainingSpec) (mlmodel.TrainingJob, error) {
	spec.Algorithm = strings.TrimSpace(spec.Algorithm)
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Algorithm == "" {
		return mlmodel.TrainingJob{}, errors.Validation("algorithm is required").WithDetails("field", "algorithm")
	}
	if len(spec.Features) == 0 {
		return mlmodel.TrainingJob{}, errors.Validation("at least one feature is required").WithDetails("field", "features")
	}

	job, err := s.client.TrainModel(ctx, spec)
	if err != nil {
		return mlmodel.TrainingJob{}, err
	}

	s.cache.InvalidateModelList(ctx)
	s.log.WithContext(ctx).
		WithField("job_id", job.JobID).
		WithField("algorithm", spec.Algorithm).
		Info("training run started")
	return job, nil
}

// Delete removes a model and invalidates the cached list.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Validation("model id is required").WithDetails("field", "id")
	}

	if err := s.client.DeleteModel(ctx, id); err != nil {
		return err
	}

	s.cache.InvalidateModelList(ctx)
	s.log.WithContext(ctx).WithField("model_id", id).Info("model deleted")
	return nil
}
