package storage

import (
	"context"

	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/domain/user"
)

// HistoryLimit caps how many prediction records a history query ever
// returns. The cap is enforced inside the stores, not by callers.
const HistoryLimit = 10

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// PredictionStore persists immutable prediction records and serves the
// bounded per-user history.
type PredictionStore interface {
	SavePrediction(ctx context.Context, rec prediction.Record) (prediction.Record, error)
	PredictionHistory(ctx context.Context, userID string) ([]prediction.Record, error)
}
