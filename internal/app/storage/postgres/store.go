package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	goerrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/app/storage"
	"github.com/titanicml/prediction-backend/internal/errors"
)

// pq error code for unique_violation.
const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PredictionStore = (*Store)(nil)

// Open connects to the database and verifies the connection.
func Open(url string) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", url)
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         user.Role(r.Role),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if goerrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return user.User{}, errors.Conflict("email already registered")
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return user.User{}, errors.NotFound("user not found")
		}
		return user.User{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return user.User{}, errors.NotFound("user not found")
		}
		return user.User{}, err
	}
	return row.toDomain(), nil
}

// --- PredictionStore --------------------------------------------------------

type predictionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Input       []byte    `db:"input"`
	Survived    bool      `db:"survived"`
	Probability float64   `db:"probability"`
	ModelID     string    `db:"model_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r predictionRow) toDomain() (prediction.Record, error) {
	rec := prediction.Record{
		ID:          r.ID,
		UserID:      r.UserID,
		Survived:    r.Survived,
		Probability: r.Probability,
		ModelID:     r.ModelID,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if len(r.Input) > 0 {
		if err := json.Unmarshal(r.Input, &rec.Input); err != nil {
			return prediction.Record{}, err
		}
	}
	return rec, nil
}

func (s *Store) SavePrediction(ctx context.Context, rec prediction.Record) (prediction.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	inputJSON, err := json.Marshal(rec.Input)
	if err != nil {
		return prediction.Record{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, user_id, input, survived, probability, model_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.UserID, inputJSON, rec.Survived, rec.Probability, rec.ModelID, rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if goerrors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
			return prediction.Record{}, errors.NotFound("user not found")
		}
		return prediction.Record{}, err
	}
	return rec, nil
}

func (s *Store) PredictionHistory(ctx context.Context, userID string) ([]prediction.Record, error) {
	var rows []predictionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, input, survived, probability, model_id, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, storage.HistoryLimit)
	if err != nil {
		return nil, err
	}

	result := make([]prediction.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}
