package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/app/storage"
	"github.com/titanicml/prediction-backend/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	users        map[string]user.User
	usersByEmail map[string]string
	predictions  map[string][]prediction.Record
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PredictionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		predictions:  make(map[string][]prediction.Record),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, errors.Conflict("email already registered")
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = email
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, errors.NotFound("user not found")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, errors.NotFound("user not found")
	}
	return s.users[id], nil
}

// PredictionStore implementation ----------------------------------------------

func (s *Store) SavePrediction(_ context.Context, rec prediction.Record) (prediction.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.UserID]; !ok {
		return prediction.Record{}, errors.NotFound("user not found")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.predictions[rec.UserID] = append(s.predictions[rec.UserID], rec)
	return rec, nil
}

func (s *Store) PredictionHistory(_ context.Context, userID string) ([]prediction.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.predictions[userID]
	result := make([]prediction.Record, len(records))
	copy(result, records)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > storage.HistoryLimit {
		result = result[:storage.HistoryLimit]
	}
	return result, nil
}
