package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/errors"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      0,
	}
}

// newTestClient builds a client against url with sleeping stubbed out; the
// returned slice records each backoff the client would have waited.
func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()

	c, err := New(Config{
		BaseURL: url,
		Timeout: 2 * time.Second,
		Policy:  testPolicy(),
	})
	require.NoError(t, err)

	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestPredictSuccess(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method

		var features prediction.Features
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&features))
		assert.Equal(t, "female", features.Sex)

		json.NewEncoder(w).Encode(prediction.Result{Survived: true, Probability: 0.93, ModelID: "model-a"})
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	result, err := c.Predict(context.Background(), prediction.Features{Sex: "female", Title: "mrs"})
	require.NoError(t, err)

	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.True(t, result.Survived)
	assert.Equal(t, "model-a", result.ModelID)
	assert.Empty(t, *slept)
}

func TestPredictRetriesUntilExhausted(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	_, err := c.Predict(context.Background(), prediction.Features{})

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	// Exponential backoff without jitter: base, then doubled.
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestPredictSucceedsAfterRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(prediction.Result{Survived: false, Probability: 0.12, ModelID: "model-a"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	result, err := c.Predict(context.Background(), prediction.Features{})
	require.NoError(t, err)
	assert.False(t, result.Survived)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestPredictValidationRejectionIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"detail": "age out of range"})
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	_, err := c.Predict(context.Background(), prediction.Features{})

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Contains(t, err.Error(), "age out of range")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Empty(t, *slept)
}

func TestTrainModelDoesNotRetryAfterServerError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	_, err := c.TrainModel(context.Background(), mlmodel.TrainingSpec{Algorithm: "random_forest"})

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Empty(t, *slept)
}

func TestTrainModelRetriesRefusedConnection(t *testing.T) {
	// A server that never accepted the connection: the request provably
	// never left, so even a non-idempotent call may retry.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, slept := newTestClient(t, url)
	_, err := c.TrainModel(context.Background(), mlmodel.TrainingSpec{Algorithm: "random_forest"})

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamUnavailable))
	assert.Len(t, *slept, 2)
}

func TestDeleteModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/models/model-x", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	err := c.DeleteModel(context.Background(), "model-x")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestDeleteModelSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	require.NoError(t, c.DeleteModel(context.Background(), "model-x"))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]mlmodel.Metadata{
			{ID: "model-a", Status: mlmodel.StatusReady},
			{ID: "model-b", Status: mlmodel.StatusTraining},
		})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, mlmodel.StatusReady, models[0].Status)
}

func TestTimeoutClassifiedAsUpstreamTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := New(Config{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
		Policy:  Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	_, err = c.Predict(context.Background(), prediction.Features{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstreamTimeout))
}

func TestCallerCancellationStopsRetrying(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Predict(ctx, prediction.Features{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: ""})
	assert.Error(t, err)
}
