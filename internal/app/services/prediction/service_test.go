package prediction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/app/storage/memory"
	"github.com/titanicml/prediction-backend/internal/errors"
)

type stubPredictor struct {
	result prediction.Result
	err    error
	calls  int
}

func (s *stubPredictor) Predict(context.Context, prediction.Features) (prediction.Result, error) {
	s.calls++
	return s.result, s.err
}

func validFeatures() prediction.Features {
	return prediction.Features{
		Age:             29,
		Fare:            71.28,
		SibSp:           1,
		PassengerClass:  1,
		Sex:             "female",
		EmbarkationPort: "C",
		Title:           "mrs",
		CabinKnown:      true,
	}
}

func TestPredictRecordsResult(t *testing.T) {
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Email: "alice@example.com"})
	require.NoError(t, err)

	predictor := &stubPredictor{result: prediction.Result{Survived: true, Probability: 0.93, ModelID: "model-a"}}
	svc := New(store, predictor, nil)

	rec, err := svc.Predict(context.Background(), u.ID, validFeatures())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.True(t, rec.Survived)
	assert.Equal(t, "model-a", rec.ModelID)

	history, err := svc.History(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)
}

func TestPredictRejectsInvalidFeatures(t *testing.T) {
	predictor := &stubPredictor{}
	svc := New(memory.New(), predictor, nil)

	bad := validFeatures()
	bad.Age = 300

	_, err := svc.Predict(context.Background(), "user-1", bad)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Zero(t, predictor.calls, "invalid input must never reach the model service")
}

func TestPredictDoesNotRecordUpstreamFailures(t *testing.T) {
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Email: "alice@example.com"})
	require.NoError(t, err)

	predictor := &stubPredictor{err: errors.UpstreamUnavailable("model service unavailable", nil)}
	svc := New(store, predictor, nil)

	_, err = svc.Predict(context.Background(), u.ID, validFeatures())
	assert.True(t, errors.IsKind(err, errors.KindUpstreamUnavailable))

	history, err := svc.History(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryIsNeverNil(t *testing.T) {
	svc := New(memory.New(), &stubPredictor{}, nil)

	history, err := svc.History(context.Background(), "anyone")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
