package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMapping(t *testing.T) {
	cause := fmt.Errorf("boom")

	cases := []struct {
		name   string
		err    *Error
		kind   Kind
		status int
		code   string
	}{
		{"validation", Validation("bad input"), KindValidation, http.StatusUnprocessableEntity, "ERR_422"},
		{"unauthorized", Unauthorized("no token"), KindUnauthorized, http.StatusUnauthorized, "ERR_401"},
		{"forbidden", Forbidden("admin only"), KindForbidden, http.StatusForbidden, "ERR_403"},
		{"not_found", NotFound("missing"), KindNotFound, http.StatusNotFound, "ERR_404"},
		{"conflict", Conflict("duplicate"), KindConflict, http.StatusConflict, "ERR_409"},
		{"upstream_unavailable", UpstreamUnavailable("down", cause), KindUpstreamUnavailable, http.StatusBadGateway, "ERR_502"},
		{"upstream_timeout", UpstreamTimeout("slow", cause), KindUpstreamTimeout, http.StatusGatewayTimeout, "ERR_504"},
		{"internal", Internal("oops", cause), KindInternal, http.StatusInternalServerError, "ERR_500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestFromErrorPassesThroughClassified(t *testing.T) {
	orig := NotFound("user not found")
	wrapped := fmt.Errorf("loading account: %w", orig)

	got := FromError(wrapped)
	require.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "user not found", got.Message)
}

func TestFromErrorWrapsUnclassified(t *testing.T) {
	got := FromError(fmt.Errorf("driver exploded"))
	require.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "internal server error", got.Message)
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Conflict("email already registered"))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindValidation))
}

func TestWithDetails(t *testing.T) {
	err := Validation("age must be between 0 and 120").WithDetails("field", "age")
	require.NotNil(t, err.Details)
	assert.Equal(t, "age", err.Details["field"])
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := UpstreamUnavailable("model service unavailable", cause)
	assert.ErrorIs(t, err, cause)
}
