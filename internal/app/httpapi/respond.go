package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/titanicml/prediction-backend/internal/errors"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

// errorEnvelope is the single error shape every failed request returns.
type errorEnvelope struct {
	Detail        string                 `json:"detail"`
	Code          string                 `json:"code"`
	Timestamp     string                 `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a classified error to its response exactly once, at this
// boundary. Internal causes are logged, never serialized.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errors.FromError(err)

	log := h.log.WithContext(r.Context()).
		WithField("status", e.Status).
		WithField("code", e.Code)
	if e.Kind == errors.KindInternal {
		log.WithError(err).Error("request failed")
	} else {
		log.WithField("detail", e.Message).Warn("request rejected")
	}

	detail := e.Message
	details := e.Details
	if e.Kind == errors.KindInternal {
		// Never leak internals to the caller.
		detail = "internal server error"
		details = nil
	}

	writeJSON(w, e.Status, errorEnvelope{
		Detail:        detail,
		Code:          e.Code,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: logger.CorrelationID(r.Context()),
		Details:       details,
	})
}

func notFoundRoute() error {
	return errors.NotFound("route not found")
}

// decodeJSON parses a request body, rejecting unknown fields so typos fail
// loudly instead of silently defaulting.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("malformed request body")
	}
	return nil
}
