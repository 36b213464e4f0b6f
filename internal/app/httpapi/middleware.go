package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/errors"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

const correlationHeader = "X-Correlation-ID"

// withCorrelation adopts the caller's correlation id when it is a valid UUID,
// mints one otherwise, and echoes it on the response so callers can stitch
// logs to requests.
func (h *Handler) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(correlationHeader, id)
		ctx := logger.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRequestLog emits one structured line per request.
func (h *Handler) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		h.log.WithContext(r.Context()).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rec.status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client", r.RemoteAddr).
			Info("request handled")
	})
}

// requireRole verifies the bearer token, enforces the role requirement and
// threads the caller's identity through the request context.
func (h *Handler) requireRole(required user.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		claims, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := logger.WithUserID(r.Context(), claims.Subject)
		ctx = logger.WithRole(ctx, string(claims.Role))
		r = r.WithContext(ctx)

		if err := h.auth.Authorize(claims, required); err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return h.requireRole(user.RoleStandard, next)
}

func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return h.requireRole(user.RoleAdmin, next)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthorized("missing credentials")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("malformed authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
