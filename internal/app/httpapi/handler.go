// Package httpapi exposes the backend over HTTP: authentication, the
// prediction flow and admin model management, all behind a uniform error
// envelope and per-request correlation ids.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/titanicml/prediction-backend/internal/app"
	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/metrics"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

// Handler is the HTTP surface of the backend.
type Handler struct {
	auth        authService
	predictions predictionService
	models      modelService
	log         *logger.Logger
	version     string
}

// The service interfaces the handler depends on; satisfied by the concrete
// services in internal/app/services.
type authService = app.AuthService
type predictionService = app.PredictionService
type modelService = app.ModelService

// New constructs the handler around an assembled application.
func New(application *app.Application, version string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		auth:        application.Auth,
		predictions: application.Predictions,
		models:      application.Models,
		log:         log,
		version:     version,
	}
}

// Router builds the full route table with middleware applied.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/signup", h.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/predict", h.authenticated(h.handlePredict)).Methods(http.MethodPost)
	r.HandleFunc("/predict/history", h.authenticated(h.handleHistory)).Methods(http.MethodGet)

	r.HandleFunc("/models", h.adminOnly(h.handleListModels)).Methods(http.MethodGet)
	r.HandleFunc("/models/train", h.adminOnly(h.handleTrainModel)).Methods(http.MethodPost)
	r.HandleFunc("/models/{id}", h.adminOnly(h.handleDeleteModel)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(h.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)

	var handler http.Handler = r
	handler = h.withRequestLog(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = h.withCorrelation(handler)
	return handler
}

// --- liveness ---------------------------------------------------------------

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "prediction-backend",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- auth -------------------------------------------------------------------

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.auth.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:        created.ID,
		Email:     created.Email,
		Role:      string(created.Role),
		CreatedAt: created.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// --- predictions ------------------------------------------------------------

type predictionResponse struct {
	ID          string              `json:"id"`
	Input       prediction.Features `json:"input"`
	Survived    bool                `json:"survived"`
	Probability float64             `json:"probability"`
	ModelID     string              `json:"model_id"`
	CreatedAt   string              `json:"created_at"`
}

func toPredictionResponse(rec prediction.Record) predictionResponse {
	return predictionResponse{
		ID:          rec.ID,
		Input:       rec.Input,
		Survived:    rec.Survived,
		Probability: rec.Probability,
		ModelID:     rec.ModelID,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var features prediction.Features
	if err := decodeJSON(r, &features); err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.predictions.Predict(r.Context(), logger.UserID(r.Context()), features)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPredictionResponse(rec))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.predictions.History(r.Context(), logger.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]predictionResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toPredictionResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// --- model management -------------------------------------------------------

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *Handler) handleTrainModel(w http.ResponseWriter, r *http.Request) {
	var spec mlmodel.TrainingSpec
	if err := decodeJSON(r, &spec); err != nil {
		h.writeError(w, r, err)
		return
	}

	job, err := h.models.Train(r.Context(), spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.models.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- router fallbacks -------------------------------------------------------

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, notFoundRoute())
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, notFoundRoute())
}
