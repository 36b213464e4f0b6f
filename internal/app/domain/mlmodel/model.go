// Package mlmodel defines the metadata the model service reports about its
// trained models and the shapes used to start training runs.
package mlmodel

import "time"

// Status is a model's lifecycle state as reported by the model service.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusTraining Status = "training"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Metadata describes one trained (or in-training) model.
type Metadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Algorithm string    `json:"algorithm"`
	Features  []string  `json:"features"`
	Status    Status    `json:"status"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TrainingSpec is the request to start a training run.
type TrainingSpec struct {
	Algorithm string   `json:"algorithm"`
	Name      string   `json:"name"`
	Features  []string `json:"features"`
}

// TrainingJob acknowledges an accepted training run. The run itself completes
// asynchronously inside the model service.
type TrainingJob struct {
	JobID   string `json:"job_id"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
