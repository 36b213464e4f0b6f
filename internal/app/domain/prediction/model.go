// Package prediction defines the passenger feature snapshot submitted for
// inference and the persisted prediction record.
package prediction

import (
	"time"

	"github.com/titanicml/prediction-backend/internal/errors"
)

// Features is one passenger's attributes as accepted by the model service.
type Features struct {
	Age             float64 `json:"age"`
	Fare            float64 `json:"fare"`
	SibSp           int     `json:"sibsp"`
	Parch           int     `json:"parch"`
	PassengerClass  int     `json:"passengerClass"`
	Sex             string  `json:"sex"`
	EmbarkationPort string  `json:"embarkationPort"`
	Title           string  `json:"title"`
	WereAlone       bool    `json:"wereAlone"`
	CabinKnown      bool    `json:"cabinKnown"`
}

var validSexes = map[string]bool{
	"male":   true,
	"female": true,
}

var validPorts = map[string]bool{
	"C": true,
	"Q": true,
	"S": true,
}

var validTitles = map[string]bool{
	"mr":     true,
	"mrs":    true,
	"miss":   true,
	"master": true,
	"rare":   true,
}

// Validate checks every field against its domain before the snapshot is sent
// downstream. The first offending field is reported.
func (f Features) Validate() error {
	if f.Age <= 0 || f.Age > 120 {
		return invalidField("age", "must be between 0 and 120")
	}
	if f.Fare <= 0 {
		return invalidField("fare", "must be positive")
	}
	if f.SibSp < 0 {
		return invalidField("sibsp", "must not be negative")
	}
	if f.Parch < 0 {
		return invalidField("parch", "must not be negative")
	}
	if f.PassengerClass < 1 || f.PassengerClass > 3 {
		return invalidField("passengerClass", "must be 1, 2 or 3")
	}
	if !validSexes[f.Sex] {
		return invalidField("sex", "must be male or female")
	}
	if !validPorts[f.EmbarkationPort] {
		return invalidField("embarkationPort", "must be C, Q or S")
	}
	if !validTitles[f.Title] {
		return invalidField("title", "must be mr, mrs, miss, master or rare")
	}
	return nil
}

func invalidField(field, reason string) error {
	return errors.Validation(field + " " + reason).WithDetails("field", field)
}

// Result is the model service's answer for one feature snapshot.
type Result struct {
	Survived    bool    `json:"survived"`
	Probability float64 `json:"probability"`
	ModelID     string  `json:"model_id"`
}

// Record is a persisted prediction: the input snapshot, the outcome and the
// model that produced it. Records are immutable once saved.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Input       Features  `json:"input"`
	Survived    bool      `json:"survived"`
	Probability float64   `json:"probability"`
	ModelID     string    `json:"model_id"`
	CreatedAt   time.Time `json:"created_at"`
}
