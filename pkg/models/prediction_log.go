package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PredictionLog is the append-only audit row written for every inference call.
type PredictionLog struct {
	ID                uuid.UUID       `db:"id"                 json:"id"`
	ImageID           *int64          `db:"image_id"           json:"image_id,omitempty"`
	Timestamp         time.Time       `db:"timestamp"          json:"timestamp"`
	ClientIP          string          `db:"client_ip"          json:"client_ip"`
	UserAgent         string          `db:"user_agent"         json:"user_agent"`
	ResponseTime      float64         `db:"response_time"      json:"response_time"`
	Probabilities     []float64       `db:"probabilities"      json:"probabilities"`
	Labels            []string        `db:"labels"             json:"labels"`
	PredictionSummary json.RawMessage `db:"prediction_summary" json:"prediction_summary"`
	RawResponse       json.RawMessage `db:"raw_response"       json:"raw_response"`
}
