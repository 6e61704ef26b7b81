package models

import (
	"encoding/json"
	"time"
)

// MangoImage is a persisted prediction record. ConfidenceScore is the top
// probability of the model run that produced it and is never recomputed.
type MangoImage struct {
	ID                    int64           `db:"id"                     json:"id"`
	UserID                *int64          `db:"user_id"                json:"user_id,omitempty"`
	ImagePath             string          `db:"image_path"             json:"image_path"`
	OriginalFilename      string          `db:"original_filename"      json:"original_filename"`
	ImageSize             string          `db:"image_size"             json:"image_size"`
	PredictedClass        string          `db:"predicted_class"        json:"predicted_class"`
	DiseaseClassification string          `db:"disease_classification" json:"disease_classification"`
	DiseaseType           string          `db:"disease_type"           json:"disease_type"`
	ModelUsed             string          `db:"model_used"             json:"model_used"`
	ModelFilename         string          `db:"model_filename"         json:"model_filename"`
	ConfidenceScore       float64         `db:"confidence_score"       json:"confidence_score"`
	ProcessingTime        float64         `db:"processing_time"        json:"processing_time"`
	ClientIP              string          `db:"client_ip"              json:"client_ip"`
	UploadedAt            time.Time       `db:"uploaded_at"            json:"uploaded_at"`
	UpdatedAt             time.Time       `db:"updated_at"             json:"updated_at"`
	IsVerified            bool            `db:"is_verified"            json:"is_verified"`
	VerifiedBy            *int64          `db:"verified_by"            json:"verified_by,omitempty"`
	VerifiedDate          *time.Time      `db:"verified_date"          json:"verified_date,omitempty"`
	Notes                 string          `db:"notes"                  json:"notes"`
	UserFeedback          *string         `db:"user_feedback"          json:"user_feedback,omitempty"`
	UserConfirmedCorrect  *bool           `db:"user_confirmed_correct" json:"user_confirmed_correct,omitempty"`
	Latitude              *float64        `db:"latitude"               json:"latitude,omitempty"`
	Longitude             *float64        `db:"longitude"              json:"longitude,omitempty"`
	LocationSource        string          `db:"location_source"        json:"location_source"`
	LocationAddress       string          `db:"location_address"       json:"location_address"`
	LocationConsentGiven  bool            `db:"location_consent_given" json:"location_consent_given"`
	LocationAccuracyOK    bool            `db:"location_accuracy_confirmed" json:"location_accuracy_confirmed"`
	SelectedSymptoms      json.RawMessage `db:"selected_symptoms"      json:"selected_symptoms,omitempty"`
	PrimarySymptoms       json.RawMessage `db:"primary_symptoms"       json:"primary_symptoms,omitempty"`
	AlternativeSymptoms   json.RawMessage `db:"alternative_symptoms"   json:"alternative_symptoms,omitempty"`
	DetectedDisease       string          `db:"detected_disease"       json:"detected_disease"`
	TopDiseases           json.RawMessage `db:"top_diseases"           json:"top_diseases,omitempty"`
	SymptomsData          json.RawMessage `db:"symptoms_data"          json:"symptoms_data,omitempty"`
}

// ImageFilter narrows ListImages. Nil fields are ignored.
type ImageFilter struct {
	DiseaseType           *string
	DiseaseClassification *string
	IsVerified            *bool
	UserID                *int64
	Page                  int
	Limit                 int
}

// ImageStats are the aggregate counts reported by the model status endpoint.
type ImageStats struct {
	Total    int `json:"total_images"`
	Healthy  int `json:"healthy_images"`
	Diseased int `json:"diseased_images"`
	Verified int `json:"verified_images"`
}
