package prediction

import (
	"github.com/mangosense/mangosense-api/internal/ranking"
)

const (
	MessageClassified = "Image processed successfully"
	MessageUnknown    = "Could not confidently classify the image. Please upload a clear image of a mango leaf or fruit."
)

// Response is the data payload of a predict call.
type Response struct {
	PrimaryPrediction   PrimaryPrediction   `json:"primary_prediction"`
	Top3Predictions     []TopPrediction     `json:"top_3_predictions"`
	PredictionSummary   PredictionSummary   `json:"prediction_summary"`
	AlternativeSymptoms AlternativeSymptoms `json:"alternative_symptoms"`
	UserVerification    UserVerification    `json:"user_verification"`
	ModelUsed           string              `json:"model_used"`
	ModelPath           string              `json:"model_path"`
	DebugInfo           DebugInfo           `json:"debug_info"`
	SavedImageID        *int64              `json:"saved_image_id,omitempty"`
}

type PrimaryPrediction struct {
	Disease         string       `json:"disease"`
	Confidence      string       `json:"confidence"`
	ConfidenceScore float64      `json:"confidence_score"`
	ConfidenceLevel ranking.Tier `json:"confidence_level"`
	Treatment       string       `json:"treatment"`
	DetectionType   string       `json:"detection_type"`
}

type TopPrediction struct {
	ranking.Ranked
	Treatment     string `json:"treatment"`
	DetectionType string `json:"detection_type"`
}

type PredictionSummary struct {
	MostLikely           string       `json:"most_likely"`
	ConfidenceLevel      ranking.Tier `json:"confidence_level"`
	TotalDiseasesChecked int          `json:"total_diseases_checked"`
}

// AlternativeSymptoms names the runner-up diseases; the app fills in symptom text.
type AlternativeSymptoms struct {
	PrimaryDisease         string   `json:"primary_disease"`
	PrimaryDiseaseSymptoms []string `json:"primary_disease_symptoms"`
	AlternativeDiseases    []string `json:"alternative_diseases"`
}

// UserVerification echoes what the app sent about the user's own assessment.
type UserVerification struct {
	SelectedSymptoms    []any  `json:"selected_symptoms"`
	PrimarySymptoms     []any  `json:"primary_symptoms"`
	AlternativeSymptoms []any  `json:"alternative_symptoms"`
	DetectedDisease     string `json:"detected_disease"`
	IsDetectionCorrect  bool   `json:"is_detection_correct"`
	UserFeedback        string `json:"user_feedback"`
}

type DebugInfo struct {
	ModelLoaded   bool   `json:"model_loaded"`
	ImageSize     [2]int `json:"image_size"`
	ProcessedSize int    `json:"processed_size"`
}

// Result is a successful predict outcome.
type Result struct {
	Message string
	Data    *Response
	Unknown bool
}
