package models

import "time"

// MLModel is a model registry entry. At most one entry per family is active.
type MLModel struct {
	ID           int64      `db:"id"            json:"id"`
	Name         string     `db:"name"          json:"name"`
	Version      string     `db:"version"       json:"version"`
	Family       string     `db:"family"        json:"family"`
	FilePath     string     `db:"file_path"     json:"file_path"`
	Accuracy     *float64   `db:"accuracy"      json:"accuracy,omitempty"`
	TrainingDate *time.Time `db:"training_date" json:"training_date,omitempty"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
}
