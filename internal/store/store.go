package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidField = errors.New("invalid field value")

// BulkUpdateColumns are the only mango_images columns a bulk update may write.
var BulkUpdateColumns = sqlbuild.NewColumns(
	"predicted_class", "confidence_score", "disease_type",
	"image_size", "processing_time", "client_ip", "is_verified",
)

// ImageUpdateColumns are the columns a single-record update may write.
var ImageUpdateColumns = sqlbuild.NewColumns(
	"predicted_class", "confidence_score", "disease_type",
	"image_size", "processing_time", "client_ip", "is_verified",
	"disease_classification", "notes",
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FirstStaffUserID(ctx context.Context) (int64, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	ListProfiles(ctx context.Context, page, limit int) ([]*models.UserProfile, int, error)
	GetProfileByUser(ctx context.Context, userID int64) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, p *models.UserProfile) error
	UpdateProfile(ctx context.Context, p *models.UserProfile) error

	CreateImage(ctx context.Context, img *models.MangoImage) error
	GetImage(ctx context.Context, id int64) (*models.MangoImage, error)
	ListImages(ctx context.Context, filter models.ImageFilter) ([]*models.MangoImage, int, error)
	UpdateImage(ctx context.Context, id int64, fields map[string]any) (*models.MangoImage, error)
	VerifyImage(ctx context.Context, id int64, verifierID *int64, notes *string) (*models.MangoImage, error)
	DeleteImage(ctx context.Context, id int64) error
	MissingImageIDs(ctx context.Context, ids []int64) ([]int64, error)
	BulkUpdateImages(ctx context.Context, ids []int64, fields map[string]any) (int64, error)
	CountImages(ctx context.Context) (int, error)
	ImageStats(ctx context.Context) (models.ImageStats, error)

	ListMLModels(ctx context.Context, activeOnly bool) ([]*models.MLModel, error)
	CreateMLModel(ctx context.Context, m *models.MLModel) error
	ActivateMLModel(ctx context.Context, id int64) (*models.MLModel, error)

	CreatePredictionLog(ctx context.Context, l *models.PredictionLog) error
	ListPredictionLogs(ctx context.Context, filter PredictionLogFilter) ([]*models.PredictionLog, int, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
}

type PredictionLogFilter struct {
	ImageID *int64
	Page    int
	Limit   int
}

type columnKind int

const (
	kindText columnKind = iota
	kindFloat
	kindBool
)

var imageColumnKinds = map[string]columnKind{
	"predicted_class":        kindText,
	"disease_classification": kindText,
	"disease_type":           kindText,
	"image_size":             kindText,
	"client_ip":              kindText,
	"notes":                  kindText,
	"confidence_score":       kindFloat,
	"processing_time":        kindFloat,
	"is_verified":            kindBool,
}

// CoerceImageFields converts decoded JSON values to the column types and
// rejects values of the wrong shape. Unknown columns are rejected too; callers
// check the allow-list first to report them by name.
func CoerceImageFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for col, v := range fields {
		kind, ok := imageColumnKinds[col]
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidField, col)
		}
		switch kind {
		case kindText:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidField, col)
			}
			out[col] = s
		case kindFloat:
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidField, col)
			}
			if col == "confidence_score" && (f < 0 || f > 1) {
				return nil, fmt.Errorf("%w: confidence_score must be between 0 and 1", ErrInvalidField)
			}
			out[col] = f
		case kindBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidField, col)
			}
			out[col] = b
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
