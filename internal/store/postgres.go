package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, first_name, last_name, is_staff, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, date_joined`,
		u.Username, u.Email, u.FirstName, u.LastName, u.IsStaff, u.IsActive,
	).Scan(&u.ID, &u.DateJoined)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, first_name, last_name, is_staff, is_active, date_joined
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsStaff, &u.IsActive, &u.DateJoined)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// FirstStaffUserID returns the lowest-id active staff user, the fallback
// recipient for anonymous upload notifications.
func (s *PostgresStore) FirstStaffUserID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE is_staff AND is_active ORDER BY id LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("first staff user: %w", err)
	}
	return id, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create api key: user %d: %w", key.UserID, ErrNotFound)
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Profiles ---

const profileColumns = `id, user_id, province, city, barangay, postal_code, address, phone, created_at, updated_at`

func scanProfile(row scanner) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(&p.ID, &p.UserID, &p.Province, &p.City, &p.Barangay, &p.PostalCode,
		&p.Address, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (s *PostgresStore) ListProfiles(ctx context.Context, page, limit int) ([]*models.UserProfile, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	limit, offset := sqlbuild.Paginate(page, limit)
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

func (s *PostgresStore) GetProfileByUser(ctx context.Context, userID int64) (*models.UserProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (user_id, province, city, barangay, postal_code, address, phone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		p.UserID, p.Province, p.City, p.Barangay, p.PostalCode, p.Address, p.Phone,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create profile: user %d: %w", p.UserID, ErrNotFound)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE user_profiles SET province = $2, city = $3, barangay = $4, postal_code = $5,
		   address = $6, phone = $7, updated_at = NOW()
		 WHERE user_id = $1 RETURNING id, created_at, updated_at`,
		p.UserID, p.Province, p.City, p.Barangay, p.PostalCode, p.Address, p.Phone,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// --- Images ---

const imageColumns = `id, user_id, image_path, original_filename, image_size, predicted_class,
	disease_classification, disease_type, model_used, model_filename, confidence_score,
	processing_time, client_ip, uploaded_at, updated_at, is_verified, verified_by, verified_date,
	notes, user_feedback, user_confirmed_correct, latitude, longitude, location_source,
	location_address, location_consent_given, location_accuracy_confirmed, selected_symptoms,
	primary_symptoms, alternative_symptoms, detected_disease, top_diseases, symptoms_data`

func scanImage(row scanner) (*models.MangoImage, error) {
	var (
		img                                 models.MangoImage
		selected, primary, alternative, top []byte
		symptoms                            []byte
	)
	err := row.Scan(&img.ID, &img.UserID, &img.ImagePath, &img.OriginalFilename, &img.ImageSize,
		&img.PredictedClass, &img.DiseaseClassification, &img.DiseaseType, &img.ModelUsed,
		&img.ModelFilename, &img.ConfidenceScore, &img.ProcessingTime, &img.ClientIP,
		&img.UploadedAt, &img.UpdatedAt, &img.IsVerified, &img.VerifiedBy, &img.VerifiedDate,
		&img.Notes, &img.UserFeedback, &img.UserConfirmedCorrect, &img.Latitude, &img.Longitude,
		&img.LocationSource, &img.LocationAddress, &img.LocationConsentGiven, &img.LocationAccuracyOK,
		&selected, &primary, &alternative, &img.DetectedDisease, &top, &symptoms)
	if err != nil {
		return nil, err
	}
	img.SelectedSymptoms = selected
	img.PrimarySymptoms = primary
	img.AlternativeSymptoms = alternative
	img.TopDiseases = top
	img.SymptomsData = symptoms
	return &img, nil
}

// jsonArg passes raw JSON through, mapping empty to SQL NULL.
func jsonArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (s *PostgresStore) CreateImage(ctx context.Context, img *models.MangoImage) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO mango_images (user_id, image_path, original_filename, image_size, predicted_class,
		   disease_classification, disease_type, model_used, model_filename, confidence_score,
		   processing_time, client_ip, is_verified, notes, user_feedback, user_confirmed_correct,
		   latitude, longitude, location_source, location_address, location_consent_given,
		   location_accuracy_confirmed, selected_symptoms, primary_symptoms, alternative_symptoms,
		   detected_disease, top_diseases, symptoms_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		   $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		 RETURNING id, uploaded_at, updated_at`,
		img.UserID, img.ImagePath, img.OriginalFilename, img.ImageSize, img.PredictedClass,
		img.DiseaseClassification, img.DiseaseType, img.ModelUsed, img.ModelFilename, img.ConfidenceScore,
		img.ProcessingTime, img.ClientIP, img.IsVerified, img.Notes, img.UserFeedback, img.UserConfirmedCorrect,
		img.Latitude, img.Longitude, img.LocationSource, img.LocationAddress, img.LocationConsentGiven,
		img.LocationAccuracyOK, jsonArg(img.SelectedSymptoms), jsonArg(img.PrimarySymptoms),
		jsonArg(img.AlternativeSymptoms), img.DetectedDisease, jsonArg(img.TopDiseases), jsonArg(img.SymptomsData),
	).Scan(&img.ID, &img.UploadedAt, &img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetImage(ctx context.Context, id int64) (*models.MangoImage, error) {
	img, err := scanImage(s.pool.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM mango_images WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

func (s *PostgresStore) ListImages(ctx context.Context, filter models.ImageFilter) ([]*models.MangoImage, int, error) {
	var b sqlbuild.Builder
	if filter.DiseaseType != nil {
		b.Where("disease_type", *filter.DiseaseType)
	}
	if filter.DiseaseClassification != nil {
		b.Where("disease_classification", *filter.DiseaseClassification)
	}
	if filter.IsVerified != nil {
		b.Where("is_verified", *filter.IsVerified)
	}
	if filter.UserID != nil {
		b.Where("user_id", *filter.UserID)
	}
	where := b.Clause()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM mango_images"+where, b.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}

	limit, offset := sqlbuild.Paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM mango_images%s ORDER BY uploaded_at DESC, id DESC LIMIT %s OFFSET %s`,
		imageColumns, where, b.Arg(limit), b.Arg(offset))

	rows, err := s.pool.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []*models.MangoImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, total, rows.Err()
}

func (s *PostgresStore) UpdateImage(ctx context.Context, id int64, fields map[string]any) (*models.MangoImage, error) {
	if bad := ImageUpdateColumns.Invalid(fields); len(bad) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, bad)
	}
	if len(fields) == 0 {
		return s.GetImage(ctx, id)
	}
	values, err := CoerceImageFields(fields)
	if err != nil {
		return nil, err
	}

	var b sqlbuild.Builder
	set := b.Set(values)
	b.Where("id", id)

	img, err := scanImage(s.pool.QueryRow(ctx,
		`UPDATE mango_images SET `+set+`, updated_at = NOW()`+b.Clause()+` RETURNING `+imageColumns,
		b.Args()...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update image: %w", err)
	}
	return img, nil
}

func (s *PostgresStore) VerifyImage(ctx context.Context, id int64, verifierID *int64, notes *string) (*models.MangoImage, error) {
	img, err := scanImage(s.pool.QueryRow(ctx,
		`UPDATE mango_images SET is_verified = TRUE, verified_by = $2, verified_date = NOW(),
		   notes = COALESCE($3, notes), updated_at = NOW()
		 WHERE id = $1 RETURNING `+imageColumns, id, verifierID, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verify image: %w", err)
	}
	return img, nil
}

func (s *PostgresStore) DeleteImage(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mango_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MissingImageIDs returns the distinct ids with no mango_images row, sorted.
func (s *PostgresStore) MissingImageIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM mango_images WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan image id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return missing(ids, found), nil
}

func (s *PostgresStore) BulkUpdateImages(ctx context.Context, ids []int64, fields map[string]any) (int64, error) {
	if bad := BulkUpdateColumns.Invalid(fields); len(bad) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, bad)
	}
	if len(ids) == 0 || len(fields) == 0 {
		return 0, nil
	}
	values, err := CoerceImageFields(fields)
	if err != nil {
		return 0, err
	}

	var b sqlbuild.Builder
	set := b.Set(values)
	b.WhereAny("id", ids)

	tag, err := s.pool.Exec(ctx, `UPDATE mango_images SET `+set+`, updated_at = NOW()`+b.Clause(), b.Args()...)
	if err != nil {
		return 0, fmt.Errorf("bulk update images: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountImages(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mango_images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ImageStats(ctx context.Context) (models.ImageStats, error) {
	var st models.ImageStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE LOWER(disease_classification) = 'healthy'),
		        COUNT(*) FILTER (WHERE is_verified)
		 FROM mango_images`,
	).Scan(&st.Total, &st.Healthy, &st.Verified)
	if err != nil {
		return models.ImageStats{}, fmt.Errorf("image stats: %w", err)
	}
	st.Diseased = st.Total - st.Healthy
	return st, nil
}

// --- Model registry ---

const mlModelColumns = `id, name, version, family, file_path, accuracy, training_date, is_active, created_at`

func scanMLModel(row scanner) (*models.MLModel, error) {
	var m models.MLModel
	err := row.Scan(&m.ID, &m.Name, &m.Version, &m.Family, &m.FilePath, &m.Accuracy,
		&m.TrainingDate, &m.IsActive, &m.CreatedAt)
	return &m, err
}

func (s *PostgresStore) ListMLModels(ctx context.Context, activeOnly bool) ([]*models.MLModel, error) {
	query := `SELECT ` + mlModelColumns + ` FROM ml_models`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY family, created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ml models: %w", err)
	}
	defer rows.Close()

	var out []*models.MLModel
	for rows.Next() {
		m, err := scanMLModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ml model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMLModel inserts a registry entry. An entry created active displaces
// the family's current active entry in the same transaction.
func (s *PostgresStore) CreateMLModel(ctx context.Context, m *models.MLModel) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if m.IsActive {
			if _, err := tx.Exec(ctx,
				`UPDATE ml_models SET is_active = FALSE WHERE family = $1 AND is_active`, m.Family); err != nil {
				return fmt.Errorf("deactivate ml models: %w", err)
			}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO ml_models (name, version, family, file_path, accuracy, training_date, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
			m.Name, m.Version, m.Family, m.FilePath, m.Accuracy, m.TrainingDate, m.IsActive,
		).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create ml model: %w", err)
		}
		return nil
	})
}

// ActivateMLModel marks id active and deactivates every other entry of its family.
func (s *PostgresStore) ActivateMLModel(ctx context.Context, id int64) (*models.MLModel, error) {
	var out *models.MLModel
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var family string
		err := tx.QueryRow(ctx, `SELECT family FROM ml_models WHERE id = $1 FOR UPDATE`, id).Scan(&family)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock ml model: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE ml_models SET is_active = FALSE WHERE family = $1 AND id <> $2 AND is_active`,
			family, id); err != nil {
			return fmt.Errorf("deactivate ml models: %w", err)
		}

		out, err = scanMLModel(tx.QueryRow(ctx,
			`UPDATE ml_models SET is_active = TRUE WHERE id = $1 RETURNING `+mlModelColumns, id))
		if err != nil {
			return fmt.Errorf("activate ml model: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Prediction logs ---

func (s *PostgresStore) CreatePredictionLog(ctx context.Context, l *models.PredictionLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prediction_logs (id, image_id, timestamp, client_ip, user_agent, response_time,
		   probabilities, labels, prediction_summary, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.ImageID, l.Timestamp, l.ClientIP, l.UserAgent, l.ResponseTime,
		l.Probabilities, l.Labels, []byte(l.PredictionSummary), []byte(l.RawResponse))
	if err != nil {
		return fmt.Errorf("create prediction log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPredictionLogs(ctx context.Context, filter PredictionLogFilter) ([]*models.PredictionLog, int, error) {
	var b sqlbuild.Builder
	if filter.ImageID != nil {
		b.Where("image_id", *filter.ImageID)
	}
	where := b.Clause()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM prediction_logs"+where, b.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prediction logs: %w", err)
	}

	limit, offset := sqlbuild.Paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT id, image_id, timestamp, client_ip, user_agent, response_time,
		probabilities, labels, prediction_summary, raw_response
		FROM prediction_logs%s ORDER BY timestamp DESC LIMIT %s OFFSET %s`,
		where, b.Arg(limit), b.Arg(offset))

	rows, err := s.pool.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prediction logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.PredictionLog
	for rows.Next() {
		var (
			l                models.PredictionLog
			summary, rawResp []byte
		)
		if err := rows.Scan(&l.ID, &l.ImageID, &l.Timestamp, &l.ClientIP, &l.UserAgent, &l.ResponseTime,
			&l.Probabilities, &l.Labels, &summary, &rawResp); err != nil {
			return nil, 0, fmt.Errorf("scan prediction log: %w", err)
		}
		l.PredictionSummary = summary
		l.RawResponse = rawResp
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (notification_type, title, message, related_image_id, user_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, is_read, created_at`,
		n.NotificationType, n.Title, n.Message, n.RelatedImageID, n.UserID,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// missing returns the distinct ids absent from found, sorted.
func missing(ids []int64, found map[int64]bool) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !found[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
