// Package mock provides an in-memory store.Store for handler and service tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

// Store is a concurrency-safe in-memory implementation of store.Store.
// Set FailOn[<method name>] to make that method return the error.
type Store struct {
	mu sync.Mutex

	FailOn map[string]error

	users         map[int64]*models.User
	apiKeys       map[uuid.UUID]*models.APIKey
	profiles      map[int64]*models.UserProfile // by user id
	images        map[int64]*models.MangoImage
	mlModels      map[int64]*models.MLModel
	logs          []*models.PredictionLog
	notifications []*models.Notification
	nextID        int64
	now           func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		FailOn:   make(map[string]error),
		users:    make(map[int64]*models.User),
		apiKeys:  make(map[uuid.UUID]*models.APIKey),
		profiles: make(map[int64]*models.UserProfile),
		images:   make(map[int64]*models.MangoImage),
		mlModels: make(map[int64]*models.MLModel),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) fail(method string) error {
	return s.FailOn[method]
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail("Ping")
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateUser"); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return store.ErrDuplicateKey
		}
	}
	u.ID = s.id()
	u.DateJoined = s.now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FirstStaffUserID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FirstStaffUserID"); err != nil {
		return 0, err
	}
	var best int64
	for id, u := range s.users {
		if u.IsStaff && u.IsActive && (best == 0 || id < best) {
			best = id
		}
	}
	if best == 0 {
		return 0, store.ErrNotFound
	}
	return best, nil
}

// --- API keys ---

func (s *Store) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAPIKeyByPrefix"); err != nil {
		return nil, err
	}
	var out []*models.APIKey
	for _, k := range s.apiKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAPIKeyLastUsed"); err != nil {
		return err
	}
	if k, ok := s.apiKeys[id]; ok {
		now := s.now()
		k.LastUsedAt = &now
	}
	return nil
}

func (s *Store) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateAPIKey"); err != nil {
		return err
	}
	if _, ok := s.apiKeys[key.ID]; ok {
		return store.ErrDuplicateKey
	}
	if _, ok := s.users[key.UserID]; !ok {
		return fmt.Errorf("create api key: user %d: %w", key.UserID, store.ErrNotFound)
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

// --- Profiles ---

func (s *Store) ListProfiles(_ context.Context, page, limit int) ([]*models.UserProfile, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListProfiles"); err != nil {
		return nil, 0, err
	}
	all := make([]*models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page, limit), len(all), nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID int64) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProfileByUser"); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreateProfile(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateProfile"); err != nil {
		return err
	}
	if _, ok := s.users[p.UserID]; !ok {
		return fmt.Errorf("create profile: user %d: %w", p.UserID, store.ErrNotFound)
	}
	if _, ok := s.profiles[p.UserID]; ok {
		return store.ErrDuplicateKey
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateProfile"); err != nil {
		return err
	}
	existing, ok := s.profiles[p.UserID]
	if !ok {
		return store.ErrNotFound
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// --- Images ---

func (s *Store) CreateImage(_ context.Context, img *models.MangoImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateImage"); err != nil {
		return err
	}
	img.ID = s.id()
	img.UploadedAt = s.now()
	img.UpdatedAt = img.UploadedAt
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) GetImage(_ context.Context, id int64) (*models.MangoImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetImage"); err != nil {
		return nil, err
	}
	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (s *Store) ListImages(_ context.Context, f models.ImageFilter) ([]*models.MangoImage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListImages"); err != nil {
		return nil, 0, err
	}
	var all []*models.MangoImage
	for _, img := range s.images {
		if f.DiseaseType != nil && img.DiseaseType != *f.DiseaseType {
			continue
		}
		if f.DiseaseClassification != nil && img.DiseaseClassification != *f.DiseaseClassification {
			continue
		}
		if f.IsVerified != nil && img.IsVerified != *f.IsVerified {
			continue
		}
		if f.UserID != nil && (img.UserID == nil || *img.UserID != *f.UserID) {
			continue
		}
		cp := *img
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, f.Page, f.Limit), len(all), nil
}

func (s *Store) UpdateImage(_ context.Context, id int64, fields map[string]any) (*models.MangoImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateImage"); err != nil {
		return nil, err
	}
	if bad := store.ImageUpdateColumns.Invalid(fields); len(bad) > 0 {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidField, bad)
	}
	values, err := store.CoerceImageFields(fields)
	if err != nil {
		return nil, err
	}
	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	apply(img, values)
	img.UpdatedAt = s.now()
	cp := *img
	return &cp, nil
}

func (s *Store) VerifyImage(_ context.Context, id int64, verifierID *int64, notes *string) (*models.MangoImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("VerifyImage"); err != nil {
		return nil, err
	}
	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	now := s.now()
	img.IsVerified = true
	img.VerifiedBy = verifierID
	img.VerifiedDate = &now
	if notes != nil {
		img.Notes = *notes
	}
	img.UpdatedAt = now
	cp := *img
	return &cp, nil
}

func (s *Store) DeleteImage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteImage"); err != nil {
		return err
	}
	if _, ok := s.images[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.images, id)
	return nil
}

func (s *Store) MissingImageIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("MissingImageIDs"); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range ids {
		if _, ok := s.images[id]; !ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) BulkUpdateImages(_ context.Context, ids []int64, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BulkUpdateImages"); err != nil {
		return 0, err
	}
	if bad := store.BulkUpdateColumns.Invalid(fields); len(bad) > 0 {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidField, bad)
	}
	values, err := store.CoerceImageFields(fields)
	if err != nil {
		return 0, err
	}
	var n int64
	done := make(map[int64]bool)
	for _, id := range ids {
		img, ok := s.images[id]
		if !ok || done[id] {
			continue
		}
		apply(img, values)
		img.UpdatedAt = s.now()
		done[id] = true
		n++
	}
	return n, nil
}

func (s *Store) CountImages(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountImages"); err != nil {
		return 0, err
	}
	return len(s.images), nil
}

func (s *Store) ImageStats(_ context.Context) (models.ImageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ImageStats"); err != nil {
		return models.ImageStats{}, err
	}
	var st models.ImageStats
	for _, img := range s.images {
		st.Total++
		if strings.EqualFold(img.DiseaseClassification, "healthy") {
			st.Healthy++
		}
		if img.IsVerified {
			st.Verified++
		}
	}
	st.Diseased = st.Total - st.Healthy
	return st, nil
}

// --- Model registry ---

func (s *Store) ListMLModels(_ context.Context, activeOnly bool) ([]*models.MLModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListMLModels"); err != nil {
		return nil, err
	}
	var out []*models.MLModel
	for _, m := range s.mlModels {
		if activeOnly && !m.IsActive {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateMLModel(_ context.Context, m *models.MLModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateMLModel"); err != nil {
		return err
	}
	for _, existing := range s.mlModels {
		if existing.Name == m.Name && existing.Version == m.Version {
			return store.ErrDuplicateKey
		}
	}
	if m.IsActive {
		s.deactivateFamily(m.Family, 0)
	}
	m.ID = s.id()
	m.CreatedAt = s.now()
	cp := *m
	s.mlModels[m.ID] = &cp
	return nil
}

func (s *Store) ActivateMLModel(_ context.Context, id int64) (*models.MLModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ActivateMLModel"); err != nil {
		return nil, err
	}
	m, ok := s.mlModels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.deactivateFamily(m.Family, id)
	m.IsActive = true
	cp := *m
	return &cp, nil
}

func (s *Store) deactivateFamily(family string, except int64) {
	for id, m := range s.mlModels {
		if m.Family == family && id != except {
			m.IsActive = false
		}
	}
}

// --- Prediction logs ---

func (s *Store) CreatePredictionLog(_ context.Context, l *models.PredictionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreatePredictionLog"); err != nil {
		return err
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *Store) ListPredictionLogs(_ context.Context, f store.PredictionLogFilter) ([]*models.PredictionLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListPredictionLogs"); err != nil {
		return nil, 0, err
	}
	var all []*models.PredictionLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if f.ImageID != nil && (l.ImageID == nil || *l.ImageID != *f.ImageID) {
			continue
		}
		cp := *l
		all = append(all, &cp)
	}
	return paginate(all, f.Page, f.Limit), len(all), nil
}

// --- Notifications ---

func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateNotification"); err != nil {
		return err
	}
	n.ID = s.id()
	n.CreatedAt = s.now()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

// --- Inspection helpers for tests ---

// Images returns copies of every stored image, ordered by id.
func (s *Store) Images() []*models.MangoImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.MangoImage, 0, len(s.images))
	for _, img := range s.images {
		cp := *img
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PredictionLogs returns copies of the audit rows in insertion order.
func (s *Store) PredictionLogs() []*models.PredictionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.PredictionLog, len(s.logs))
	for i, l := range s.logs {
		cp := *l
		out[i] = &cp
	}
	return out
}

// Notifications returns copies of the notifications in insertion order.
func (s *Store) Notifications() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Notification, len(s.notifications))
	for i, n := range s.notifications {
		cp := *n
		out[i] = &cp
	}
	return out
}

// SeedImage inserts img directly, assigning an id.
func (s *Store) SeedImage(img *models.MangoImage) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	img.ID = s.id()
	if img.UploadedAt.IsZero() {
		img.UploadedAt = s.now()
	}
	cp := *img
	s.images[img.ID] = &cp
	return img.ID
}

func apply(img *models.MangoImage, values map[string]any) {
	for col, v := range values {
		switch col {
		case "predicted_class":
			img.PredictedClass = v.(string)
		case "disease_classification":
			img.DiseaseClassification = v.(string)
		case "disease_type":
			img.DiseaseType = v.(string)
		case "image_size":
			img.ImageSize = v.(string)
		case "client_ip":
			img.ClientIP = v.(string)
		case "notes":
			img.Notes = v.(string)
		case "confidence_score":
			img.ConfidenceScore = v.(float64)
		case "processing_time":
			img.ProcessingTime = v.(float64)
		case "is_verified":
			img.IsVerified = v.(bool)
		}
	}
}

func paginate[T any](items []T, page, limit int) []T {
	limit, offset := sqlbuild.Paginate(page, limit)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)
