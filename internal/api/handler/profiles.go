package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mangosense/mangosense-api/internal/api/response"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/mangosense/mangosense-api/pkg/sqlbuild"
)

// ProfileView is a profile with its derived full address.
type ProfileView struct {
	*models.UserProfile
	FullAddress string `json:"full_address"`
}

func viewProfile(p *models.UserProfile) ProfileView {
	return ProfileView{UserProfile: p, FullAddress: p.FullAddress()}
}

type profileRequest struct {
	UserID     int64  `json:"user_id"`
	Province   string `json:"province"`
	City       string `json:"city"`
	Barangay   string `json:"barangay"`
	PostalCode string `json:"postal_code"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

func (p profileRequest) apply(dst *models.UserProfile) {
	dst.Province = p.Province
	dst.City = p.City
	dst.Barangay = p.Barangay
	dst.PostalCode = p.PostalCode
	dst.Address = p.Address
	dst.Phone = p.Phone
}

// ProfileHandler serves the user profile endpoints.
type ProfileHandler struct {
	store store.Store
}

func NewProfileHandler(st store.Store) *ProfileHandler {
	return &ProfileHandler{store: st}
}

// List handles GET /api/profiles/.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	limit, _ = sqlbuild.Paginate(page, limit)
	if page <= 0 {
		page = 1
	}

	profiles, total, err := h.store.ListProfiles(r.Context(), page, limit)
	if err != nil {
		slog.Error("failed to list profiles", "error", err)
		response.Error(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	views := make([]ProfileView, len(profiles))
	for i, p := range profiles {
		views[i] = viewProfile(p)
	}
	response.Collection(w, "Profiles retrieved successfully", views, response.NewMeta(page, limit, total))
}

// Get handles GET /api/profiles/{userID}/.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	p, err := h.store.GetProfileByUser(r.Context(), userID)
	if err != nil {
		writeProfileError(w, err, "Failed to get profile")
		return
	}
	response.OK(w, "Profile retrieved successfully", viewProfile(p))
}

// Create handles POST /api/profiles/.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID <= 0 {
		response.Error(w, http.StatusBadRequest, "Invalid profile", "user_id is required")
		return
	}

	p := &models.UserProfile{UserID: req.UserID}
	req.apply(p)
	if err := h.store.CreateProfile(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusBadRequest, "Invalid profile", "User does not exist")
		case errors.Is(err, store.ErrDuplicateKey):
			response.Error(w, http.StatusConflict, "Profile already exists")
		default:
			slog.Error("failed to create profile", "user_id", req.UserID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to create profile")
		}
		return
	}
	response.Created(w, "Profile created successfully", viewProfile(p))
}

// Update handles PUT /api/profiles/{userID}/.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	p := &models.UserProfile{UserID: userID}
	req.apply(p)
	if err := h.store.UpdateProfile(r.Context(), p); err != nil {
		writeProfileError(w, err, "Failed to update profile")
		return
	}
	response.OK(w, "Profile updated successfully", viewProfile(p))
}

func writeProfileError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "Profile not found")
		return
	}
	slog.Error(message, "error", err)
	response.Error(w, http.StatusInternalServerError, message)
}
