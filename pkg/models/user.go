package models

import (
	"strings"
	"time"
)

// User is an account. Staff users receive upload notifications when the
// uploader is anonymous.
type User struct {
	ID         int64     `db:"id"          json:"id"`
	Username   string    `db:"username"    json:"username"`
	Email      string    `db:"email"       json:"email"`
	FirstName  string    `db:"first_name"  json:"first_name"`
	LastName   string    `db:"last_name"   json:"last_name"`
	IsStaff    bool      `db:"is_staff"    json:"is_staff"`
	IsActive   bool      `db:"is_active"   json:"is_active"`
	DateJoined time.Time `db:"date_joined" json:"date_joined"`
}

// UserProfile holds address and contact details, one-to-one with User.
type UserProfile struct {
	ID         int64     `db:"id"          json:"id"`
	UserID     int64     `db:"user_id"     json:"user_id"`
	Province   string    `db:"province"    json:"province"`
	City       string    `db:"city"        json:"city"`
	Barangay   string    `db:"barangay"    json:"barangay"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	Address    string    `db:"address"     json:"address"`
	Phone      string    `db:"phone"       json:"phone"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// FullAddress joins the non-empty locality parts, falling back to the free-text address.
func (p *UserProfile) FullAddress() string {
	var parts []string
	for _, s := range []string{p.Barangay, p.City, p.Province, p.PostalCode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return p.Address
	}
	return strings.Join(parts, ", ")
}
