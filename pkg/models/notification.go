package models

import "time"

const NotificationImageUpload = "image_upload"

// Notification is an admin-facing message about a stored prediction.
type Notification struct {
	ID               int64     `db:"id"                json:"id"`
	NotificationType string    `db:"notification_type" json:"notification_type"`
	Title            string    `db:"title"             json:"title"`
	Message          string    `db:"message"           json:"message"`
	RelatedImageID   *int64    `db:"related_image_id"  json:"related_image_id,omitempty"`
	UserID           int64     `db:"user_id"           json:"user_id"`
	IsRead           bool      `db:"is_read"           json:"is_read"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}
