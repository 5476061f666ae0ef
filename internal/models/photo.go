package models

import "time"

// CaptureRecord is one persisted entry per submitted photo.
// Emoji is omitted from JSON when no glyph was chosen.
type CaptureRecord struct {
	ID        int       `json:"id"`
	UserEmail string    `json:"user_email"`
	ImageURL  string    `json:"image_url"`
	AIComment string    `json:"ai_comment"`
	Emoji     string    `json:"emoji,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordInput carries the caller-supplied fields of a new CaptureRecord.
// ID and CreatedAt are assigned by the record store.
type RecordInput struct {
	UserEmail string
	ImageURL  string
	AIComment string
	Emoji     string
}

type PhotosResponse struct {
	Photos []CaptureRecord `json:"photos"`
}
