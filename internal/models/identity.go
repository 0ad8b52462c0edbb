package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is an enrolled customer. FaceData holds the encoded face
// signature (see internal/signature); it is empty when the customer
// enrolled without biometrics.
type Identity struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	DisplayName      string     `json:"display_name" db:"display_name"`
	Email            string     `json:"email" db:"email"`
	Phone            string     `json:"phone" db:"phone"`
	FaceData         string     `json:"-" db:"face_data"`
	ThumbnailKey     string     `json:"thumbnail_key,omitempty" db:"thumbnail_key"`
	EnrolledAt       time.Time  `json:"enrolled_at" db:"enrolled_at"`
	LastRecognizedAt *time.Time `json:"last_recognized_at,omitempty" db:"last_recognized_at"`
}

// Profile is the operator-entered part of an enrollment.
type Profile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}
