package dto

import (
	"github.com/google/uuid"
)

// EnrollRequest is the multipart form submitted by the enrollment flow.
// Signature is the encoded face signature text; it is empty when the
// customer skipped biometric capture. The thumbnail image travels as a
// separate multipart file part.
type EnrollRequest struct {
	DisplayName string `form:"display_name" binding:"required"`
	Email       string `form:"email" binding:"required,email"`
	Phone       string `form:"phone"`
	Signature   string `form:"signature"`
}

type IdentityResponse struct {
	ID               uuid.UUID `json:"id"`
	DisplayName      string    `json:"display_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	HasBiometrics    bool      `json:"has_biometrics"`
	ThumbnailURL     string    `json:"thumbnail_url,omitempty"`
	EnrolledAt       string    `json:"enrolled_at"`
	LastRecognizedAt string    `json:"last_recognized_at,omitempty"`
}

type UpdateContactRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
}

type SearchResult struct {
	IdentityID  uuid.UUID `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	Score       float32   `json:"score"`
}
