// Package enroll registers new identities: one optional face signature,
// a profile form, and an optional thumbnail image.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/queue"
	"github.com/your-org/facepos/internal/signature"
)

// ErrThumbnailUpload reports a failed thumbnail upload. No identity
// record exists when this is returned.
var ErrThumbnailUpload = errors.New("thumbnail upload failed")

// ErrInvalidProfile reports a profile missing its required fields.
var ErrInvalidProfile = errors.New("invalid profile")

// IdentityStore persists enrollments. Duplicate-email detection happens
// here, at the store, so concurrent enrollments cannot race past a local
// check.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, profile models.Profile, sig signature.Signature, thumbnailKey string) (*models.Identity, error)
}

// ThumbnailStore holds captured face images.
type ThumbnailStore interface {
	PutThumbnail(ctx context.Context, key string, data []byte, contentType string) error
	DeleteThumbnail(ctx context.Context, key string) error
}

// EventPublisher publishes enrollment events; nil disables publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, kind string, data interface{}) error
}

type Service struct {
	store    IdentityStore
	thumbs   ThumbnailStore
	producer EventPublisher
}

func NewService(store IdentityStore, thumbs ThumbnailStore, producer EventPublisher) *Service {
	return &Service{store: store, thumbs: thumbs, producer: producer}
}

// Submit enrolls one identity. sig may be nil (biometric capture
// skipped) and thumbnail may be empty. The thumbnail upload completes
// before the identity record is written, so a stored identity never
// references an image that failed to upload; if the record write then
// fails, the uploaded thumbnail is removed again.
func (s *Service) Submit(ctx context.Context, profile models.Profile, sig signature.Signature, thumbnail []byte) (*models.Identity, error) {
	if profile.DisplayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidProfile)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}

	var thumbnailKey string
	if len(thumbnail) > 0 {
		thumbnailKey = fmt.Sprintf("thumbnails/%s.jpg", uuid.New())
		if err := s.thumbs.PutThumbnail(ctx, thumbnailKey, thumbnail, "image/jpeg"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrThumbnailUpload, err)
		}
	}

	ident, err := s.store.CreateIdentity(ctx, profile, sig, thumbnailKey)
	if err != nil {
		if thumbnailKey != "" {
			if delErr := s.thumbs.DeleteThumbnail(ctx, thumbnailKey); delErr != nil {
				slog.Warn("remove thumbnail after failed enrollment", "key", thumbnailKey, "error", delErr)
			}
		}
		return nil, err
	}

	observability.Enrollments.Inc()
	slog.Info("identity enrolled", "identity", ident.ID, "biometrics", len(sig) > 0)

	if s.producer != nil {
		err := s.producer.PublishEvent(ctx, queue.EventIdentityEnrolled, map[string]interface{}{
			"identity_id": ident.ID, "has_biometrics": len(sig) > 0,
		})
		if err != nil {
			slog.Warn("publish enrollment event", "error", err)
		}
	}

	return ident, nil
}
