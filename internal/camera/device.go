// Package camera abstracts the kiosk's media device. A capture session
// acquires a handle, pulls frames through it, and releases it; handles
// are never shared between sessions.
package camera

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the device could not be acquired (missing
// hardware, permission denied, already opened elsewhere).
var ErrUnavailable = errors.New("camera unavailable")

// Device is the media-acquisition collaborator.
type Device interface {
	// Acquire opens the device. Fails with an error wrapping
	// ErrUnavailable when no camera can be opened.
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is an open camera. Release is idempotent.
type Handle interface {
	// CaptureFrame returns the most recent JPEG frame, waiting for one
	// if none has arrived yet.
	CaptureFrame(ctx context.Context) ([]byte, error)
	Release()
}
