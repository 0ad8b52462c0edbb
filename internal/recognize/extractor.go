// Package recognize holds the face matcher and the feature-extraction
// collaborator that produces signatures from camera frames.
package recognize

import (
	"context"

	"github.com/your-org/facepos/internal/signature"
)

// Extractor turns a captured frame into a face signature. Implementations
// own their model lifecycle; Initialize is idempotent and must be called
// before Detect.
type Extractor interface {
	// Initialize loads model assets. Calling it again is a cheap no-op.
	Initialize(ctx context.Context) error
	// Detect finds the single best-confidence face in the frame and
	// returns its signature. ok is false when no face was found; that is
	// not an error.
	Detect(frame []byte) (sig signature.Signature, ok bool, err error)
	Close()
}
