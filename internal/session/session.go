// Package session runs the biometric sign-in state machine: acquire the
// camera, scan at a fixed cadence against a gallery snapshot, and end in
// a match, an exhaustion, or a cancellation, releasing every resource
// exactly once on the way out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/facepos/internal/camera"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/recognize"
	"github.com/your-org/facepos/internal/signature"
)

// State is one step of the capture-session lifecycle.
type State string

const (
	StateIdle                State = "idle"
	StateInitializing        State = "initializing"
	StateCameraReady         State = "camera_ready"
	StateScanning            State = "scanning"
	StateMatched             State = "matched"
	StateExhaustedNoEnroll   State = "exhausted_no_enroll"
	StateExhaustedAutoEnroll State = "exhausted_auto_enroll"
	StateCancelled           State = "cancelled"
	StateClosed              State = "closed"
)

var (
	// ErrModelLoad reports a failure loading the feature-extraction model.
	ErrModelLoad = errors.New("model load failed")
	// ErrGalleryLoad reports a failure fetching the enrolled gallery.
	ErrGalleryLoad = errors.New("gallery load failed")
)

// GallerySource supplies the enrolled identities. The session snapshots
// it exactly once, during initialization.
type GallerySource interface {
	ListIdentities(ctx context.Context) ([]models.Identity, error)
}

// Result is the outcome of a completed session. Captured carries the
// final frame's signature when the duration policy exhausted and hands
// off to auto-enrollment.
type Result struct {
	Outcome  State
	Identity *models.Identity
	Score    float64
	Captured signature.Signature
	Attempts int
}

// Options tune a session beyond its exhaustion policy.
type Options struct {
	// Threshold is the minimum similarity a match must strictly exceed.
	Threshold float64
	// MatchDelay is the user-facing pause between a hit and handing the
	// identity back, so the UI can show the greeting.
	MatchDelay time.Duration
	// OnState, when set, observes every state transition.
	OnState func(State)
}

// Session drives one sign-in scan. It is single-use: construct, Run,
// discard. All camera and extractor access happens on the Run goroutine;
// Cancel only requests cancellation and never touches resources itself.
type Session struct {
	id        string
	extractor recognize.Extractor
	device    camera.Device
	gallery   GallerySource
	policy    Policy
	opts      Options

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	handle camera.Handle

	closeOnce sync.Once
}

func New(id string, extractor recognize.Extractor, device camera.Device, gallery GallerySource, policy Policy, opts Options) *Session {
	return &Session{
		id:        id,
		extractor: extractor,
		device:    device,
		gallery:   gallery,
		policy:    policy,
		opts:      opts,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel requests cooperative cancellation. It is not an error path: the
// session ends with Outcome StateCancelled. Safe to call at any time,
// from any goroutine, more than once.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the session to completion. Lifecycle failures (model,
// gallery, camera) are returned as errors with the session closed;
// match, exhaustion, and cancellation are ordinary Results.
func (s *Session) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer s.close()

	s.setState(StateInitializing)
	if err := s.extractor.Initialize(ctx); err != nil {
		return Result{Outcome: StateClosed}, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	gallery, err := s.gallery.ListIdentities(ctx)
	if err != nil {
		return Result{Outcome: StateClosed}, fmt.Errorf("%w: %v", ErrGalleryLoad, err)
	}

	s.setState(StateCameraReady)
	handle, err := s.device.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: StateCancelled}, nil
		}
		return Result{Outcome: StateClosed}, fmt.Errorf("acquire camera: %w", err)
	}
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	s.setState(StateScanning)
	return s.scan(ctx, gallery)
}

func (s *Session) scan(ctx context.Context, gallery []models.Identity) (Result, error) {
	ticker := time.NewTicker(s.policy.tick())
	defer ticker.Stop()

	var deadline <-chan time.Time
	if s.policy.kind == byDuration {
		timer := time.NewTimer(s.policy.Window)
		defer timer.Stop()
		deadline = timer.C
	}

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			s.setState(StateCancelled)
			return Result{Outcome: StateCancelled, Attempts: attempts}, nil

		case <-deadline:
			return s.exhaustAuto(ctx, attempts)

		case <-ticker.C:
			// The select can race a cancelled context; a tick that fires
			// after cancellation must stay inert.
			if ctx.Err() != nil {
				s.setState(StateCancelled)
				return Result{Outcome: StateCancelled, Attempts: attempts}, nil
			}

			attempts++
			observability.ScanAttempts.WithLabelValues(s.id).Inc()

			sig, ok := s.captureSignature(ctx)
			if ctx.Err() != nil {
				// An attempt that resolved after cancellation is discarded.
				s.setState(StateCancelled)
				return Result{Outcome: StateCancelled, Attempts: attempts}, nil
			}
			if ok {
				if ident, score := recognize.BestMatch(sig, gallery, s.opts.Threshold); ident != nil {
					return s.matched(ctx, ident, score, attempts)
				}
			}

			if s.policy.kind == byAttempts && attempts >= s.policy.Attempts {
				s.setState(StateExhaustedNoEnroll)
				observability.ScansExhausted.WithLabelValues(s.policy.String()).Inc()
				return Result{Outcome: StateExhaustedNoEnroll, Attempts: attempts}, nil
			}
		}
	}
}

// matched finishes a successful scan: camera released first, then the
// short user-facing delay, then the identity is handed back.
func (s *Session) matched(ctx context.Context, ident *models.Identity, score float64, attempts int) (Result, error) {
	s.setState(StateMatched)
	s.releaseCamera()
	observability.FacesRecognized.Inc()
	slog.Info("face recognized", "scan", s.id, "identity", ident.ID, "score", score, "attempts", attempts)

	if s.opts.MatchDelay > 0 {
		select {
		case <-ctx.Done():
			return Result{Outcome: StateCancelled, Attempts: attempts}, nil
		case <-time.After(s.opts.MatchDelay):
		}
	}
	return Result{Outcome: StateMatched, Identity: ident, Score: score, Attempts: attempts}, nil
}

// exhaustAuto handles duration-policy exhaustion: one final capture whose
// signature goes straight to enrollment. Without a face in that frame the
// session falls back to plain exhaustion.
func (s *Session) exhaustAuto(ctx context.Context, attempts int) (Result, error) {
	observability.ScansExhausted.WithLabelValues(s.policy.String()).Inc()

	sig, ok := s.captureSignature(ctx)
	if ctx.Err() != nil {
		s.setState(StateCancelled)
		return Result{Outcome: StateCancelled, Attempts: attempts}, nil
	}
	if ok {
		s.setState(StateExhaustedAutoEnroll)
		return Result{Outcome: StateExhaustedAutoEnroll, Captured: sig, Attempts: attempts}, nil
	}
	s.setState(StateExhaustedNoEnroll)
	return Result{Outcome: StateExhaustedNoEnroll, Attempts: attempts}, nil
}

// captureSignature runs one frame capture plus extraction. Transient
// failures are logged and swallowed; the scan just moves on.
func (s *Session) captureSignature(ctx context.Context) (signature.Signature, bool) {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return nil, false
	}

	frame, err := handle.CaptureFrame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("frame capture failed", "scan", s.id, "error", err)
		}
		return nil, false
	}

	sig, ok, err := s.extractor.Detect(frame)
	if err != nil {
		slog.Warn("feature extraction failed", "scan", s.id, "error", err)
		return nil, false
	}
	return sig, ok
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	onState := s.opts.OnState
	s.mu.Unlock()
	if onState != nil {
		onState(st)
	}
}

func (s *Session) releaseCamera() {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()
	if handle != nil {
		handle.Release()
	}
}

// close is the single teardown point for every exit path.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.releaseCamera()
		s.setState(StateClosed)
	})
}
