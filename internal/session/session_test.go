package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/your-org/facepos/internal/camera"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/signature"
)

type fakeExtractor struct {
	mu      sync.Mutex
	initErr error
	// results is consumed one per Detect call; the last entry repeats.
	results []detectResult
	calls   int
}

type detectResult struct {
	sig signature.Signature
	ok  bool
	err error
}

func (f *fakeExtractor) Initialize(ctx context.Context) error { return f.initErr }

func (f *fakeExtractor) Detect(frame []byte) (signature.Signature, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil, false, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.sig, r.ok, r.err
}

func (f *fakeExtractor) Close() {}

func (f *fakeExtractor) detectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHandle struct {
	mu       sync.Mutex
	released int
	captures int
}

func (h *fakeHandle) CaptureFrame(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.captures++
	return []byte("frame"), nil
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
}

func (h *fakeHandle) releaseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakeDevice struct {
	handle *fakeHandle
	err    error
}

func (d *fakeDevice) Acquire(ctx context.Context) (camera.Handle, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.handle, nil
}

type fakeGallery struct {
	identities []models.Identity
	err        error
}

func (g *fakeGallery) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	return g.identities, g.err
}

func enrolled(name string, sig signature.Signature) models.Identity {
	return models.Identity{DisplayName: name, FaceData: signature.Encode(sig)}
}

func newTestSession(ext *fakeExtractor, dev *fakeDevice, gal *fakeGallery, policy Policy, opts Options) *Session {
	return New("test-scan", ext, dev, gal, policy, opts)
}

func TestRunMatchesEnrolledIdentity(t *testing.T) {
	probe := signature.Signature{0.5, 0.5}
	ext := &fakeExtractor{results: []detectResult{{sig: probe, ok: true}}}
	handle := &fakeHandle{}
	gal := &fakeGallery{identities: []models.Identity{
		enrolled("alice", signature.Signature{0.5, 0.5}),
		enrolled("bob", signature.Signature{0.9, 0.1}),
	}}

	sess := newTestSession(ext, &fakeDevice{handle: handle}, gal,
		ByAttempts(5, time.Millisecond), Options{Threshold: 0.6})

	result, err := sess.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != StateMatched {
		t.Fatalf("outcome = %v, want matched", result.Outcome)
	}
	if result.Identity == nil || result.Identity.DisplayName != "alice" {
		t.Errorf("matched %v, want alice", result.Identity)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if handle.releaseCount() != 1 {
		t.Errorf("camera released %d times, want exactly 1", handle.releaseCount())
	}
	if sess.State() != StateClosed {
		t.Errorf("final state = %v, want closed", sess.State())
	}
}

func TestRunExhaustsAfterConfiguredAttempts(t *testing.T) {
	ext := &fakeExtractor{} // never sees a face
	handle := &fakeHandle{}
	gal := &fakeGallery{identities: []models.Identity{enrolled("alice", signature.Signature{0.5, 0.5})}}

	sess := newTestSession(ext, &fakeDevice{handle: handle}, gal,
		ByAttempts(3, time.Millisecond), Options{Threshold: 0.6})

	result, err := sess.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != StateExhaustedNoEnroll {
		t.Fatalf("outcome = %v, want exhausted_no_enroll", result.Outcome)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", result.Attempts)
	}
	if got := ext.detectCalls(); got != 3 {
		t.Errorf("extractor called %d times, want 3", got)
	}
	if handle.releaseCount() != 1 {
		t.Errorf("camera released %d times, want exactly 1", handle.releaseCount())
	}
}

func TestRunDurationPolicyAutoEnrolls(t *testing.T) {
	// Every frame holds a face but the gallery is empty, so polling never
	// matches and the final capture hands the signature to enrollment.
	captured := signature.Signature{0.7, 0.3}
	ext := &fakeExtractor{results: []detectResult{{sig: captured, ok: true}}}
	handle := &fakeHandle{}
	gal := &fakeGallery{}

	sess := newTestSession(ext, &fakeDevice{handle: handle}, gal,
		ByDuration(25*time.Millisecond, 10*time.Millisecond), Options{Threshold: 0.6})

	result, err := sess.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != StateExhaustedAutoEnroll {
		t.Fatalf("outcome = %v, want exhausted_auto_enroll", result.Outcome)
	}
	if signature.Encode(result.Captured) != signature.Encode(captured) {
		t.Errorf("captured = %v, want the final frame's signature", result.Captured)
	}
}

func TestRunCancelMidScanStopsAttempts(t *testing.T) {
	ext := &fakeExtractor{}
	handle := &fakeHandle{}
	gal := &fakeGallery{}

	sess := newTestSession(ext, &fakeDevice{handle: handle}, gal,
		ByAttempts(1000, 5*time.Millisecond), Options{Threshold: 0.6})

	done := make(chan Result, 1)
	go func() {
		result, _ := sess.Run(context.Background())
		done <- result
	}()

	time.Sleep(20 * time.Millisecond)
	sess.Cancel()

	select {
	case result := <-done:
		if result.Outcome != StateCancelled {
			t.Fatalf("outcome = %v, want cancelled", result.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not stop after Cancel")
	}

	calls := ext.detectCalls()
	time.Sleep(30 * time.Millisecond)
	if got := ext.detectCalls(); got != calls {
		t.Errorf("extractor called after cancellation: %d -> %d", calls, got)
	}
	if handle.releaseCount() != 1 {
		t.Errorf("camera released %d times, want exactly 1", handle.releaseCount())
	}
}

func TestRunCancelBeforeRunIsSafe(t *testing.T) {
	sess := newTestSession(&fakeExtractor{}, &fakeDevice{handle: &fakeHandle{}}, &fakeGallery{},
		ByAttempts(1, time.Millisecond), Options{})
	sess.Cancel() // no-op, nothing started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := sess.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != StateCancelled {
		t.Errorf("outcome = %v, want cancelled", result.Outcome)
	}
}

func TestRunModelLoadFailure(t *testing.T) {
	ext := &fakeExtractor{initErr: errors.New("no such model file")}
	sess := newTestSession(ext, &fakeDevice{handle: &fakeHandle{}}, &fakeGallery{},
		ByAttempts(1, time.Millisecond), Options{})

	_, err := sess.Run(context.Background())
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("err = %v, want ErrModelLoad", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("state = %v, want closed", sess.State())
	}
}

func TestRunGalleryLoadFailure(t *testing.T) {
	gal := &fakeGallery{err: errors.New("connection refused")}
	sess := newTestSession(&fakeExtractor{}, &fakeDevice{handle: &fakeHandle{}}, gal,
		ByAttempts(1, time.Millisecond), Options{})

	_, err := sess.Run(context.Background())
	if !errors.Is(err, ErrGalleryLoad) {
		t.Fatalf("err = %v, want ErrGalleryLoad", err)
	}
}

func TestRunCameraFailure(t *testing.T) {
	dev := &fakeDevice{err: camera.ErrUnavailable}
	sess := newTestSession(&fakeExtractor{}, dev, &fakeGallery{},
		ByAttempts(1, time.Millisecond), Options{})

	_, err := sess.Run(context.Background())
	if !errors.Is(err, camera.ErrUnavailable) {
		t.Fatalf("err = %v, want camera.ErrUnavailable", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("state = %v, want closed", sess.State())
	}
}

func TestStateTransitionsObserved(t *testing.T) {
	var mu sync.Mutex
	var states []State
	opts := Options{Threshold: 0.6, OnState: func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}}

	probe := signature.Signature{0.5, 0.5}
	ext := &fakeExtractor{results: []detectResult{{sig: probe, ok: true}}}
	gal := &fakeGallery{identities: []models.Identity{enrolled("alice", probe)}}

	sess := newTestSession(ext, &fakeDevice{handle: &fakeHandle{}}, gal,
		ByAttempts(5, time.Millisecond), opts)
	if _, err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []State{StateInitializing, StateCameraReady, StateScanning, StateMatched, StateClosed}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != len(want) {
		t.Fatalf("observed %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("observed %v, want %v", states, want)
		}
	}
}
