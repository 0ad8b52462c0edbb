package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/camera"
	"github.com/your-org/facepos/internal/config"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/queue"
	"github.com/your-org/facepos/internal/recognize"
	"github.com/your-org/facepos/internal/signature"
	"github.com/your-org/facepos/pkg/dto"
)

// Broadcaster pushes scan events to the kiosk UI.
type Broadcaster interface {
	BroadcastScan(event *dto.ScanEvent)
}

// EventPublisher publishes terminal scan outcomes to the event bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, kind string, data interface{}) error
}

// RecognitionStore is the slice of the persistence collaborator the
// manager needs: the gallery plus the last-recognized timestamp.
type RecognitionStore interface {
	GallerySource
	UpdateLastRecognized(ctx context.Context, id uuid.UUID) error
}

// Manager owns the active capture sessions. At most a handful run at a
// time (one per kiosk screen); each gets its own camera acquisition and
// gallery snapshot.
type Manager struct {
	extractor recognize.Extractor
	device    camera.Device
	store     RecognitionStore
	hub       Broadcaster
	producer  EventPublisher // may be nil when NATS is not configured
	scanCfg   config.ScanConfig
	threshold float64

	mu    sync.Mutex
	scans map[uuid.UUID]*Session
}

func NewManager(extractor recognize.Extractor, device camera.Device, store RecognitionStore,
	hub Broadcaster, producer EventPublisher, scanCfg config.ScanConfig, threshold float64) *Manager {
	return &Manager{
		extractor: extractor,
		device:    device,
		store:     store,
		hub:       hub,
		producer:  producer,
		scanCfg:   scanCfg,
		threshold: threshold,
		scans:     make(map[uuid.UUID]*Session),
	}
}

// Start launches a new capture session under the named policy
// ("attempts" or "duration") and returns its id. The session runs on its
// own goroutine; progress streams over the hub.
func (m *Manager) Start(ctx context.Context, policyName string) (uuid.UUID, error) {
	var policy Policy
	switch policyName {
	case "", "attempts":
		policy = ByAttempts(m.scanCfg.MaxAttempts, m.scanCfg.AttemptInterval)
	case "duration":
		policy = ByDuration(m.scanCfg.Window, m.scanCfg.PollInterval)
	default:
		return uuid.Nil, fmt.Errorf("unknown scan policy %q", policyName)
	}

	id := uuid.New()
	sess := New(id.String(), m.extractor, m.device, m.store, policy, Options{
		Threshold:  m.threshold,
		MatchDelay: m.scanCfg.MatchDelay,
		OnState: func(st State) {
			m.hub.BroadcastScan(&dto.ScanEvent{
				Type:   "scan_state",
				ScanID: id.String(),
				State:  string(st),
			})
		},
	})

	m.mu.Lock()
	m.scans[id] = sess
	m.mu.Unlock()
	observability.ActiveScans.Inc()

	slog.Info("starting capture session", "scan", id, "policy", policy.String())

	// The session outlives the request that started it; Cancel or the
	// policy ends it.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.scans, id)
			m.mu.Unlock()
			observability.ActiveScans.Dec()
		}()

		result, err := sess.Run(runCtx)
		m.finish(id, result, err)
	}()

	return id, nil
}

// finish broadcasts the terminal outcome and records its side effects.
func (m *Manager) finish(id uuid.UUID, result Result, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err != nil {
		slog.Error("capture session failed", "scan", id, "error", err)
		m.hub.BroadcastScan(&dto.ScanEvent{
			Type:   "scan_error",
			ScanID: id.String(),
			State:  string(StateClosed),
			Error:  err.Error(),
		})
		m.publish(ctx, queue.EventScanClosed, map[string]interface{}{
			"scan_id": id, "outcome": "error", "error": err.Error(),
		})
		return
	}

	switch result.Outcome {
	case StateMatched:
		if updateErr := m.store.UpdateLastRecognized(ctx, result.Identity.ID); updateErr != nil {
			slog.Warn("update last recognized", "identity", result.Identity.ID, "error", updateErr)
		}
		m.hub.BroadcastScan(&dto.ScanEvent{
			Type:     "scan_matched",
			ScanID:   id.String(),
			State:    string(StateMatched),
			Identity: identityDTO(result.Identity),
			Score:    result.Score,
		})
		m.publish(ctx, queue.EventIdentityRecognized, map[string]interface{}{
			"scan_id": id, "identity_id": result.Identity.ID, "score": result.Score,
		})

	case StateExhaustedAutoEnroll:
		m.hub.BroadcastScan(&dto.ScanEvent{
			Type:              "scan_exhausted",
			ScanID:            id.String(),
			State:             string(StateExhaustedAutoEnroll),
			CapturedSignature: signature.Encode(result.Captured),
		})

	default:
		m.hub.BroadcastScan(&dto.ScanEvent{
			Type:   "scan_exhausted",
			ScanID: id.String(),
			State:  string(result.Outcome),
		})
	}

	m.publish(ctx, queue.EventScanClosed, map[string]interface{}{
		"scan_id": id, "outcome": string(result.Outcome), "attempts": result.Attempts,
	})
}

func (m *Manager) publish(ctx context.Context, kind string, data interface{}) {
	if m.producer == nil {
		return
	}
	if err := m.producer.PublishEvent(ctx, kind, data); err != nil {
		slog.Warn("publish scan event", "kind", kind, "error", err)
	}
}

// Cancel requests cancellation of a running scan. Cancelling an unknown
// or already-finished scan is a no-op.
func (m *Manager) Cancel(id uuid.UUID) {
	m.mu.Lock()
	sess := m.scans[id]
	m.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
}

// ActiveCount returns the number of currently running scans.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans)
}

// CancelAll cancels every running scan, for shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.scans))
	for _, s := range m.scans {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}

func identityDTO(id *models.Identity) *dto.IdentityResponse {
	resp := &dto.IdentityResponse{
		ID:            id.ID,
		DisplayName:   id.DisplayName,
		Email:         id.Email,
		Phone:         id.Phone,
		HasBiometrics: id.FaceData != "",
		EnrolledAt:    id.EnrolledAt.Format(time.RFC3339),
	}
	if id.LastRecognizedAt != nil {
		resp.LastRecognizedAt = id.LastRecognizedAt.Format(time.RFC3339)
	}
	return resp
}
