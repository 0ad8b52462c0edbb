package dto

// StartScanRequest selects the exhaustion policy for a new scan:
// "attempts" counts failed attempts, "duration" runs a wall-clock window
// and auto-enrolls from the final frame.
type StartScanRequest struct {
	Policy string `json:"policy"`
}

// ScanEvent is pushed over the WebSocket hub for every state transition
// and terminal outcome of a capture session.
type ScanEvent struct {
	Type   string `json:"type"` // scan_state, scan_matched, scan_exhausted, scan_error
	ScanID string `json:"scan_id"`
	State  string `json:"state"`

	// Set on scan_matched.
	Identity *IdentityResponse `json:"identity,omitempty"`
	Score    float64           `json:"score,omitempty"`

	// Set on scan_exhausted with auto-enrollment: the encoded signature
	// the UI should submit together with the profile form.
	CapturedSignature string `json:"captured_signature,omitempty"`

	Error string `json:"error,omitempty"`
}
