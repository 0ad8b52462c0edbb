package recognize

import (
	"log/slog"
	"math"

	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/signature"
)

// Similarity scores two equal-length signatures as 1 minus their
// euclidean distance. Identical vectors score 1; scores go negative once
// the distance exceeds 1.
func Similarity(a, b signature.Signature) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1 - math.Sqrt(sum)
}

// BestMatch compares a probe signature against every identity in the
// gallery and returns the one with the strictly highest similarity, if
// that similarity strictly exceeds threshold. Identities whose stored
// signature fails to decode, or has a different length than the probe,
// are skipped with a warning. Ties keep the earliest gallery entry
// because later candidates must score strictly higher to displace it.
func BestMatch(probe signature.Signature, gallery []models.Identity, threshold float64) (*models.Identity, float64) {
	if len(probe) == 0 || len(gallery) == 0 {
		return nil, 0
	}

	var best *models.Identity
	bestScore := threshold

	for i := range gallery {
		id := &gallery[i]
		if id.FaceData == "" {
			continue // enrolled without biometrics
		}
		stored, err := signature.Decode(id.FaceData)
		if err != nil {
			slog.Warn("skipping identity with malformed signature",
				"identity", id.ID, "error", err)
			continue
		}
		if len(stored) != len(probe) {
			slog.Warn("skipping identity with mismatched signature length",
				"identity", id.ID, "len", len(stored), "want", len(probe))
			continue
		}

		if score := Similarity(probe, stored); score > bestScore {
			bestScore = score
			best = id
		}
	}

	if best == nil {
		return nil, 0
	}
	return best, bestScore
}
