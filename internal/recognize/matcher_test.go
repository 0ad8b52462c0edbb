package recognize

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/signature"
)

func identity(name string, sig signature.Signature) models.Identity {
	return models.Identity{
		ID:          uuid.New(),
		DisplayName: name,
		FaceData:    signature.Encode(sig),
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b signature.Signature
		want float64
	}{
		{"identical", signature.Signature{0.5, 0.5}, signature.Signature{0.5, 0.5}, 1},
		{"unit distance", signature.Signature{0, 0}, signature.Signature{1, 0}, 0},
		{"close", signature.Signature{0.1, 0.1}, signature.Signature{0.1, 0.2}, 0.9},
		{"far goes negative", signature.Signature{0, 0}, signature.Signature{2, 0}, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Similarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("Similarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBestMatchPicksHighestScore(t *testing.T) {
	probe := signature.Signature{0.5, 0.5}
	gallery := []models.Identity{
		identity("far", signature.Signature{0.9, 0.9}),
		identity("close", signature.Signature{0.5, 0.55}),
		identity("farther", signature.Signature{0.1, 0.1}),
	}

	best, score := BestMatch(probe, gallery, 0.6)
	if best == nil {
		t.Fatal("expected a match")
	}
	if best.DisplayName != "close" {
		t.Errorf("matched %q, want %q", best.DisplayName, "close")
	}
	if score <= 0.9 {
		t.Errorf("score = %v, want > 0.9", score)
	}
}

func TestBestMatchThresholdIsStrict(t *testing.T) {
	probe := signature.Signature{0, 0}
	// Distance 0.4 from probe, similarity exactly 0.6.
	gallery := []models.Identity{identity("at-threshold", signature.Signature{0.4, 0})}

	if best, _ := BestMatch(probe, gallery, 0.6); best != nil {
		t.Errorf("similarity equal to threshold matched %q, want no match", best.DisplayName)
	}
}

func TestBestMatchTieKeepsEarliest(t *testing.T) {
	probe := signature.Signature{0, 0}
	sig := signature.Signature{0.1, 0}
	gallery := []models.Identity{
		identity("first", sig),
		identity("second", sig),
	}

	best, _ := BestMatch(probe, gallery, 0.6)
	if best == nil {
		t.Fatal("expected a match")
	}
	if best.DisplayName != "first" {
		t.Errorf("matched %q, want the earliest entry", best.DisplayName)
	}
}

func TestBestMatchSkipsUnusableEntries(t *testing.T) {
	probe := signature.Signature{0, 0}
	malformed := models.Identity{ID: uuid.New(), DisplayName: "bad", FaceData: "not-a-signature"}
	noBiometrics := models.Identity{ID: uuid.New(), DisplayName: "skipped"}
	wrongLen := identity("short", signature.Signature{0.1})
	good := identity("good", signature.Signature{0.05, 0})

	gallery := []models.Identity{malformed, noBiometrics, wrongLen, good}
	best, _ := BestMatch(probe, gallery, 0.6)
	if best == nil || best.DisplayName != "good" {
		t.Fatalf("got %v, want the only decodable entry", best)
	}
}

func TestBestMatchEmptyInputs(t *testing.T) {
	gallery := []models.Identity{identity("someone", signature.Signature{0.1, 0.1})}

	if best, _ := BestMatch(nil, gallery, 0.6); best != nil {
		t.Error("empty probe matched")
	}
	if best, _ := BestMatch(signature.Signature{0.1, 0.1}, nil, 0.6); best != nil {
		t.Error("empty gallery matched")
	}
}
