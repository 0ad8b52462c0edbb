// Package signature converts face signatures between their in-memory
// vector form and the textual form stored alongside an identity.
package signature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Signature is the fixed-length feature vector produced by the extractor.
// The length is a property of the loaded model, not of this package.
type Signature []float32

// ErrMalformed reports text that is not a well-formed encoded signature.
var ErrMalformed = errors.New("malformed signature")

// Encode renders a signature as a JSON-style array of numbers. The output
// is deterministic and round-trips through Decode without loss.
func Encode(sig Signature) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range sig {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Decode parses the textual form produced by Encode. Any deviation from a
// flat numeric array yields ErrMalformed.
func Decode(text string) (Signature, error) {
	s := strings.TrimSpace(text)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: not a numeric array", ErrMalformed)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformed)
	}

	parts := strings.Split(body, ",")
	sig := make(Signature, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		sig = append(sig, float32(f))
	}
	return sig, nil
}
