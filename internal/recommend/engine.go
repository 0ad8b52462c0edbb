// Package recommend derives one-tap reorder suggestions from a
// customer's order history.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/your-org/facepos/internal/models"
)

// Recommendation is a complete basket the customer has ordered
// repeatedly, ready to be loaded back into the cart as-is.
type Recommendation struct {
	Lines       []models.CartLine
	Frequency   int
	LastOrdered time.Time
}

// Recommend groups orders by basket contents and returns the baskets
// ordered at least minFrequency times, ranked most-frequent first with
// more recent baskets breaking ties, truncated to topN. Two orders
// belong to the same basket when they hold the same products in the
// same quantities, regardless of line order.
func Recommend(orders []models.Order, minFrequency, topN int) []Recommendation {
	type group struct {
		lines       []models.CartLine
		frequency   int
		lastOrdered time.Time
	}

	groups := make(map[string]*group)
	var keys []string
	for _, o := range orders {
		if len(o.Lines) == 0 {
			continue
		}
		key := basketKey(o.Lines)
		g, ok := groups[key]
		if !ok {
			g = &group{lines: append([]models.CartLine(nil), o.Lines...)}
			groups[key] = g
			keys = append(keys, key)
		}
		g.frequency++
		if o.CreatedAt.After(g.lastOrdered) {
			g.lastOrdered = o.CreatedAt
		}
	}

	recs := make([]Recommendation, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		if g.frequency < minFrequency {
			continue
		}
		recs = append(recs, Recommendation{
			Lines:       g.lines,
			Frequency:   g.frequency,
			LastOrdered: g.lastOrdered,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Frequency != recs[j].Frequency {
			return recs[i].Frequency > recs[j].Frequency
		}
		return recs[i].LastOrdered.After(recs[j].LastOrdered)
	})

	if topN > 0 && len(recs) > topN {
		recs = recs[:topN]
	}
	return recs
}

// basketKey produces a canonical key for a set of cart lines: the
// (product, quantity) pairs sorted by product then quantity.
func basketKey(lines []models.CartLine) string {
	pairs := make([]struct {
		id  string
		qty int
	}, len(lines))
	for i, l := range lines {
		pairs[i].id = l.ProductID
		pairs[i].qty = l.Quantity
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].id != pairs[j].id {
			return pairs[i].id < pairs[j].id
		}
		return pairs[i].qty < pairs[j].qty
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s:%d", p.id, p.qty)
	}
	return strings.Join(parts, ";")
}
