package recommend

import (
	"testing"
	"time"

	"github.com/your-org/facepos/internal/models"
)

func line(productID string, qty int) models.CartLine {
	return models.CartLine{ProductID: productID, Name: productID, UnitPrice: 1, Quantity: qty}
}

func order(createdAt time.Time, lines ...models.CartLine) models.Order {
	return models.Order{Lines: lines, CreatedAt: createdAt}
}

func names(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Lines[0].ProductID
	}
	return out
}

func TestRecommendGroupsByBasketContents(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order(base, line("latte", 1), line("croissant", 1)),
		// Same basket, lines in a different order.
		order(base.Add(24*time.Hour), line("croissant", 1), line("latte", 1)),
	}

	recs := Recommend(orders, 2, 3)
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Frequency != 2 {
		t.Errorf("frequency = %d, want 2", recs[0].Frequency)
	}
	if !recs[0].LastOrdered.Equal(base.Add(24 * time.Hour)) {
		t.Errorf("last ordered = %v, want the later order's time", recs[0].LastOrdered)
	}
}

func TestRecommendQuantityMattersForGrouping(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order(base, line("latte", 1)),
		order(base, line("latte", 2)),
	}

	if recs := Recommend(orders, 2, 3); len(recs) != 0 {
		t.Fatalf("got %d recommendations, want 0: different quantities are different baskets", len(recs))
	}
}

func TestRecommendFiltersBelowMinFrequency(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order(base, line("latte", 1)),
		order(base, line("latte", 1)),
		order(base, line("espresso", 1)), // ordered once
	}

	recs := Recommend(orders, 2, 3)
	if len(recs) != 1 || recs[0].Lines[0].ProductID != "latte" {
		t.Fatalf("got %v, want only the repeated basket", names(recs))
	}
}

func TestRecommendRanking(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	var orders []models.Order
	// "mocha" three times, most recent on day 5.
	for _, d := range []int{1, 3, 5} {
		orders = append(orders, order(base.Add(time.Duration(d)*day), line("mocha", 1)))
	}
	// "latte" twice, most recent on day 6.
	for _, d := range []int{2, 6} {
		orders = append(orders, order(base.Add(time.Duration(d)*day), line("latte", 1)))
	}
	// "espresso" twice, most recent on day 4: same frequency as latte,
	// older, so it ranks below it.
	for _, d := range []int{0, 4} {
		orders = append(orders, order(base.Add(time.Duration(d)*day), line("espresso", 1)))
	}

	recs := Recommend(orders, 2, 3)
	got := names(recs)
	want := []string{"mocha", "latte", "espresso"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRecommendTruncatesToTopN(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var orders []models.Order
	for _, p := range []string{"a", "b", "c", "d"} {
		orders = append(orders, order(base, line(p, 1)), order(base, line(p, 1)))
	}

	if recs := Recommend(orders, 2, 3); len(recs) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recs))
	}
}

func TestRecommendIgnoresEmptyOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order(base),
		order(base),
	}

	if recs := Recommend(orders, 1, 3); len(recs) != 0 {
		t.Fatalf("got %d recommendations from empty orders, want 0", len(recs))
	}
}

func TestRecommendEmptyHistory(t *testing.T) {
	if recs := Recommend(nil, 2, 3); len(recs) != 0 {
		t.Fatalf("got %d recommendations, want 0", len(recs))
	}
}
