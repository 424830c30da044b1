package summary

import (
	"math/rand"
	"testing"
	"time"
)

var testFields = []string{"keycards_home", "keycards_pro", "leads", "b2b_deals", "services"}

func row(date, department string, values ...string) map[string]string {
	out := map[string]string{"date": date, "time": "12:00", "user": "x", "department": department}
	for i, v := range values {
		if i < len(testFields) {
			out[testFields[i]] = v
		}
	}
	return out
}

func TestAggregateSingleDayFiltersAndSums(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	rows := []map[string]string{
		row("2026-08-31", "7", "2"),
		row("2026-08-31", "7", "3"),
		row("2026-08-31", "7", "5"),
		row("2026-08-30", "7", "100"), // yesterday, excluded
	}

	res := Aggregate(rows, testFields, day, day, GroupByDepartment)
	if res.Total != 10 {
		t.Fatalf("Total = %d, want 10", res.Total)
	}
	if res.Totals["7"] != 10 {
		t.Fatalf("Totals[7] = %d, want 10", res.Totals["7"])
	}
	if len(res.Keys) != 1 {
		t.Fatalf("Keys = %v, want one key", res.Keys)
	}
}

func TestAggregateClosedInterval(t *testing.T) {
	t.Parallel()

	rows := []map[string]string{
		row("2026-08-01", "1", "1"),
		row("2026-08-15", "2", "2"),
		row("2026-08-31", "3", "3"),
		row("2026-09-01", "4", "4"),
	}
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	res := Aggregate(rows, testFields, from, to, GroupByDepartment)
	if res.Total != 6 {
		t.Fatalf("Total = %d, want 6 (both bounds inclusive)", res.Total)
	}
	if _, ok := res.Totals["4"]; ok {
		t.Fatalf("row after range included: %v", res.Totals)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	t.Parallel()

	base := []map[string]string{
		row("2026-08-31", "1", "1", "2"),
		row("2026-08-31", "2", "0", "0", "3"),
		row("2026-08-31", "3", "2"),
		row("2026-08-31", "1", "1"),
	}
	from := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	want := Aggregate(base, testFields, from, from, GroupByDepartment)

	shuffled := make([]map[string]string, len(base))
	copy(shuffled, base)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := Aggregate(shuffled, testFields, from, from, GroupByDepartment)
		if got.Total != want.Total {
			t.Fatalf("Total = %d, want %d", got.Total, want.Total)
		}
		for k, v := range want.Totals {
			if got.Totals[k] != v {
				t.Fatalf("Totals[%s] = %d, want %d", k, got.Totals[k], v)
			}
		}
	}
}

func TestAggregateSkipsUnparseableDates(t *testing.T) {
	t.Parallel()

	rows := []map[string]string{
		row("2026-08-31", "1", "5"),
		row("31.08.2026", "1", "5"), // wrong format, skipped
		row("", "1", "5"),
		row("not-a-date", "1", "5"),
	}
	from := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	res := Aggregate(rows, testFields, from, from, GroupByDepartment)
	if res.Total != 5 {
		t.Fatalf("Total = %d, want 5", res.Total)
	}
}

func TestAggregateOrderingDescendingStableTies(t *testing.T) {
	t.Parallel()

	rows := []map[string]string{
		row("2026-08-31", "2", "1"),
		row("2026-08-31", "9", "1"),
		row("2026-08-31", "5", "7"),
	}
	from := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	res := Aggregate(rows, testFields, from, from, GroupByDepartment)

	want := []string{"5", "2", "9"}
	if len(res.Keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", res.Keys, want)
	}
	for i := range want {
		if res.Keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", res.Keys, want)
		}
	}
}

func TestAggregateGroupByMetric(t *testing.T) {
	t.Parallel()

	rows := []map[string]string{
		row("2026-08-31", "1", "1", "2", "0", "", "3"),
		row("2026-08-31", "2", "2", "0", "1", "1", "0"),
	}
	from := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	res := Aggregate(rows, testFields, from, from, GroupByMetric)

	if res.Totals["keycards_home"] != 3 {
		t.Fatalf("keycards_home = %d, want 3", res.Totals["keycards_home"])
	}
	if res.Totals["services"] != 3 {
		t.Fatalf("services = %d, want 3", res.Totals["services"])
	}
	if res.Total != 10 {
		t.Fatalf("Total = %d, want 10", res.Total)
	}
}

func TestParseHumanDate(t *testing.T) {
	t.Parallel()

	got, err := ParseHumanDate("31.08.2026")
	if err != nil {
		t.Fatalf("ParseHumanDate() error = %v", err)
	}
	if got.Format("2006-01-02") != "2026-08-31" {
		t.Fatalf("ParseHumanDate() = %s", got.Format("2006-01-02"))
	}
	if _, err := ParseHumanDate("2026-08-31"); err == nil {
		t.Fatalf("ParseHumanDate() accepted ISO format")
	}
}
