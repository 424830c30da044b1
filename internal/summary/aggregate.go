// Package summary derives read-back aggregates from persisted rows. Results
// are ephemeral: recomputed on demand, never stored.
package summary

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// GroupBy selects the aggregation key.
type GroupBy int

const (
	// GroupByDepartment sums each record's metric total per department.
	GroupByDepartment GroupBy = iota
	// GroupByMetric sums each metric field across records.
	GroupByMetric
)

// Result is an ordered aggregate: Keys is sorted by summed quantity
// descending, ties kept in first-appearance order.
type Result struct {
	Keys   []string
	Totals map[string]int
	Total  int
}

// Aggregate filters rows to the closed interval [from, to] by their date cell
// and sums quantities per grouping key. Rows with an unparseable date are
// skipped. Cells that are empty (not-applicable) or non-numeric count as zero.
func Aggregate(rows []map[string]string, fields []string, from, to time.Time, by GroupBy) Result {
	res := Result{Totals: make(map[string]int)}
	fromDay := from.Format(dateLayout)
	toDay := to.Format(dateLayout)

	for _, row := range rows {
		day, err := time.Parse(dateLayout, strings.TrimSpace(row["date"]))
		if err != nil {
			continue
		}
		dayStr := day.Format(dateLayout)
		if dayStr < fromDay || dayStr > toDay {
			continue
		}

		switch by {
		case GroupByMetric:
			for _, field := range fields {
				v := cellValue(row[field])
				res.add(field, v)
			}
		default:
			key := strings.TrimSpace(row["department"])
			if key == "" {
				key = "?"
			}
			total := 0
			for _, field := range fields {
				total += cellValue(row[field])
			}
			res.add(key, total)
		}
	}

	// Descending by quantity, stable on first appearance for ties.
	sort.SliceStable(res.Keys, func(i, j int) bool {
		return res.Totals[res.Keys[i]] > res.Totals[res.Keys[j]]
	})
	return res
}

func (r *Result) add(key string, v int) {
	if _, ok := r.Totals[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Totals[key] += v
	r.Total += v
}

func cellValue(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseHumanDate converts an operator-typed DD.MM.YYYY date.
func ParseHumanDate(raw string) (time.Time, error) {
	return time.Parse("02.01.2006", strings.TrimSpace(raw))
}
