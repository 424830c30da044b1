// Package tabular defines the append-only spreadsheet contract: this system
// only appends rows and reads the full table back, never edits in place.
package tabular

import "context"

// Store is the persistence collaborator for finalized records.
type Store interface {
	// AppendRow appends one row of cells in the fixed column order.
	AppendRow(ctx context.Context, cells []string) error
	// ReadAllRows returns every data row as a header-keyed mapping.
	ReadAllRows(ctx context.Context) ([]map[string]string, error)
}

// Header builds the fixed column order: date, time, user, department, then
// one column per metric field. The destination table's first row must match
// this exactly.
func Header(fields []string) []string {
	out := make([]string, 0, 4+len(fields))
	out = append(out, "date", "time", "user", "department")
	out = append(out, fields...)
	return out
}
