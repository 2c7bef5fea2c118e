// Package filter provides row filters applied between parsing and insertion.
//
// A filter receives a positional schema.Row and returns the (possibly
// modified) row, or nil to drop the record entirely. Filters are how the
// caller injects values the source does not carry (stamping a site_id) and
// how records outside a caller-defined subset are excluded.
package filter

import "sedump/internal/schema"

// Func transforms a row; returning nil drops the record.
type Func func(schema.Row) schema.Row

// Chain composes filters left to right. A nil result short-circuits the rest
// of the chain. Nil entries are skipped.
func Chain(fns ...Func) Func {
	return func(row schema.Row) schema.Row {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			row = fn(row)
			if row == nil {
				return nil
			}
		}
		return row
	}
}

// Stamp sets the named column to a fixed value on every row. It is the
// standard way to fill internal-only foreign-key columns, e.g. the site_id
// of a per-site dump file.
func Stamp(t *schema.Table, column string, value any) Func {
	i := t.Col(column)
	return func(row schema.Row) schema.Row {
		if i >= 0 {
			row[i] = value
		}
		return row
	}
}

// Keep drops every row for which pred returns false on the named column's
// value. Rows where the column is absent from the descriptor pass through
// unchanged.
func Keep(t *schema.Table, column string, pred func(any) bool) Func {
	i := t.Col(column)
	return func(row schema.Row) schema.Row {
		if i < 0 {
			return row
		}
		if !pred(row[i]) {
			return nil
		}
		return row
	}
}

// Tap invokes fn on every row without modifying it; used by callers to
// harvest values from the stream (e.g. collecting site ids during the sites
// load for later per-site stamping).
func Tap(fn func(schema.Row)) Func {
	return func(row schema.Row) schema.Row {
		fn(row)
		return row
	}
}
