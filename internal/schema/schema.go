// Package schema defines the declarative table descriptors that drive the
// dump loader: table name, an ordered mapping from internal column name to
// (source attribute, storage type), and raw constraint clauses.
//
// A Table is pure data plus two derived operations:
//
//   - CreateSQL builds an idempotent CREATE TABLE IF NOT EXISTS statement.
//   - ParseRow converts one dump record (attribute name → string value) into
//     a positional Row aligned to the descriptor's column order.
//
// Column order is significant: it defines both the DDL column order and the
// positional bind order used by the storage backends.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Column describes one destination column.
type Column struct {
	// Name is the internal column name used in DDL and INSERT statements.
	Name string

	// Attr is the source attribute name on the dump's XML elements. An empty
	// Attr marks an internal-only column (e.g. a foreign key stamped by a row
	// filter); its value is always nil unless a filter fills it in.
	Attr string

	// Type is the raw storage type clause, e.g. "INTEGER", "TEXT NOT NULL",
	// "INTEGER PRIMARY KEY". Types starting with "INTEGER" get their source
	// values coerced to int64 during ParseRow.
	Type string
}

// Table is a declarative table descriptor.
type Table struct {
	// Name is the destination table name. It doubles as the dump section's
	// root tag for progress labeling.
	Name string

	// Columns is the ordered column list. Order is significant.
	Columns []Column

	// Constraints holds raw constraint clauses appended verbatim to the DDL,
	// e.g. "PRIMARY KEY (id, site_id)".
	Constraints []string
}

// Row holds one record's values in descriptor column order. Values are int64,
// string, or nil. Rows are transient: they are built per source record and
// consumed immediately by the batch-insert step.
type Row []any

// ParseError reports a source value that could not be coerced to its column's
// storage type.
type ParseError struct {
	Table  string
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schema: table %s column %s: cannot parse %q: %v",
		e.Table, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Validate checks the descriptor invariants: non-empty name, at least one
// column, and unique, non-empty internal column names.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("schema: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("schema: table %s: at least one column is required", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("schema: table %s: column with empty name", t.Name)
		}
		if strings.TrimSpace(c.Type) == "" {
			return fmt.Errorf("schema: table %s: column %s missing type", t.Name, c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("schema: table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// ColumnNames returns the internal column names in descriptor order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Col returns the positional index of the named column, or -1 when the table
// has no such column. Filters use it to address Row slots by name.
func (t *Table) Col(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CreateSQL builds the table's DDL:
//
//	CREATE TABLE IF NOT EXISTS name (col type, ..., constraint, ...);
//
// The statement is idempotent and safe to execute repeatedly.
func (t *Table) CreateSQL() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		parts = append(parts, c.Name+" "+c.Type)
	}
	parts = append(parts, t.Constraints...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);",
		t.Name, strings.Join(parts, ", ")), nil
}

// ParseRow converts one dump record into a Row.
//
// For each declared column: if the configured source attribute is present in
// attrs, the raw string is taken; integer-family columns are coerced to int64
// and a coercion failure returns a *ParseError, which is fatal and must not
// be swallowed by callers. Internal-only columns (empty Attr) and absent
// attributes stay nil.
func (t *Table) ParseRow(attrs map[string]string) (Row, error) {
	row := make(Row, len(t.Columns))
	for i, c := range t.Columns {
		if c.Attr == "" {
			continue
		}
		raw, ok := attrs[c.Attr]
		if !ok {
			continue
		}
		if strings.HasPrefix(c.Type, "INTEGER") {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, &ParseError{Table: t.Name, Column: c.Name, Value: raw, Err: err}
			}
			row[i] = n
			continue
		}
		row[i] = raw
	}
	return row, nil
}
