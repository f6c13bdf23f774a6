// Package schema provides the schema model, structural diffing, and
// operation canonicalization for strata.
//
// This package contains the core data structures and pure algorithms the
// migration engine is built on. It sits between the model layer (which
// declares what the database should look like) and the root strata package
// (which generates, persists, and applies migrations).
//
// # Package Responsibilities
//
// The schema package handles three concerns:
//
//  1. Schema representation (DatabaseSchema, TableSchema, ColumnSchema) -
//     point-in-time snapshots of a database's shape
//  2. Structural diffing (Diff) - computing the ordered operation list that
//     reconciles one snapshot with another
//  3. Canonicalization (Canonicalize, SemanticallyEqualOperations) -
//     order-independent operation equality for duplicate detection
//
// # Key Types
//
// DatabaseSchema maps table names to TableSchema values. Maps carry no
// useful iteration order, so every algorithm in this package iterates via
// the sorted TableNames/ColumnNames helpers; two equal schemas always
// produce byte-identical walks.
//
// Operation is a closed set of schema-change variants discriminated by
// OpKind. Each variant knows how to apply itself to a ProjectState and how
// to compare itself to another operation both exactly and after
// canonicalization. The set is closed on purpose: every switch over OpKind
// in this package and in the root package is exhaustive, so adding a kind
// forces all behaviors to be implemented together.
//
// ProjectState is the schema reconstructed by replaying historical
// operations in dependency order. The loader in the root package folds
// every persisted migration into a ProjectState, and the resulting Schema()
// becomes the source snapshot for the next diff.
//
// # Typical Usage
//
//	source := state.Schema()                  // from migration history
//	target := declaredSchema()                // from the model layer
//	ops := schema.Diff(source, target)
//	if len(ops) == 0 {
//		// nothing to migrate
//	}
//
// # Purity
//
// Nothing in this package performs I/O, blocks, or fails on valid input.
// Diff and the equality helpers are deterministic pure functions; errors
// exist only for malformed operations (ErrUnknownOperation).
package schema

import "sort"

// DatabaseSchema is a snapshot of a database's shape at one point in time,
// either declared (the target of a diff) or reconstructed from history or
// a live database (the source).
type DatabaseSchema struct {
	Tables map[string]TableSchema `json:"tables"`
}

// NewDatabaseSchema returns an empty schema ready for AddTable.
func NewDatabaseSchema() DatabaseSchema {
	return DatabaseSchema{Tables: make(map[string]TableSchema)}
}

// AddTable inserts or replaces a table, keyed by its name.
func (s *DatabaseSchema) AddTable(t TableSchema) {
	if s.Tables == nil {
		s.Tables = make(map[string]TableSchema)
	}
	s.Tables[t.Name] = t
}

// Table returns the named table and whether it exists.
func (s DatabaseSchema) Table(name string) (TableSchema, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// TableNames returns all table names in lexicographic order. Every walk of
// a schema goes through this helper so iteration is deterministic for
// diffing and testing.
func (s DatabaseSchema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two schemas describe the same tables with the same
// columns, indexes, and constraints. Comparison is structural; map key
// order never matters.
func (s DatabaseSchema) Equal(other DatabaseSchema) bool {
	if len(s.Tables) != len(other.Tables) {
		return false
	}
	for name, t := range s.Tables {
		ot, ok := other.Tables[name]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (s DatabaseSchema) Clone() DatabaseSchema {
	out := DatabaseSchema{Tables: make(map[string]TableSchema, len(s.Tables))}
	for name, t := range s.Tables {
		out.Tables[name] = t.Clone()
	}
	return out
}

// TableSchema describes one table: its columns keyed by name, plus the
// indexes and constraints attached to it. Column names are unique within a
// table (map-enforced); the Name field matches the table's key in the
// owning DatabaseSchema.
type TableSchema struct {
	Name        string                  `json:"name"`
	Columns     map[string]ColumnSchema `json:"columns"`
	Indexes     []IndexSchema           `json:"indexes,omitempty"`
	Constraints []ConstraintSchema      `json:"constraints,omitempty"`
}

// NewTableSchema returns an empty table with the given name.
func NewTableSchema(name string) TableSchema {
	return TableSchema{Name: name, Columns: make(map[string]ColumnSchema)}
}

// AddColumn inserts or replaces a column, keyed by its name.
func (t *TableSchema) AddColumn(c ColumnSchema) {
	if t.Columns == nil {
		t.Columns = make(map[string]ColumnSchema)
	}
	t.Columns[c.Name] = c
}

// Column returns the named column and whether it exists.
func (t TableSchema) Column(name string) (ColumnSchema, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// ColumnNames returns all column names in lexicographic order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedColumns returns the column definitions ordered by column name.
// This is the order CreateTable operations carry their column lists in,
// which keeps diff output independent of map insertion order.
func (t TableSchema) SortedColumns() []ColumnSchema {
	cols := make([]ColumnSchema, 0, len(t.Columns))
	for _, name := range t.ColumnNames() {
		cols = append(cols, t.Columns[name].Clone())
	}
	return cols
}

// Equal reports structural equality of two tables. Index and constraint
// slices compare order-sensitively; columns compare by key.
func (t TableSchema) Equal(other TableSchema) bool {
	if t.Name != other.Name || len(t.Columns) != len(other.Columns) {
		return false
	}
	for name, c := range t.Columns {
		oc, ok := other.Columns[name]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	if len(t.Indexes) != len(other.Indexes) {
		return false
	}
	for i, idx := range t.Indexes {
		if !idx.Equal(other.Indexes[i]) {
			return false
		}
	}
	if len(t.Constraints) != len(other.Constraints) {
		return false
	}
	for i, c := range t.Constraints {
		if !c.Equal(other.Constraints[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the table.
func (t TableSchema) Clone() TableSchema {
	out := TableSchema{Name: t.Name}
	if t.Columns != nil {
		out.Columns = make(map[string]ColumnSchema, len(t.Columns))
		for name, c := range t.Columns {
			out.Columns[name] = c.Clone()
		}
	}
	if t.Indexes != nil {
		out.Indexes = make([]IndexSchema, len(t.Indexes))
		for i, idx := range t.Indexes {
			out.Indexes[i] = idx.Clone()
		}
	}
	if t.Constraints != nil {
		out.Constraints = make([]ConstraintSchema, len(t.Constraints))
		for i, c := range t.Constraints {
			out.Constraints[i] = c.Clone()
		}
	}
	return out
}

// ColumnSchema describes one column. Default is a pointer so "no default"
// (nil) stays distinct from an empty-string default.
type ColumnSchema struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"type"`
	Nullable      bool       `json:"nullable,omitempty"`
	Default       *string    `json:"default,omitempty"`
	PrimaryKey    bool       `json:"primary_key,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
}

// Equal reports whether two columns are structurally identical, comparing
// the Default values pointed to rather than the pointers.
func (c ColumnSchema) Equal(other ColumnSchema) bool {
	if c.Name != other.Name ||
		c.Type != other.Type ||
		c.Nullable != other.Nullable ||
		c.PrimaryKey != other.PrimaryKey ||
		c.AutoIncrement != other.AutoIncrement {
		return false
	}
	switch {
	case c.Default == nil && other.Default == nil:
		return true
	case c.Default == nil || other.Default == nil:
		return false
	default:
		return *c.Default == *other.Default
	}
}

// Clone returns a copy with its own Default pointer.
func (c ColumnSchema) Clone() ColumnSchema {
	out := c
	if c.Default != nil {
		d := *c.Default
		out.Default = &d
	}
	return out
}

// IndexSchema describes one index. Column order is significant (it is the
// index key order) and is never normalized.
type IndexSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// Equal reports structural equality, including column order.
func (i IndexSchema) Equal(other IndexSchema) bool {
	if i.Name != other.Name || i.Unique != other.Unique || len(i.Columns) != len(other.Columns) {
		return false
	}
	for n, col := range i.Columns {
		if col != other.Columns[n] {
			return false
		}
	}
	return true
}

// Clone returns a copy with its own column slice.
func (i IndexSchema) Clone() IndexSchema {
	out := i
	if i.Columns != nil {
		out.Columns = append([]string(nil), i.Columns...)
	}
	return out
}

// ConstraintType identifies the kind of a table constraint.
type ConstraintType string

// Constraint kinds.
const (
	ConstraintPrimaryKey ConstraintType = "primary_key"
	ConstraintForeignKey ConstraintType = "foreign_key"
	ConstraintUnique     ConstraintType = "unique"
	ConstraintCheck      ConstraintType = "check"
)

// ConstraintSchema describes one table constraint. ReferencedTable and
// ReferencedColumns are set for foreign keys; Expression is set for check
// constraints. Column order is significant (composite keys) and is never
// normalized.
type ConstraintSchema struct {
	Name              string         `json:"name"`
	Type              ConstraintType `json:"type"`
	Columns           []string       `json:"columns,omitempty"`
	ReferencedTable   string         `json:"referenced_table,omitempty"`
	ReferencedColumns []string       `json:"referenced_columns,omitempty"`
	Expression        string         `json:"expression,omitempty"`
}

// Equal reports structural equality, including column order.
func (c ConstraintSchema) Equal(other ConstraintSchema) bool {
	if c.Name != other.Name ||
		c.Type != other.Type ||
		c.ReferencedTable != other.ReferencedTable ||
		c.Expression != other.Expression {
		return false
	}
	if len(c.Columns) != len(other.Columns) || len(c.ReferencedColumns) != len(other.ReferencedColumns) {
		return false
	}
	for i, col := range c.Columns {
		if col != other.Columns[i] {
			return false
		}
	}
	for i, col := range c.ReferencedColumns {
		if col != other.ReferencedColumns[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy with its own column slices.
func (c ConstraintSchema) Clone() ConstraintSchema {
	out := c
	if c.Columns != nil {
		out.Columns = append([]string(nil), c.Columns...)
	}
	if c.ReferencedColumns != nil {
		out.ReferencedColumns = append([]string(nil), c.ReferencedColumns...)
	}
	return out
}
