package schema

import "fmt"

// OpKind discriminates the closed set of schema-change operations.
type OpKind string

// Operation kinds. The differ emits only the table/column kinds; the
// rename, index, constraint, and raw-SQL kinds exist for hand-written
// migrations and are folded and applied like any other.
const (
	OpCreateTable    OpKind = "create_table"
	OpDropTable      OpKind = "drop_table"
	OpAddColumn      OpKind = "add_column"
	OpDropColumn     OpKind = "drop_column"
	OpAlterColumn    OpKind = "alter_column"
	OpRenameTable    OpKind = "rename_table"
	OpRenameColumn   OpKind = "rename_column"
	OpCreateIndex    OpKind = "create_index"
	OpDropIndex      OpKind = "drop_index"
	OpAddConstraint  OpKind = "add_constraint"
	OpDropConstraint OpKind = "drop_constraint"
	OpRunSQL         OpKind = "run_sql"
)

// Operation is one atomic schema-change instruction. It is a tagged union:
// Kind selects the variant and determines which of the remaining fields are
// meaningful. Operations are immutable once constructed; every consumer
// that needs a modified view works on a Clone.
//
// Field usage per kind:
//
//	create_table     Table, Columns, Constraints
//	drop_table       Table
//	add_column       Table, Column
//	drop_column      Table, Name (column name)
//	alter_column     Table, Column (the new definition)
//	rename_table     Table (old name), NewName
//	rename_column    Table, Name (old name), NewName
//	create_index     Table, Index
//	drop_index       Table, Name (index name)
//	add_constraint   Table, Constraint
//	drop_constraint  Table, Name (constraint name)
//	run_sql          SQL
type Operation struct {
	Kind        OpKind             `json:"kind"`
	Table       string             `json:"table,omitempty"`
	Name        string             `json:"name,omitempty"`
	NewName     string             `json:"new_name,omitempty"`
	Column      *ColumnSchema      `json:"column,omitempty"`
	Columns     []ColumnSchema     `json:"columns,omitempty"`
	Constraints []ConstraintSchema `json:"constraints,omitempty"`
	Index       *IndexSchema       `json:"index,omitempty"`
	Constraint  *ConstraintSchema  `json:"constraint,omitempty"`
	SQL         string             `json:"sql,omitempty"`
}

// CreateTable builds an operation that creates a table with the given
// columns and constraints. The column list order is preserved as given.
func CreateTable(name string, columns []ColumnSchema, constraints []ConstraintSchema) Operation {
	return Operation{Kind: OpCreateTable, Table: name, Columns: columns, Constraints: constraints}
}

// DropTable builds an operation that drops a table.
func DropTable(name string) Operation {
	return Operation{Kind: OpDropTable, Table: name}
}

// AddColumn builds an operation that adds a column to a table.
func AddColumn(table string, column ColumnSchema) Operation {
	return Operation{Kind: OpAddColumn, Table: table, Column: &column}
}

// DropColumn builds an operation that drops a column from a table.
func DropColumn(table, column string) Operation {
	return Operation{Kind: OpDropColumn, Table: table, Name: column}
}

// AlterColumn builds an operation that replaces a column's definition with
// the given one. The column is identified by column.Name.
func AlterColumn(table string, column ColumnSchema) Operation {
	return Operation{Kind: OpAlterColumn, Table: table, Column: &column}
}

// RenameTable builds an operation that renames a table.
func RenameTable(oldName, newName string) Operation {
	return Operation{Kind: OpRenameTable, Table: oldName, NewName: newName}
}

// RenameColumn builds an operation that renames a column within a table.
func RenameColumn(table, oldName, newName string) Operation {
	return Operation{Kind: OpRenameColumn, Table: table, Name: oldName, NewName: newName}
}

// CreateIndex builds an operation that creates an index on a table.
func CreateIndex(table string, index IndexSchema) Operation {
	return Operation{Kind: OpCreateIndex, Table: table, Index: &index}
}

// DropIndex builds an operation that drops a named index.
func DropIndex(table, name string) Operation {
	return Operation{Kind: OpDropIndex, Table: table, Name: name}
}

// AddConstraint builds an operation that adds a constraint to a table.
func AddConstraint(table string, constraint ConstraintSchema) Operation {
	return Operation{Kind: OpAddConstraint, Table: table, Constraint: &constraint}
}

// DropConstraint builds an operation that drops a named constraint.
func DropConstraint(table, name string) Operation {
	return Operation{Kind: OpDropConstraint, Table: table, Name: name}
}

// RunSQL builds an operation that executes a raw SQL statement during
// apply. It has no effect on ProjectState and is compared by statement
// text alone.
func RunSQL(sql string) Operation {
	return Operation{Kind: OpRunSQL, SQL: sql}
}

// Clone returns a deep copy of the operation.
func (o Operation) Clone() Operation {
	out := o
	if o.Column != nil {
		c := o.Column.Clone()
		out.Column = &c
	}
	if o.Columns != nil {
		out.Columns = make([]ColumnSchema, len(o.Columns))
		for i, c := range o.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	if o.Constraints != nil {
		out.Constraints = make([]ConstraintSchema, len(o.Constraints))
		for i, c := range o.Constraints {
			out.Constraints[i] = c.Clone()
		}
	}
	if o.Index != nil {
		idx := o.Index.Clone()
		out.Index = &idx
	}
	if o.Constraint != nil {
		c := o.Constraint.Clone()
		out.Constraint = &c
	}
	return out
}

// Equal reports exact structural equality, including the internal order of
// column and constraint lists. Order-independent comparison goes through
// Canonical first (see SemanticallyEqualOperations).
func (o Operation) Equal(other Operation) bool {
	if o.Kind != other.Kind ||
		o.Table != other.Table ||
		o.Name != other.Name ||
		o.NewName != other.NewName ||
		o.SQL != other.SQL {
		return false
	}
	if !equalColumnPtr(o.Column, other.Column) {
		return false
	}
	if len(o.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range o.Columns {
		if !c.Equal(other.Columns[i]) {
			return false
		}
	}
	if len(o.Constraints) != len(other.Constraints) {
		return false
	}
	for i, c := range o.Constraints {
		if !c.Equal(other.Constraints[i]) {
			return false
		}
	}
	switch {
	case o.Index == nil && other.Index == nil:
	case o.Index == nil || other.Index == nil:
		return false
	case !o.Index.Equal(*other.Index):
		return false
	}
	switch {
	case o.Constraint == nil && other.Constraint == nil:
	case o.Constraint == nil || other.Constraint == nil:
		return false
	case !o.Constraint.Equal(*other.Constraint):
		return false
	}
	return true
}

func equalColumnPtr(a, b *ColumnSchema) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

// Describe renders a short human-readable summary of the operation, used
// when presenting a proposed migration for review.
func (o Operation) Describe() string {
	switch o.Kind {
	case OpCreateTable:
		return fmt.Sprintf("create table %s (%d columns)", o.Table, len(o.Columns))
	case OpDropTable:
		return fmt.Sprintf("drop table %s", o.Table)
	case OpAddColumn:
		return fmt.Sprintf("add column %s to %s", o.Column.Name, o.Table)
	case OpDropColumn:
		return fmt.Sprintf("drop column %s from %s", o.Name, o.Table)
	case OpAlterColumn:
		return fmt.Sprintf("alter column %s on %s", o.Column.Name, o.Table)
	case OpRenameTable:
		return fmt.Sprintf("rename table %s to %s", o.Table, o.NewName)
	case OpRenameColumn:
		return fmt.Sprintf("rename column %s to %s on %s", o.Name, o.NewName, o.Table)
	case OpCreateIndex:
		return fmt.Sprintf("create index %s on %s", o.Index.Name, o.Table)
	case OpDropIndex:
		return fmt.Sprintf("drop index %s on %s", o.Name, o.Table)
	case OpAddConstraint:
		return fmt.Sprintf("add constraint %s to %s", o.Constraint.Name, o.Table)
	case OpDropConstraint:
		return fmt.Sprintf("drop constraint %s from %s", o.Name, o.Table)
	case OpRunSQL:
		return "run raw SQL"
	default:
		return fmt.Sprintf("unknown operation %q", string(o.Kind))
	}
}
