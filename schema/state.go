package schema

import (
	"fmt"
	"sort"
)

// ProjectState is the schema understood to exist after replaying a set of
// operations in order. The migration loader folds every historical
// migration into one ProjectState; its Schema() becomes the source
// snapshot for the next diff, which is how a freshly-migrated project
// correctly reports "no changes".
//
// Apply mutates the state, so a ProjectState is owned by a single builder
// while folding and handed out only as snapshots.
type ProjectState struct {
	tables map[string]TableSchema
}

// NewProjectState returns an empty state.
func NewProjectState() *ProjectState {
	return &ProjectState{tables: make(map[string]TableSchema)}
}

// Apply folds one operation into the state.
//
// Operations referencing a table that does not exist are ignored rather
// than failing: replay tolerates history that drops or renames tables out
// from under later hand-edited migrations, matching the append-only
// character of migration history. The only error is an operation whose
// Kind is outside the closed set.
func (s *ProjectState) Apply(op Operation) error {
	switch op.Kind {
	case OpCreateTable:
		t := NewTableSchema(op.Table)
		for _, c := range op.Columns {
			t.AddColumn(c.Clone())
		}
		t.Constraints = cloneConstraints(op.Constraints)
		s.tables[op.Table] = t

	case OpDropTable:
		delete(s.tables, op.Table)

	case OpAddColumn, OpAlterColumn:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		t.AddColumn(op.Column.Clone())
		s.tables[op.Table] = t

	case OpDropColumn:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		delete(t.Columns, op.Name)
		s.tables[op.Table] = t

	case OpRenameTable:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		delete(s.tables, op.Table)
		t.Name = op.NewName
		s.tables[op.NewName] = t

	case OpRenameColumn:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		c, ok := t.Columns[op.Name]
		if !ok {
			return nil
		}
		delete(t.Columns, op.Name)
		c.Name = op.NewName
		t.AddColumn(c)
		s.tables[op.Table] = t

	case OpCreateIndex:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		t.Indexes = append(t.Indexes, op.Index.Clone())
		s.tables[op.Table] = t

	case OpDropIndex:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		kept := t.Indexes[:0]
		for _, idx := range t.Indexes {
			if idx.Name != op.Name {
				kept = append(kept, idx)
			}
		}
		t.Indexes = kept
		s.tables[op.Table] = t

	case OpAddConstraint:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		t.Constraints = append(t.Constraints, op.Constraint.Clone())
		s.tables[op.Table] = t

	case OpDropConstraint:
		t, ok := s.tables[op.Table]
		if !ok {
			return nil
		}
		kept := t.Constraints[:0]
		for _, c := range t.Constraints {
			if c.Name != op.Name {
				kept = append(kept, c)
			}
		}
		t.Constraints = kept
		s.tables[op.Table] = t

	case OpRunSQL:
		// Raw SQL is opaque to state tracking.

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, string(op.Kind))
	}
	return nil
}

// ApplyAll folds a sequence of operations in order, stopping at the first
// error.
func (s *ProjectState) ApplyAll(ops []Operation) error {
	for _, op := range ops {
		if err := s.Apply(op); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the named table and whether it exists.
func (s *ProjectState) Table(name string) (TableSchema, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames returns the tracked table names in lexicographic order.
func (s *ProjectState) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tracked tables.
func (s *ProjectState) Len() int {
	return len(s.tables)
}

// Schema returns the state as a DatabaseSchema snapshot. The snapshot is a
// deep copy; later Apply calls do not affect it.
func (s *ProjectState) Schema() DatabaseSchema {
	out := NewDatabaseSchema()
	for _, t := range s.tables {
		out.AddTable(t.Clone())
	}
	return out
}
