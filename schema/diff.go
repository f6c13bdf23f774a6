package schema

// Diff computes the ordered operation list that transforms source into
// target. It is a pure function: identical inputs always produce an
// identical, identically-ordered result, regardless of map insertion order
// on either side.
//
// The output is ordered for sequential replay:
//
//  1. One CreateTable per table present only in target, in lexicographic
//     table order, carrying the full column list (sorted by column name)
//     and constraints from target.
//  2. Column changes for tables present in both snapshots, per table in
//     lexicographic order: AddColumn, then AlterColumn, then DropColumn,
//     each group in lexicographic column order.
//  3. One DropTable per table present only in source, in lexicographic
//     table order.
//
// Creates come before drops so replayed operations never reference a
// structure that does not exist yet. A table present in both snapshots
// with no column differences contributes nothing.
//
// An empty result means the snapshots already agree; callers decide what
// that means (the generator reports it as a distinct "no changes" error
// rather than minting an empty migration).
func Diff(source, target DatabaseSchema) []Operation {
	var created, common []string
	for _, name := range target.TableNames() {
		if _, ok := source.Table(name); ok {
			common = append(common, name)
		} else {
			created = append(created, name)
		}
	}
	var dropped []string
	for _, name := range source.TableNames() {
		if _, ok := target.Table(name); !ok {
			dropped = append(dropped, name)
		}
	}

	var ops []Operation
	for _, name := range created {
		t := target.Tables[name]
		ops = append(ops, CreateTable(name, t.SortedColumns(), cloneConstraints(t.Constraints)))
	}
	for _, name := range common {
		ops = append(ops, diffColumns(source.Tables[name], target.Tables[name])...)
	}
	for _, name := range dropped {
		ops = append(ops, DropTable(name))
	}
	return ops
}

// diffColumns computes the column-level delta for one table present in
// both snapshots. Columns are compared field by field (type, nullability,
// default, primary key, auto-increment); any difference makes the column
// "altered" and the operation carries the full new definition.
func diffColumns(source, target TableSchema) []Operation {
	var adds, alters, drops []Operation
	for _, name := range target.ColumnNames() {
		tc := target.Columns[name]
		sc, ok := source.Columns[name]
		switch {
		case !ok:
			adds = append(adds, AddColumn(target.Name, tc.Clone()))
		case !sc.Equal(tc):
			alters = append(alters, AlterColumn(target.Name, tc.Clone()))
		}
	}
	for _, name := range source.ColumnNames() {
		if _, ok := target.Columns[name]; !ok {
			drops = append(drops, DropColumn(target.Name, name))
		}
	}

	ops := make([]Operation, 0, len(adds)+len(alters)+len(drops))
	ops = append(ops, adds...)
	ops = append(ops, alters...)
	ops = append(ops, drops...)
	return ops
}

func cloneConstraints(constraints []ConstraintSchema) []ConstraintSchema {
	if constraints == nil {
		return nil
	}
	out := make([]ConstraintSchema, len(constraints))
	for i, c := range constraints {
		out[i] = c.Clone()
	}
	return out
}
