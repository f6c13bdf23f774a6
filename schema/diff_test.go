package schema_test

import (
	"testing"

	"github.com/strataorm/strata/schema"
)

func usersTable() schema.TableSchema {
	tbl := schema.NewTableSchema("users")
	tbl.AddColumn(schema.ColumnSchema{Name: "id", Type: schema.Integer(), PrimaryKey: true, AutoIncrement: true})
	tbl.AddColumn(schema.ColumnSchema{Name: "email", Type: schema.VarChar(255)})
	tbl.AddColumn(schema.ColumnSchema{Name: "name", Type: schema.Text(), Nullable: true})
	return tbl
}

func postsTable() schema.TableSchema {
	tbl := schema.NewTableSchema("posts")
	tbl.AddColumn(schema.ColumnSchema{Name: "id", Type: schema.Integer(), PrimaryKey: true, AutoIncrement: true})
	tbl.AddColumn(schema.ColumnSchema{Name: "title", Type: schema.VarChar(200)})
	return tbl
}

func TestDiffCreateTable(t *testing.T) {
	source := schema.NewDatabaseSchema()
	target := schema.NewDatabaseSchema()
	target.AddTable(usersTable())

	ops := schema.Diff(source, target)
	if len(ops) != 1 {
		t.Fatalf("Diff returned %d operations, want 1", len(ops))
	}
	op := ops[0]
	if op.Kind != schema.OpCreateTable {
		t.Fatalf("operation kind = %q, want %q", op.Kind, schema.OpCreateTable)
	}
	if op.Table != "users" {
		t.Errorf("operation table = %q, want users", op.Table)
	}
	if len(op.Columns) != 3 {
		t.Fatalf("create_table carries %d columns, want 3", len(op.Columns))
	}
	// Column lists are emitted sorted by name.
	want := []string{"email", "id", "name"}
	for i, c := range op.Columns {
		if c.Name != want[i] {
			t.Errorf("column[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
}

func TestDiffDropTable(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())
	target := schema.NewDatabaseSchema()

	ops := schema.Diff(source, target)
	if len(ops) != 1 {
		t.Fatalf("Diff returned %d operations, want 1", len(ops))
	}
	if ops[0].Kind != schema.OpDropTable || ops[0].Table != "users" {
		t.Errorf("got %s %s, want drop_table users", ops[0].Kind, ops[0].Table)
	}
}

func TestDiffColumnChanges(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())

	target := schema.NewDatabaseSchema()
	tbl := usersTable()
	// add "bio", alter "email" (length), drop "name"
	tbl.AddColumn(schema.ColumnSchema{Name: "bio", Type: schema.Text(), Nullable: true})
	tbl.AddColumn(schema.ColumnSchema{Name: "email", Type: schema.VarChar(512)})
	delete(tbl.Columns, "name")
	target.AddTable(tbl)

	ops := schema.Diff(source, target)
	if len(ops) != 3 {
		t.Fatalf("Diff returned %d operations, want 3: %v", len(ops), describeAll(ops))
	}
	if ops[0].Kind != schema.OpAddColumn || ops[0].Column.Name != "bio" {
		t.Errorf("ops[0] = %s, want add_column bio", ops[0].Describe())
	}
	if ops[1].Kind != schema.OpAlterColumn || ops[1].Column.Name != "email" {
		t.Errorf("ops[1] = %s, want alter_column email", ops[1].Describe())
	}
	if ops[1].Column.Type != schema.VarChar(512) {
		t.Errorf("alter_column carries type %v, want varchar(512)", ops[1].Column.Type)
	}
	if ops[2].Kind != schema.OpDropColumn || ops[2].Name != "name" {
		t.Errorf("ops[2] = %s, want drop_column name", ops[2].Describe())
	}
}

func TestDiffNullabilityChange(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())

	target := schema.NewDatabaseSchema()
	tbl := usersTable()
	tbl.AddColumn(schema.ColumnSchema{Name: "email", Type: schema.VarChar(255), Nullable: true})
	target.AddTable(tbl)

	ops := schema.Diff(source, target)
	if len(ops) != 1 || ops[0].Kind != schema.OpAlterColumn {
		t.Fatalf("nullability change should produce one alter_column, got %v", describeAll(ops))
	}
	if !ops[0].Column.Nullable {
		t.Error("alter_column should carry the new nullable definition")
	}
}

func TestDiffIdenticalSchemasIsEmpty(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())
	source.AddTable(postsTable())
	target := schema.NewDatabaseSchema()
	target.AddTable(usersTable())
	target.AddTable(postsTable())

	if ops := schema.Diff(source, target); len(ops) != 0 {
		t.Errorf("identical schemas produced %d operations: %v", len(ops), describeAll(ops))
	}
	if ops := schema.Diff(schema.NewDatabaseSchema(), schema.NewDatabaseSchema()); len(ops) != 0 {
		t.Errorf("empty schemas produced %d operations", len(ops))
	}
}

func TestDiffOrderingCreatesChangesDrops(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())
	source.AddTable(schema.NewTableSchema("legacy"))

	target := schema.NewDatabaseSchema()
	tbl := usersTable()
	tbl.AddColumn(schema.ColumnSchema{Name: "bio", Type: schema.Text(), Nullable: true})
	target.AddTable(tbl)
	target.AddTable(postsTable())

	ops := schema.Diff(source, target)
	wantKinds := []schema.OpKind{schema.OpCreateTable, schema.OpAddColumn, schema.OpDropTable}
	if len(ops) != len(wantKinds) {
		t.Fatalf("Diff returned %d operations, want %d: %v", len(ops), len(wantKinds), describeAll(ops))
	}
	for i, kind := range wantKinds {
		if ops[i].Kind != kind {
			t.Errorf("ops[%d].Kind = %q, want %q", i, ops[i].Kind, kind)
		}
	}
	if ops[0].Table != "posts" || ops[2].Table != "legacy" {
		t.Errorf("creates must come before drops: %v", describeAll(ops))
	}
}

func TestDiffLexicographicTableOrder(t *testing.T) {
	source := schema.NewDatabaseSchema()
	target := schema.NewDatabaseSchema()
	for _, name := range []string{"zebra", "apple", "mango"} {
		tbl := schema.NewTableSchema(name)
		tbl.AddColumn(schema.ColumnSchema{Name: "id", Type: schema.Integer(), PrimaryKey: true})
		target.AddTable(tbl)
	}

	ops := schema.Diff(source, target)
	want := []string{"apple", "mango", "zebra"}
	if len(ops) != len(want) {
		t.Fatalf("Diff returned %d operations, want %d", len(ops), len(want))
	}
	for i, name := range want {
		if ops[i].Table != name {
			t.Errorf("ops[%d].Table = %q, want %q", i, ops[i].Table, name)
		}
	}
}

func TestDiffDeterministic(t *testing.T) {
	source := schema.NewDatabaseSchema()
	source.AddTable(usersTable())
	source.AddTable(schema.NewTableSchema("stale"))

	target := schema.NewDatabaseSchema()
	tbl := usersTable()
	tbl.AddColumn(schema.ColumnSchema{Name: "age", Type: schema.SmallInt(), Nullable: true})
	target.AddTable(tbl)
	target.AddTable(postsTable())

	first := schema.Diff(source, target)
	for i := 0; i < 5; i++ {
		next := schema.Diff(source, target)
		if !schema.EqualOperations(first, next) {
			t.Fatalf("run %d produced a different operation sequence:\nfirst: %v\nnext:  %v",
				i, describeAll(first), describeAll(next))
		}
	}
}

func TestDiffDoesNotAliasTarget(t *testing.T) {
	target := schema.NewDatabaseSchema()
	tbl := schema.NewTableSchema("users")
	tbl.AddColumn(schema.ColumnSchema{Name: "email", Type: schema.Text(), Default: strPtr("''")})
	target.AddTable(tbl)

	ops := schema.Diff(schema.NewDatabaseSchema(), target)
	*ops[0].Columns[0].Default = "'mutated'"

	if *target.Tables["users"].Columns["email"].Default != "''" {
		t.Error("mutating diff output leaked into the target schema")
	}
}

func describeAll(ops []schema.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Describe()
	}
	return out
}
