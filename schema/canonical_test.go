package schema_test

import (
	"testing"

	"github.com/strataorm/strata/schema"
)

func createUsersOp(columnOrder ...string) schema.Operation {
	defs := map[string]schema.ColumnSchema{
		"id":    {Name: "id", Type: schema.Integer(), PrimaryKey: true},
		"email": {Name: "email", Type: schema.VarChar(255)},
		"name":  {Name: "name", Type: schema.Text(), Nullable: true},
	}
	cols := make([]schema.ColumnSchema, 0, len(columnOrder))
	for _, name := range columnOrder {
		cols = append(cols, defs[name])
	}
	return schema.CreateTable("users", cols, nil)
}

func TestCanonicalSortsColumns(t *testing.T) {
	op := createUsersOp("name", "id", "email")
	canon := op.Canonical()

	want := []string{"email", "id", "name"}
	for i, c := range canon.Columns {
		if c.Name != want[i] {
			t.Errorf("canonical column[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
	// The original is untouched.
	if op.Columns[0].Name != "name" {
		t.Error("Canonical mutated its receiver")
	}
}

func TestEqualOperationsIsOrderSensitive(t *testing.T) {
	a := []schema.Operation{createUsersOp("id", "email", "name")}
	b := []schema.Operation{createUsersOp("name", "email", "id")}

	if schema.EqualOperations(a, b) {
		t.Error("exact equality should be sensitive to column order")
	}
	if !schema.EqualOperations(a, a) {
		t.Error("a list should be exactly equal to itself")
	}
}

func TestSemanticallyEqualOperations(t *testing.T) {
	t.Run("column order ignored", func(t *testing.T) {
		a := []schema.Operation{createUsersOp("id", "email", "name")}
		b := []schema.Operation{createUsersOp("name", "email", "id")}
		if !schema.SemanticallyEqualOperations(a, b) {
			t.Error("lists differing only in column order should be semantically equal")
		}
	})

	t.Run("different tables are not equal", func(t *testing.T) {
		a := []schema.Operation{createUsersOp("id", "email", "name")}
		b := []schema.Operation{schema.CreateTable("posts", []schema.ColumnSchema{
			{Name: "id", Type: schema.Integer(), PrimaryKey: true},
		}, nil)}
		if schema.SemanticallyEqualOperations(a, b) {
			t.Error("operations on different tables should not be semantically equal")
		}
	})

	t.Run("different column types are not equal", func(t *testing.T) {
		a := []schema.Operation{createUsersOp("id", "email")}
		b := createUsersOp("id", "email")
		b.Columns[1].Type = schema.VarChar(100)
		if schema.SemanticallyEqualOperations(a, []schema.Operation{b}) {
			t.Error("a changed column type should break semantic equality")
		}
	})

	t.Run("operation order still matters", func(t *testing.T) {
		users := createUsersOp("id")
		posts := schema.CreateTable("posts", []schema.ColumnSchema{
			{Name: "id", Type: schema.Integer(), PrimaryKey: true},
		}, nil)
		a := []schema.Operation{users, posts}
		b := []schema.Operation{posts, users}
		if schema.SemanticallyEqualOperations(a, b) {
			t.Error("canonicalization sorts column lists, not the operation sequence")
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		a := []schema.Operation{createUsersOp("id")}
		if schema.SemanticallyEqualOperations(a, nil) {
			t.Error("lists of different lengths should not be equal")
		}
	})
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	ops := []schema.Operation{createUsersOp("name", "id", "email")}
	_ = schema.Canonicalize(ops)
	if ops[0].Columns[0].Name != "name" {
		t.Error("Canonicalize mutated its input")
	}
}

func TestRunSQLEquality(t *testing.T) {
	a := schema.RunSQL("CREATE EXTENSION IF NOT EXISTS pgcrypto")
	b := schema.RunSQL("CREATE EXTENSION IF NOT EXISTS pgcrypto")
	c := schema.RunSQL("DROP EXTENSION pgcrypto")

	if !a.Equal(b) {
		t.Error("identical raw SQL operations should be equal")
	}
	if a.Equal(c) {
		t.Error("different raw SQL operations should not be equal")
	}
	if !a.Canonical().Equal(a) {
		t.Error("canonicalization should leave raw SQL untouched")
	}
}
