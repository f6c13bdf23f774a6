package strata_test

import (
	"context"
	"testing"
	"time"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/schema"
)

func schemaOf(t *testing.T, tables ...schema.TableSchema) schema.DatabaseSchema {
	t.Helper()
	s := schema.NewDatabaseSchema()
	for _, tbl := range tables {
		s.AddTable(tbl)
	}
	return s
}

func usersTable() schema.TableSchema {
	tbl := schema.NewTableSchema("users")
	for _, c := range usersColumns() {
		tbl.AddColumn(c)
	}
	return tbl
}

func postsTable() schema.TableSchema {
	tbl := schema.NewTableSchema("posts")
	tbl.AddColumn(schema.ColumnSchema{Name: "id", Type: schema.Integer(), PrimaryKey: true, AutoIncrement: true})
	tbl.AddColumn(schema.ColumnSchema{Name: "title", Type: schema.VarChar(200)})
	return tbl
}

func frozenClock() func() time.Time {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return at }
}

func TestGenerateInitialCreateTable(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())
	gen := strata.NewGenerator(schemaOf(t, usersTable()), repo, strata.WithClock(frozenClock()))

	res, err := gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	m := res.Migration
	if m.Name != "0001_initial" {
		t.Errorf("name = %q, want %q", m.Name, "0001_initial")
	}
	if res.OperationCount != 1 || len(m.Operations) != 1 {
		t.Fatalf("OperationCount = %d, len(Operations) = %d, want 1", res.OperationCount, len(m.Operations))
	}
	if op := m.Operations[0]; op.Kind != schema.OpCreateTable || op.Table != "users" {
		t.Errorf("operation = %s, want create_table users", op.Describe())
	}
	if len(m.Dependencies) != 0 {
		t.Errorf("dependencies = %v, want none for first migration", m.Dependencies)
	}
	if !m.IsInitial() {
		t.Error("first migration should be initial")
	}
	if res.MigrationFile != "" {
		t.Errorf("MigrationFile = %q, want empty (caller-assigned)", res.MigrationFile)
	}

	// Nothing was persisted: that is the caller's explicit step.
	stored, err := repo.List(ctx, "blog")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("Generate() persisted %d migrations, want 0", len(stored))
	}
}

func TestGenerateNoChanges(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())
	target := schemaOf(t, usersTable())
	gen := strata.NewGenerator(target, repo)

	_, err := gen.Generate(ctx, "blog", target.Clone())
	if !strata.IsNoChangesErr(err) {
		t.Errorf("Generate() with matching schemas = %v, want ErrNoChanges", err)
	}
}

func TestGenerateDuplicateAfterPersist(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())
	gen := strata.NewGenerator(schemaOf(t, usersTable()), repo)

	res, err := gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if err := repo.Save(ctx, res.Migration); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	_, err = gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if !strata.IsDuplicateMigrationErr(err) {
		t.Errorf("repeat Generate() = %v, want ErrDuplicateMigration", err)
	}
}

func TestGenerateSemanticDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())

	gen := strata.NewGenerator(schemaOf(t, usersTable()), repo)
	res, err := gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if err := repo.Save(ctx, res.Migration); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Same users table, columns inserted in reverse order.
	shuffled := schema.NewTableSchema("users")
	cols := usersColumns()
	for i := len(cols) - 1; i >= 0; i-- {
		shuffled.AddColumn(cols[i])
	}

	gen2 := strata.NewGenerator(schemaOf(t, shuffled), repo)
	_, err = gen2.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if !strata.IsDuplicateMigrationErr(err) {
		t.Errorf("Generate() with column-order-shuffled target = %v, want ErrDuplicateMigration", err)
	}
}

func TestGenerateSuccessiveDeltas(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())

	first := strata.NewGenerator(schemaOf(t, usersTable()), repo)
	res1, err := first.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("first Generate() error: %v", err)
	}
	if err := repo.Save(ctx, res1.Migration); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Run("new table", func(t *testing.T) {
		second := strata.NewGenerator(schemaOf(t, usersTable(), postsTable()), repo)
		res2, err := second.Generate(ctx, "blog", schemaOf(t, usersTable()))
		if err != nil {
			t.Fatalf("second Generate() error: %v", err)
		}

		m := res2.Migration
		if m.Name != "0002_create_posts" {
			t.Errorf("name = %q, want %q", m.Name, "0002_create_posts")
		}
		if len(m.Operations) != 1 || m.Operations[0].Kind != schema.OpCreateTable || m.Operations[0].Table != "posts" {
			t.Errorf("operations = %v, want single create_table posts", m.Operations)
		}
		want := strata.Ref{App: "blog", Name: "0001_initial"}
		if len(m.Dependencies) != 1 || m.Dependencies[0] != want {
			t.Errorf("dependencies = %v, want [%v]", m.Dependencies, want)
		}
		if m.IsInitial() {
			t.Error("second migration should not be initial")
		}
	})

	t.Run("new column", func(t *testing.T) {
		wider := usersTable()
		wider.AddColumn(schema.ColumnSchema{Name: "bio", Type: schema.Text(), Nullable: true})

		gen := strata.NewGenerator(schemaOf(t, wider), repo)
		res, err := gen.Generate(ctx, "blog", schemaOf(t, usersTable()))
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if res.Migration.Name != "0002_add_users_bio" {
			t.Errorf("name = %q, want %q", res.Migration.Name, "0002_add_users_bio")
		}
	})
}

func TestGenerateInProcessNamesNeverCollide(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())

	// A frozen clock makes every call happen "at the same instant"; names
	// must still come out distinct because the generator remembers what it
	// has issued.
	gen := strata.NewGenerator(schemaOf(t, usersTable()), repo, strata.WithClock(frozenClock()))

	res1, err := gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("first Generate() error: %v", err)
	}
	res2, err := gen.Generate(ctx, "blog", schema.NewDatabaseSchema())
	if err != nil {
		t.Fatalf("second Generate() error: %v", err)
	}

	if res1.Migration.Name == res2.Migration.Name {
		t.Errorf("both calls minted %q; names must never collide in-process", res1.Migration.Name)
	}
}

func TestGenerateDifferentAppsIndependent(t *testing.T) {
	ctx := context.Background()
	repo := strata.NewFilesystemRepository(t.TempDir())
	gen := strata.NewGenerator(schemaOf(t, usersTable()), repo)

	for _, app := range []string{"blog", "shop"} {
		res, err := gen.Generate(ctx, app, schema.NewDatabaseSchema())
		if err != nil {
			t.Fatalf("Generate(%s) error: %v", app, err)
		}
		if res.Migration.Name != "0001_initial" {
			t.Errorf("Generate(%s) name = %q, want 0001_initial", app, res.Migration.Name)
		}
		if err := repo.Save(ctx, res.Migration); err != nil {
			t.Fatalf("Save(%s) error: %v", app, err)
		}
	}
}
