package doctor

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/schema"
)

func declaredSchema() schema.DatabaseSchema {
	users := schema.NewTableSchema("users")
	users.AddColumn(schema.ColumnSchema{Name: "id", Type: schema.Integer(), PrimaryKey: true, AutoIncrement: true})
	users.AddColumn(schema.ColumnSchema{Name: "email", Type: schema.VarChar(255)})

	s := schema.NewDatabaseSchema()
	s.AddTable(users)
	return s
}

// writeProject lays out a schema file and migrations dir under a temp root.
func writeProject(t *testing.T, declared schema.DatabaseSchema, captured bool) (schemaPath, migrationsDir string) {
	t.Helper()
	root := t.TempDir()
	schemaPath = filepath.Join(root, "schema.yaml")
	migrationsDir = filepath.Join(root, "migrations")

	require.NoError(t, strata.SaveSchemaFile(schemaPath, declared))

	if captured {
		ctx := context.Background()
		repo := strata.NewFilesystemRepository(migrationsDir)
		gen := strata.NewGenerator(declared, repo)
		res, err := gen.Generate(ctx, "app", schema.NewDatabaseSchema())
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, res.Migration))
	}
	return schemaPath, migrationsDir
}

func TestRunMissingSchemaFile(t *testing.T) {
	d := New(nil, filepath.Join(t.TempDir(), "absent.yaml"), t.TempDir())
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.HasErrors())
	require.NotEmpty(t, report.Checks)
	first := report.Checks[0]
	assert.Equal(t, "Schema", first.Category)
	assert.Equal(t, StatusFail, first.Status)
	assert.Contains(t, first.Message, "schema file missing")
}

func TestRunCleanProject(t *testing.T) {
	schemaPath, migrationsDir := writeProject(t, declaredSchema(), true)

	d := New(nil, schemaPath, migrationsDir)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.HasErrors())

	var pendingChanges *CheckResult
	var dbConnection *CheckResult
	for i := range report.Checks {
		switch report.Checks[i].Name {
		case "pending-changes":
			pendingChanges = &report.Checks[i]
		case "connection":
			dbConnection = &report.Checks[i]
		}
	}
	require.NotNil(t, pendingChanges)
	assert.Equal(t, StatusPass, pendingChanges.Status)

	// No database handle: the only warning should be the skipped DB checks.
	require.NotNil(t, dbConnection)
	assert.Equal(t, StatusWarn, dbConnection.Status)
	assert.Equal(t, 1, report.Warnings)
}

func TestRunUncapturedChanges(t *testing.T) {
	schemaPath, migrationsDir := writeProject(t, declaredSchema(), false)

	d := New(nil, schemaPath, migrationsDir)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.HasErrors())

	var pendingChanges *CheckResult
	for i := range report.Checks {
		if report.Checks[i].Name == "pending-changes" {
			pendingChanges = &report.Checks[i]
		}
	}
	require.NotNil(t, pendingChanges)
	assert.Equal(t, StatusWarn, pendingChanges.Status)
	assert.Contains(t, pendingChanges.Message, "not yet captured")
	assert.Contains(t, pendingChanges.Details, "create table users")
	assert.Contains(t, pendingChanges.FixHint, "makemigrations")
}

func TestRunCircularDependencies(t *testing.T) {
	schemaPath, migrationsDir := writeProject(t, declaredSchema(), false)

	ctx := context.Background()
	repo := strata.NewFilesystemRepository(migrationsDir)

	a := strata.NewMigration("app", "0001_a",
		schema.CreateTable("a", []schema.ColumnSchema{{Name: "id", Type: schema.Integer(), PrimaryKey: true}}, nil))
	b := strata.NewMigration("app", "0002_b",
		schema.CreateTable("b", []schema.ColumnSchema{{Name: "id", Type: schema.Integer(), PrimaryKey: true}}, nil))
	a.Dependencies = []strata.Ref{b.Ref()}
	b.Dependencies = []strata.Ref{a.Ref()}
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	d := New(nil, schemaPath, migrationsDir)
	report, err := d.Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.HasErrors())

	var ordering *CheckResult
	for i := range report.Checks {
		if report.Checks[i].Name == "ordering" {
			ordering = &report.Checks[i]
		}
	}
	require.NotNil(t, ordering)
	assert.Equal(t, StatusFail, ordering.Status)
	assert.Contains(t, ordering.Message, "cannot be ordered")
}

func TestReportPrint(t *testing.T) {
	report := &Report{}
	report.AddCheck(CheckResult{
		Category: "Schema",
		Name:     "schema-file",
		Status:   StatusPass,
		Message:  "schema file parsed (2 tables)",
		Details:  "schema.yaml",
	})
	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "connection",
		Status:   StatusFail,
		Message:  "cannot reach the database",
		FixHint:  "check database.url and that the server is running",
	})

	var buf bytes.Buffer
	report.Print(&buf, false)
	out := buf.String()

	assert.Contains(t, out, "Schema\n")
	assert.Contains(t, out, "✓ schema file parsed (2 tables)")
	assert.Contains(t, out, "✗ cannot reach the database")
	assert.Contains(t, out, "Fix: check database.url")
	assert.Contains(t, out, "Summary: 1 passed, 0 warnings, 1 errors")
	assert.NotContains(t, out, "schema.yaml", "details hidden unless verbose")

	buf.Reset()
	report.Print(&buf, true)
	assert.Contains(t, buf.String(), "schema.yaml")
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fail", StatusFail.String())
	assert.Equal(t, "✓", StatusPass.Symbol())
	assert.Equal(t, "⚠", StatusWarn.Symbol())
	assert.Equal(t, "✗", StatusFail.Symbol())
}
