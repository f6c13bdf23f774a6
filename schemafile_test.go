package strata_test

import (
	"path/filepath"
	"testing"

	"github.com/strataorm/strata"
	"github.com/strataorm/strata/schema"
)

func TestSchemaFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	want := schemaOf(t, usersTable(), postsTable())

	if err := strata.SaveSchemaFile(path, want); err != nil {
		t.Fatalf("SaveSchemaFile() error: %v", err)
	}

	got, err := strata.LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("LoadSchemaFile() error: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("loaded schema differs from saved schema\ngot tables: %v\nwant tables: %v",
			got.TableNames(), want.TableNames())
	}
}

func TestLoadSchemaFileMissing(t *testing.T) {
	_, err := strata.LoadSchemaFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !strata.IsNotFoundErr(err) {
		t.Errorf("LoadSchemaFile() = %v, want ErrNotFound", err)
	}
}

func TestLoadSchemaFileEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := strata.SaveSchemaFile(path, schema.DatabaseSchema{}); err != nil {
		t.Fatalf("SaveSchemaFile() error: %v", err)
	}

	got, err := strata.LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("LoadSchemaFile() error: %v", err)
	}
	if got.Tables == nil {
		t.Error("Tables map should be initialized even for an empty document")
	}
}
