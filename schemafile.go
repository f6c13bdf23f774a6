package strata

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/strataorm/strata/schema"
)

// LoadSchemaFile reads a target schema from a YAML file. This is how the
// CLI obtains the declared model: a schema.yaml checked into the project
// next to the migrations directory.
//
// A missing file fails with ErrNotFound so callers can distinguish "not
// configured yet" from a malformed file.
func LoadSchemaFile(path string) (schema.DatabaseSchema, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return schema.DatabaseSchema{}, fmt.Errorf("%w: schema file %s", ErrNotFound, path)
	}
	if err != nil {
		return schema.DatabaseSchema{}, fmt.Errorf("reading schema file %s: %w", path, err)
	}

	var s schema.DatabaseSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return schema.DatabaseSchema{}, fmt.Errorf("decoding schema file %s: %w", path, err)
	}
	if s.Tables == nil {
		s.Tables = make(map[string]schema.TableSchema)
	}
	return s, nil
}

// SaveSchemaFile writes a schema snapshot as YAML. Used by tooling that
// captures a live database's introspected shape as the next target.
func SaveSchemaFile(path string, s schema.DatabaseSchema) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing schema file %s: %w", path, err)
	}
	return nil
}
