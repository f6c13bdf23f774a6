package strata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// artifactExt is the extension of persisted migration artifacts. Files
// with any other extension are ignored by List and AllMigrations.
const artifactExt = ".yaml"

// FilesystemRepository stores one YAML artifact per migration at
// <root>/<app>/<name>.yaml. Artifacts round-trip the full Migration value:
// operations, dependencies, replaces, atomic flag, and the initial marker.
//
// The repository is append-only in spirit: Save never overwrites, and
// Delete exists for tooling that squashes or rolls back history by hand.
type FilesystemRepository struct {
	root string
}

// NewFilesystemRepository returns a repository rooted at the given
// directory. The directory does not need to exist yet; Save creates
// app directories on demand.
func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{root: root}
}

// Root returns the repository's root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// ArtifactPath returns the path Save writes the (app, name) migration to.
func (r *FilesystemRepository) ArtifactPath(app, name string) string {
	return r.path(app, name)
}

// Save persists a migration, enforcing the write-time invariants:
//
//  1. App and name must be safe path components (ErrInvalidName).
//  2. The (app, name) pair must be unused (ErrAlreadyExists).
//  3. The operations must not duplicate those of any migration already
//     stored for the app, exactly or semantically (ErrDuplicateOperations).
//
// The duplicate check re-derives the comparison from what is actually on
// disk, so it holds even when the caller skipped the Generator.
func (r *FilesystemRepository) Save(ctx context.Context, m *Migration) error {
	if err := validateComponent(m.App); err != nil {
		return err
	}
	if err := validateComponent(m.Name); err != nil {
		return err
	}

	exists, err := r.Exists(ctx, m.App, m.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, m.ID())
	}

	existing, err := r.List(ctx, m.App)
	if err != nil {
		return fmt.Errorf("checking existing migrations: %w", err)
	}
	if isDuplicate(m.Operations, existing) {
		return fmt.Errorf("%w: %s repeats an earlier migration for app %q", ErrDuplicateOperations, m.Name, m.App)
	}

	dir := filepath.Join(r.root, m.App)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating app directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding migration %s: %w", m.ID(), err)
	}
	if err := os.WriteFile(r.path(m.App, m.Name), data, 0o644); err != nil {
		return fmt.Errorf("writing migration %s: %w", m.ID(), err)
	}
	return nil
}

// Get reads one migration back, failing with ErrNotFound if no artifact
// exists for the (app, name) pair.
func (r *FilesystemRepository) Get(ctx context.Context, app, name string) (*Migration, error) {
	if err := validateComponent(app); err != nil {
		return nil, err
	}
	if err := validateComponent(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path(app, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, app, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading migration %s.%s: %w", app, name, err)
	}

	var m Migration
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding migration %s.%s: %w", app, name, err)
	}
	return &m, nil
}

// List returns all migrations stored for an app, sorted by name. An app
// with no directory yields an empty result, not an error. Artifacts with
// foreign extensions are skipped; artifacts that fail to parse are skipped
// with a warning so one corrupt file cannot hide an entire app's history.
func (r *FilesystemRepository) List(ctx context.Context, app string) ([]*Migration, error) {
	if err := validateComponent(app); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(r.root, app))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning migrations for app %q: %w", app, err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), artifactExt)
		m, err := r.Get(ctx, app, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping unreadable migration %s/%s: %v\n", app, entry.Name(), err)
			continue
		}
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})
	return migrations, nil
}

// Delete removes one migration artifact, failing with ErrNotFound if it
// does not exist.
func (r *FilesystemRepository) Delete(ctx context.Context, app, name string) error {
	if err := validateComponent(app); err != nil {
		return err
	}
	if err := validateComponent(name); err != nil {
		return err
	}

	err := os.Remove(r.path(app, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s.%s", ErrNotFound, app, name)
	}
	if err != nil {
		return fmt.Errorf("deleting migration %s.%s: %w", app, name, err)
	}
	return nil
}

// Exists reports whether an artifact is stored for the (app, name) pair.
func (r *FilesystemRepository) Exists(ctx context.Context, app, name string) (bool, error) {
	if err := validateComponent(app); err != nil {
		return false, err
	}
	if err := validateComponent(name); err != nil {
		return false, err
	}

	_, err := os.Stat(r.path(app, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking migration %s.%s: %w", app, name, err)
	}
	return true, nil
}

// AllMigrations scans every app directory under the repository root and
// returns the union of each app's migrations, apps in lexicographic order.
// A missing root yields an empty result: a project with no migrations yet
// is not an error.
func (r *FilesystemRepository) AllMigrations(ctx context.Context) ([]*Migration, error) {
	entries, err := os.ReadDir(r.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning migrations root: %w", err)
	}

	var apps []string
	for _, entry := range entries {
		if entry.IsDir() {
			apps = append(apps, entry.Name())
		}
	}
	sort.Strings(apps)

	var all []*Migration
	for _, app := range apps {
		migrations, err := r.List(ctx, app)
		if err != nil {
			return nil, err
		}
		all = append(all, migrations...)
	}
	return all, nil
}

func (r *FilesystemRepository) path(app, name string) string {
	return filepath.Join(r.root, app, name+artifactExt)
}

// validateComponent rejects app labels and migration names that could
// escape the repository root when joined into a path.
func validateComponent(s string) error {
	switch {
	case s == "" || s == "." || s == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	case strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}
