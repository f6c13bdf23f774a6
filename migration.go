package strata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/strataorm/strata/schema"
)

// Ref identifies a migration by app label and name, the key every
// dependency edge is expressed in.
type Ref struct {
	App  string `json:"app"`
	Name string `json:"name"`
}

// ID renders the reference as "app.name".
func (r Ref) ID() string {
	return r.App + "." + r.Name
}

// Migration is a named, ordered bundle of operations plus dependency
// metadata: the unit of persistence and replay.
//
// A migration is constructed in memory by the Generator (unpersisted),
// written once via Repository.Save, and read back by the Loader. After
// save it is immutable history; corrections are expressed as new
// migrations, never edits.
type Migration struct {
	App          string             `json:"app"`
	Name         string             `json:"name"`
	Operations   []schema.Operation `json:"operations"`
	Dependencies []Ref              `json:"dependencies,omitempty"`
	Replaces     []Ref              `json:"replaces,omitempty"`
	Atomic       bool               `json:"atomic"`
	Initial      *bool              `json:"initial,omitempty"`
}

// NewMigration returns a migration with Atomic defaulted to true.
func NewMigration(app, name string, ops ...schema.Operation) *Migration {
	return &Migration{
		App:        app,
		Name:       name,
		Operations: ops,
		Atomic:     true,
	}
}

// Ref returns the migration's identity as a dependency reference.
func (m *Migration) Ref() Ref {
	return Ref{App: m.App, Name: m.Name}
}

// ID renders the migration's identity as "app.name".
func (m *Migration) ID() string {
	return m.Ref().ID()
}

// IsInitial reports whether this is an app's first migration. An explicit
// Initial value wins; otherwise a migration with no dependencies is
// considered initial.
func (m *Migration) IsInitial() bool {
	if m.Initial != nil {
		return *m.Initial
	}
	return len(m.Dependencies) == 0
}

// Checksum returns the hex SHA-256 of the serialized operation list. The
// apply phase records it alongside each applied migration so status checks
// can flag artifacts that changed after they were applied.
func (m *Migration) Checksum() string {
	// Marshaling the operation structs cannot fail; they are plain data.
	b, _ := json.Marshal(m.Operations)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
