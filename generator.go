package strata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/strataorm/strata/schema"
)

// AutoMigrationResult is what Generate hands back for review. The
// Generator never persists anything itself; the caller decides whether
// to commit the proposed migration via Repository.Save, which keeps
// interactive "show me first" workflows possible.
type AutoMigrationResult struct {
	// Migration is the proposed, not-yet-persisted migration.
	Migration *Migration

	// OperationCount is len(Migration.Operations), precomputed for
	// display layers that only need the headline number.
	OperationCount int

	// MigrationFile is left empty by the Generator. Callers that persist
	// the migration may record the resulting artifact path here.
	MigrationFile string
}

// Generator produces migrations by diffing a source schema against the
// target schema it was constructed with, rejecting candidates that
// duplicate recorded history.
//
// A Generator remembers every name it has issued, so two calls in the
// same process can never mint colliding identifiers even when neither
// result has been persisted yet. That memory is scoped to the instance;
// share one Generator per repository rather than constructing one per
// call.
type Generator struct {
	target schema.DatabaseSchema
	repo   Repository
	now    func() time.Time

	mu     sync.Mutex
	issued map[string]int64 // migration ID -> clock reading at issue time
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces the clock used to stamp issued names. Production
// code never needs this; tests inject deterministic clocks with it.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator returns a Generator that reconciles schemas toward target
// and consults repo for already-recorded history.
func NewGenerator(target schema.DatabaseSchema, repo Repository, opts ...GeneratorOption) *Generator {
	g := &Generator{
		target: target,
		repo:   repo,
		now:    time.Now,
		issued: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate diffs source against the configured target and, when the
// delta is novel, returns a named migration for the caller to persist.
//
// Two failure modes are normal control flow, not faults:
//
//   - ErrNoChanges: the diff is empty, the schemas are already in sync.
//   - ErrDuplicateMigration: the diff exactly or semantically matches a
//     migration already recorded for the app, so generating again would
//     record the same change twice.
//
// Anything else is a repository I/O failure and is propagated as-is.
func (g *Generator) Generate(ctx context.Context, app string, source schema.DatabaseSchema) (*AutoMigrationResult, error) {
	ops := schema.Diff(source, g.target)
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w for app %q", ErrNoChanges, app)
	}

	existing, err := g.repo.List(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("loading history for app %q: %w", app, err)
	}
	if isDuplicate(ops, existing) {
		return nil, fmt.Errorf("%w for app %q", ErrDuplicateMigration, app)
	}

	m := NewMigration(app, g.mintName(app, existing, ops), ops...)
	if len(existing) > 0 {
		m.Dependencies = []Ref{existing[len(existing)-1].Ref()}
	}

	return &AutoMigrationResult{
		Migration:      m,
		OperationCount: len(ops),
	}, nil
}

// mintName builds the next zero-padded sequential name for the app,
// skipping over names this Generator has already handed out. The clock
// reading recorded per issued name is the in-process tiebreaker: it is
// never part of the final name, which stays sequence-number-based.
func (g *Generator) mintName(app string, existing []*Migration, ops []schema.Operation) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	seq := maxSequence(existing) + 1
	suffix := nameSuffix(ops, len(existing) == 0)
	for {
		name := fmt.Sprintf("%04d_%s", seq, suffix)
		id := app + "." + name
		if _, taken := g.issued[id]; !taken {
			g.issued[id] = g.now().UnixNano()
			return name
		}
		seq++
	}
}

// maxSequence returns the highest leading sequence number among the
// given migrations. Names without a numeric prefix are ignored, so
// hand-written artifacts cannot break generation.
func maxSequence(migrations []*Migration) int {
	max := 0
	for _, m := range migrations {
		prefix, _, ok := strings.Cut(m.Name, "_")
		if !ok {
			prefix = m.Name
		}
		n, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

// nameSuffix derives the human-readable part of a migration name from
// its operations. The first migration of an app is always "initial"; a
// single-operation migration describes itself; anything bigger falls
// back to "auto".
func nameSuffix(ops []schema.Operation, initial bool) string {
	if initial {
		return "initial"
	}
	if len(ops) != 1 {
		return "auto"
	}

	op := ops[0]
	switch op.Kind {
	case schema.OpCreateTable:
		return sanitizeNamePart("create_" + op.Table)
	case schema.OpDropTable:
		return sanitizeNamePart("drop_" + op.Table)
	case schema.OpAddColumn:
		return sanitizeNamePart("add_" + op.Table + "_" + op.Column.Name)
	case schema.OpDropColumn:
		return sanitizeNamePart("remove_" + op.Table + "_" + op.Name)
	case schema.OpAlterColumn:
		return sanitizeNamePart("alter_" + op.Table + "_" + op.Column.Name)
	case schema.OpRenameTable:
		return sanitizeNamePart("rename_" + op.Table + "_" + op.NewName)
	case schema.OpRenameColumn:
		return sanitizeNamePart("rename_" + op.Table + "_" + op.Name)
	case schema.OpCreateIndex:
		return sanitizeNamePart("index_" + op.Index.Name)
	case schema.OpDropIndex:
		return sanitizeNamePart("drop_index_" + op.Name)
	case schema.OpAddConstraint:
		return sanitizeNamePart("constraint_" + op.Constraint.Name)
	case schema.OpDropConstraint:
		return sanitizeNamePart("drop_constraint_" + op.Name)
	case schema.OpRunSQL:
		return "run_sql"
	default:
		return "auto"
	}
}

// sanitizeNamePart lowercases s and replaces anything outside
// [a-z0-9_] so the suffix is always a safe path component.
func sanitizeNamePart(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
