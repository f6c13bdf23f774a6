package strata

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/strataorm/strata/schema"
)

// trackingDDL defines the strata_migrations table for recording applied
// migrations.
const trackingDDL = `-- Strata migrations tracking table
-- Stores one row per applied migration:
-- - app/name: the migration's identity, matching its on-disk artifact
-- - checksum: SHA256 of the migration's operations, for drift detection
--
-- The applier skips migrations already recorded here with a matching
-- checksum and refuses to proceed when the checksum differs, since that
-- means recorded history was rewritten after being applied.

CREATE TABLE IF NOT EXISTS strata_migrations (
    id BIGSERIAL PRIMARY KEY,
    app VARCHAR NOT NULL,
    name VARCHAR NOT NULL,
    checksum VARCHAR(64) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (app, name)
);

-- Lookup by app for per-app status reporting
CREATE INDEX IF NOT EXISTS idx_strata_migrations_app
ON strata_migrations (app);
`

// RenderOperation translates one operation into the PostgreSQL
// statements that realize it. Most operations map to a single statement;
// AlterColumn expands to one statement per changed facet because
// PostgreSQL has no single-statement full-column redefinition, and
// CreateTable adds one ALTER TABLE per foreign key so references to
// tables created by later operations still resolve.
//
// Default values are raw SQL expressions and are rendered verbatim;
// identifiers are always quoted.
func RenderOperation(op schema.Operation) ([]string, error) {
	switch op.Kind {
	case schema.OpCreateTable:
		create, fks := renderCreateTable(op)
		return append([]string{create}, fks...), nil

	case schema.OpDropTable:
		return []string{fmt.Sprintf("DROP TABLE %s;", pq.QuoteIdentifier(op.Table))}, nil

	case schema.OpAddColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;",
			pq.QuoteIdentifier(op.Table), renderColumn(*op.Column))}, nil

	case schema.OpDropColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
			pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(op.Name))}, nil

	case schema.OpAlterColumn:
		return renderAlterColumn(op), nil

	case schema.OpRenameTable:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
			pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(op.NewName))}, nil

	case schema.OpRenameColumn:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;",
			pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(op.Name), pq.QuoteIdentifier(op.NewName))}, nil

	case schema.OpCreateIndex:
		unique := ""
		if op.Index.Unique {
			unique = "UNIQUE "
		}
		return []string{fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
			unique, pq.QuoteIdentifier(op.Index.Name), pq.QuoteIdentifier(op.Table), quoteJoin(op.Index.Columns))}, nil

	case schema.OpDropIndex:
		return []string{fmt.Sprintf("DROP INDEX %s;", pq.QuoteIdentifier(op.Name))}, nil

	case schema.OpAddConstraint:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;",
			pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(op.Constraint.Name), renderConstraintBody(*op.Constraint))}, nil

	case schema.OpDropConstraint:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;",
			pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(op.Name))}, nil

	case schema.OpRunSQL:
		return []string{op.SQL}, nil

	default:
		return nil, fmt.Errorf("%w: cannot render %q", schema.ErrUnknownOperation, string(op.Kind))
	}
}

// RenderOperations renders a whole operation sequence. Statements follow
// operation order, except that the foreign keys of created tables move to
// the end of the batch: creates are emitted in lexicographic table order,
// so a table may reference one that is created by a later operation.
func RenderOperations(ops []schema.Operation) ([]string, error) {
	var stmts, deferred []string
	for i, op := range ops {
		if op.Kind == schema.OpCreateTable {
			create, fks := renderCreateTable(op)
			stmts = append(stmts, create)
			deferred = append(deferred, fks...)
			continue
		}
		s, err := RenderOperation(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		stmts = append(stmts, s...)
	}
	return append(stmts, deferred...), nil
}

// renderCreateTable returns the CREATE TABLE statement and one ALTER TABLE
// per foreign key. Foreign keys never render inline so that the caller can
// run them after every table in the batch exists.
func renderCreateTable(op schema.Operation) (string, []string) {
	var defs []string

	var pkCols []string
	for _, c := range op.Columns {
		if c.PrimaryKey {
			pkCols = append(pkCols, c.Name)
		}
	}
	inlinePK := len(pkCols) == 1 && !hasPrimaryKeyConstraint(op.Constraints)

	for _, c := range op.Columns {
		def := renderColumn(c)
		if inlinePK && c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, "    "+def)
	}

	if len(pkCols) > 1 && !hasPrimaryKeyConstraint(op.Constraints) {
		defs = append(defs, fmt.Sprintf("    PRIMARY KEY (%s)", quoteJoin(pkCols)))
	}

	var fks []string
	for _, c := range op.Constraints {
		if c.Type == schema.ConstraintForeignKey {
			fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;",
				pq.QuoteIdentifier(op.Table), pq.QuoteIdentifier(c.Name), renderConstraintBody(c)))
			continue
		}
		defs = append(defs, fmt.Sprintf("    CONSTRAINT %s %s", pq.QuoteIdentifier(c.Name), renderConstraintBody(c)))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", pq.QuoteIdentifier(op.Table), strings.Join(defs, ",\n")), fks
}

func renderColumn(c schema.ColumnSchema) string {
	var b strings.Builder
	b.WriteString(pq.QuoteIdentifier(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.String())
	if c.AutoIncrement {
		b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

// renderAlterColumn emits one statement per facet of the new definition.
// The operation carries only the desired end state, so every facet is
// restated: TYPE, nullability, and default.
func renderAlterColumn(op schema.Operation) []string {
	table := pq.QuoteIdentifier(op.Table)
	col := pq.QuoteIdentifier(op.Column.Name)

	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", table, col, op.Column.Type.String()),
	}
	if op.Column.Nullable {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, col))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, col))
	}
	if op.Column.Default != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, col, *op.Column.Default))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, col))
	}
	return stmts
}

func renderConstraintBody(c schema.ConstraintSchema) string {
	switch c.Type {
	case schema.ConstraintPrimaryKey:
		return fmt.Sprintf("PRIMARY KEY (%s)", quoteJoin(c.Columns))
	case schema.ConstraintForeignKey:
		return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteJoin(c.Columns), pq.QuoteIdentifier(c.ReferencedTable), quoteJoin(c.ReferencedColumns))
	case schema.ConstraintUnique:
		return fmt.Sprintf("UNIQUE (%s)", quoteJoin(c.Columns))
	case schema.ConstraintCheck:
		return fmt.Sprintf("CHECK (%s)", c.Expression)
	default:
		return ""
	}
}

func hasPrimaryKeyConstraint(constraints []schema.ConstraintSchema) bool {
	for _, c := range constraints {
		if c.Type == schema.ConstraintPrimaryKey {
			return true
		}
	}
	return false
}

func quoteJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
