// Package pg reads the visible shape of a live PostgreSQL database into
// the schema model, so a real database can stand in for migration history
// as the source side of a diff.
package pg

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/strataorm/strata/schema"
)

// trackingTable is the migration bookkeeping table. It belongs to the tool,
// not the user's model, so introspection never reports it.
const trackingTable = "strata_migrations"

// Querier is the query surface Introspect needs. *pgx.Conn and
// *pgxpool.Pool both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a native pgx connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return conn, nil
}

// Introspect reads every base table in the named schema (usually "public")
// and reconstructs a DatabaseSchema from the catalogs: column shape from
// information_schema.columns, keys and references from table_constraints
// with key_column_usage, and secondary indexes from pg_index. Indexes that
// merely back a constraint are folded into the constraint they serve.
func Introspect(ctx context.Context, q Querier, schemaName string) (schema.DatabaseSchema, error) {
	out := schema.NewDatabaseSchema()

	tables, err := tableNames(ctx, q, schemaName)
	if err != nil {
		return schema.DatabaseSchema{}, err
	}
	for _, name := range tables {
		table, err := readTable(ctx, q, schemaName, name)
		if err != nil {
			return schema.DatabaseSchema{}, err
		}
		out.AddTable(table)
	}
	return out, nil
}

func tableNames(ctx context.Context, q Querier, schemaName string) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		  AND table_name <> $2
		ORDER BY table_name`

	rows, err := q.Query(ctx, query, schemaName, trackingTable)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}
	return names, nil
}

func readTable(ctx context.Context, q Querier, schemaName, tableName string) (schema.TableSchema, error) {
	table := schema.NewTableSchema(tableName)

	if err := readColumns(ctx, q, schemaName, tableName, &table); err != nil {
		return schema.TableSchema{}, err
	}
	if err := markPrimaryKey(ctx, q, schemaName, tableName, &table); err != nil {
		return schema.TableSchema{}, err
	}
	constraints, err := readConstraints(ctx, q, schemaName, tableName)
	if err != nil {
		return schema.TableSchema{}, err
	}
	table.Constraints = constraints

	indexes, err := readIndexes(ctx, q, schemaName, tableName)
	if err != nil {
		return schema.TableSchema{}, err
	}
	table.Indexes = indexes

	return table, nil
}

func readColumns(ctx context.Context, q Querier, schemaName, tableName string, table *schema.TableSchema) error {
	const query = `
		SELECT
			c.column_name,
			c.udt_name,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_nullable,
			c.column_default,
			c.is_identity
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("querying columns for %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name       string
			udtName    string
			charLen    *int
			precision  *int
			scale      *int
			isNullable string
			colDefault *string
			isIdentity string
		)
		if err := rows.Scan(&name, &udtName, &charLen, &precision, &scale, &isNullable, &colDefault, &isIdentity); err != nil {
			return fmt.Errorf("scanning column of %s: %w", tableName, err)
		}

		typ, err := columnType(udtName, charLen, precision, scale)
		if err != nil {
			return fmt.Errorf("table %s, column %s: %w", tableName, name, err)
		}

		col := schema.ColumnSchema{
			Name:          name,
			Type:          typ,
			Nullable:      isNullable == "YES",
			AutoIncrement: isIdentity == "YES",
		}
		if colDefault != nil {
			switch {
			case strings.HasPrefix(*colDefault, "nextval("):
				// Serial columns carry their sequence as a default.
				col.AutoIncrement = true
			default:
				d := normalizeDefault(*colDefault)
				col.Default = &d
			}
		}
		table.AddColumn(col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading columns of %s: %w", tableName, err)
	}
	return nil
}

// columnType maps a catalog udt_name back onto the model's closed type
// set. char(n) folds into varchar(n); types outside the set are an error
// rather than a silent guess.
func columnType(udtName string, charLen, precision, scale *int) (schema.ColumnType, error) {
	switch udtName {
	case "int4":
		return schema.Integer(), nil
	case "int8":
		return schema.BigInt(), nil
	case "int2":
		return schema.SmallInt(), nil
	case "varchar", "bpchar":
		if charLen != nil {
			return schema.VarChar(*charLen), nil
		}
		return schema.ColumnType{Kind: schema.KindVarChar}, nil
	case "text":
		return schema.Text(), nil
	case "bool":
		return schema.Boolean(), nil
	case "date":
		return schema.Date(), nil
	case "time", "timetz":
		return schema.Time(), nil
	case "timestamp":
		return schema.Timestamp(), nil
	case "timestamptz":
		return schema.TimestampTZ(), nil
	case "float4":
		return schema.Float(), nil
	case "float8":
		return schema.Double(), nil
	case "numeric":
		if precision != nil && scale != nil {
			return schema.Decimal(*precision, *scale), nil
		}
		return schema.ColumnType{Kind: schema.KindDecimal}, nil
	case "bytea":
		return schema.Binary(), nil
	case "uuid":
		return schema.UUID(), nil
	case "json":
		return schema.JSON(), nil
	case "jsonb":
		return schema.JSONB(), nil
	default:
		return schema.ColumnType{}, fmt.Errorf("unsupported postgres type %q", udtName)
	}
}

// normalizeDefault strips the trailing type cast the catalog appends to
// literal defaults, so 'admin'::character varying comes back as 'admin'.
// Casts buried inside expressions (parentheses, quoted text) stay put.
func normalizeDefault(def string) string {
	if i := strings.LastIndex(def, "::"); i >= 0 && !strings.ContainsAny(def[i:], "()'") {
		return def[:i]
	}
	return def
}

func markPrimaryKey(ctx context.Context, q Querier, schemaName, tableName string, table *schema.TableSchema) error {
	const query = `
		SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("querying primary key of %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning primary key of %s: %w", tableName, err)
		}
		if col, ok := table.Column(name); ok {
			col.PrimaryKey = true
			table.AddColumn(col)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading primary key of %s: %w", tableName, err)
	}
	return nil
}

// readConstraints returns the table's foreign key, unique, and check
// constraints, name-sorted. The primary key is not repeated here; it is
// carried on the columns it covers.
func readConstraints(ctx context.Context, q Querier, schemaName, tableName string) ([]schema.ConstraintSchema, error) {
	foreign, err := readForeignKeys(ctx, q, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	unique, err := readUniqueConstraints(ctx, q, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	checks, err := readCheckConstraints(ctx, q, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	out := make([]schema.ConstraintSchema, 0, len(foreign)+len(unique)+len(checks))
	out = append(out, foreign...)
	out = append(out, unique...)
	out = append(out, checks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func readForeignKeys(ctx context.Context, q Querier, schemaName, tableName string) ([]schema.ConstraintSchema, error) {
	const query = `
		SELECT DISTINCT
			tc.constraint_name,
			kcu.column_name,
			kcu.ordinal_position,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys of %s: %w", tableName, err)
	}
	defer rows.Close()

	byName := make(map[string]*schema.ConstraintSchema)
	var order []string
	for rows.Next() {
		var (
			name, column, refTable, refColumn string
			position                          int
		)
		if err := rows.Scan(&name, &column, &position, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scanning foreign key of %s: %w", tableName, err)
		}
		c, ok := byName[name]
		if !ok {
			c = &schema.ConstraintSchema{
				Name:            name,
				Type:            schema.ConstraintForeignKey,
				ReferencedTable: refTable,
			}
			byName[name] = c
			order = append(order, name)
		}
		if !slices.Contains(c.Columns, column) {
			c.Columns = append(c.Columns, column)
		}
		if !slices.Contains(c.ReferencedColumns, refColumn) {
			c.ReferencedColumns = append(c.ReferencedColumns, refColumn)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading foreign keys of %s: %w", tableName, err)
	}

	out := make([]schema.ConstraintSchema, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func readUniqueConstraints(ctx context.Context, q Querier, schemaName, tableName string) ([]schema.ConstraintSchema, error) {
	const query = `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying unique constraints of %s: %w", tableName, err)
	}
	defer rows.Close()

	byName := make(map[string]*schema.ConstraintSchema)
	var order []string
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, fmt.Errorf("scanning unique constraint of %s: %w", tableName, err)
		}
		c, ok := byName[name]
		if !ok {
			c = &schema.ConstraintSchema{Name: name, Type: schema.ConstraintUnique}
			byName[name] = c
			order = append(order, name)
		}
		c.Columns = append(c.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading unique constraints of %s: %w", tableName, err)
	}

	out := make([]schema.ConstraintSchema, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func readCheckConstraints(ctx context.Context, q Querier, schemaName, tableName string) ([]schema.ConstraintSchema, error) {
	// Postgres surfaces NOT NULL as synthetic check constraints; those are
	// already expressed by the column's Nullable flag, so skip them.
	const query = `
		SELECT tc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
		  ON cc.constraint_name = tc.constraint_name
		 AND cc.constraint_schema = tc.constraint_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type = 'CHECK'
		  AND cc.check_clause NOT LIKE '%IS NOT NULL'
		ORDER BY tc.constraint_name`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying check constraints of %s: %w", tableName, err)
	}
	defer rows.Close()

	var out []schema.ConstraintSchema
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, fmt.Errorf("scanning check constraint of %s: %w", tableName, err)
		}
		out = append(out, schema.ConstraintSchema{
			Name:       name,
			Type:       schema.ConstraintCheck,
			Expression: trimOuterParens(clause),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading check constraints of %s: %w", tableName, err)
	}
	return out, nil
}

// readIndexes returns the table's secondary indexes. Indexes that exist
// only to back a primary key or unique constraint are excluded; reporting
// them twice would make a freshly migrated database look drifted.
func readIndexes(ctx context.Context, q Querier, schemaName, tableName string) ([]schema.IndexSchema, error) {
	const query = `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND t.relkind = 'r'
		  AND NOT ix.indisprimary
		  AND NOT EXISTS (
			SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid
		  )
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname`

	rows, err := q.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying indexes of %s: %w", tableName, err)
	}
	defer rows.Close()

	var out []schema.IndexSchema
	for rows.Next() {
		var (
			name    string
			unique  bool
			columns []string
		)
		if err := rows.Scan(&name, &unique, &columns); err != nil {
			return nil, fmt.Errorf("scanning index of %s: %w", tableName, err)
		}
		out = append(out, schema.IndexSchema{Name: name, Columns: columns, Unique: unique})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading indexes of %s: %w", tableName, err)
	}
	return out, nil
}

// trimOuterParens removes balanced wrapping parentheses, turning the
// catalog's ((price > 0)) back into price > 0.
func trimOuterParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		wrapped := true
		for i, r := range s {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 && i < len(s)-1 {
				wrapped = false
				break
			}
		}
		if !wrapped {
			return s
		}
		s = s[1 : len(s)-1]
	}
	return s
}
