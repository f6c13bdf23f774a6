package schema

import "fmt"

// TypeKind identifies a column type within the closed type set.
type TypeKind string

// Column type kinds.
const (
	KindInteger     TypeKind = "integer"
	KindBigInt      TypeKind = "bigint"
	KindSmallInt    TypeKind = "smallint"
	KindVarChar     TypeKind = "varchar"
	KindText        TypeKind = "text"
	KindBoolean     TypeKind = "boolean"
	KindDate        TypeKind = "date"
	KindTime        TypeKind = "time"
	KindTimestamp   TypeKind = "timestamp"
	KindTimestampTZ TypeKind = "timestamptz"
	KindFloat       TypeKind = "float"
	KindDouble      TypeKind = "double"
	KindDecimal     TypeKind = "decimal"
	KindBinary      TypeKind = "binary"
	KindUUID        TypeKind = "uuid"
	KindJSON        TypeKind = "json"
	KindJSONB       TypeKind = "jsonb"
)

// ColumnType is a column's data type plus its size parameters. Length is
// used by varchar, Precision and Scale by decimal; all other kinds leave
// the parameters zero. The struct is comparable, so types compare with ==.
type ColumnType struct {
	Kind      TypeKind `json:"kind"`
	Length    int      `json:"length,omitempty"`
	Precision int      `json:"precision,omitempty"`
	Scale     int      `json:"scale,omitempty"`
}

// Integer returns the 32-bit integer type.
func Integer() ColumnType { return ColumnType{Kind: KindInteger} }

// BigInt returns the 64-bit integer type.
func BigInt() ColumnType { return ColumnType{Kind: KindBigInt} }

// SmallInt returns the 16-bit integer type.
func SmallInt() ColumnType { return ColumnType{Kind: KindSmallInt} }

// VarChar returns a length-limited string type.
func VarChar(length int) ColumnType {
	return ColumnType{Kind: KindVarChar, Length: length}
}

// Text returns the unbounded string type.
func Text() ColumnType { return ColumnType{Kind: KindText} }

// Boolean returns the boolean type.
func Boolean() ColumnType { return ColumnType{Kind: KindBoolean} }

// Date returns the calendar date type.
func Date() ColumnType { return ColumnType{Kind: KindDate} }

// Time returns the time-of-day type.
func Time() ColumnType { return ColumnType{Kind: KindTime} }

// Timestamp returns the timestamp-without-time-zone type.
func Timestamp() ColumnType { return ColumnType{Kind: KindTimestamp} }

// TimestampTZ returns the timestamp-with-time-zone type.
func TimestampTZ() ColumnType { return ColumnType{Kind: KindTimestampTZ} }

// Float returns the single-precision floating point type.
func Float() ColumnType { return ColumnType{Kind: KindFloat} }

// Double returns the double-precision floating point type.
func Double() ColumnType { return ColumnType{Kind: KindDouble} }

// Decimal returns an exact numeric type with the given precision and scale.
func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Binary returns the raw byte string type.
func Binary() ColumnType { return ColumnType{Kind: KindBinary} }

// UUID returns the UUID type.
func UUID() ColumnType { return ColumnType{Kind: KindUUID} }

// JSON returns the text-form JSON type.
func JSON() ColumnType { return ColumnType{Kind: KindJSON} }

// JSONB returns the binary-form JSON type.
func JSONB() ColumnType { return ColumnType{Kind: KindJSONB} }

// String renders the PostgreSQL spelling of the type, e.g. "varchar(255)",
// "numeric(10,2)", "double precision".
func (t ColumnType) String() string {
	switch t.Kind {
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindSmallInt:
		return "smallint"
	case KindVarChar:
		if t.Length > 0 {
			return fmt.Sprintf("varchar(%d)", t.Length)
		}
		return "varchar"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindTimestampTZ:
		return "timestamptz"
	case KindFloat:
		return "real"
	case KindDouble:
		return "double precision"
	case KindDecimal:
		if t.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", t.Precision, t.Scale)
		}
		return "numeric"
	case KindBinary:
		return "bytea"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	case KindJSONB:
		return "jsonb"
	default:
		return string(t.Kind)
	}
}
