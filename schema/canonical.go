package schema

import "sort"

// Canonical returns a copy of the operation normalized for
// order-independent comparison: a CreateTable's column list and constraint
// list are sorted by name. Incidental list order is the only thing
// canonicalization erases; index key order and composite constraint column
// order are meaningful and stay untouched. The receiver is never mutated.
func (o Operation) Canonical() Operation {
	out := o.Clone()
	if out.Kind == OpCreateTable {
		sort.Slice(out.Columns, func(i, j int) bool {
			return out.Columns[i].Name < out.Columns[j].Name
		})
		sort.Slice(out.Constraints, func(i, j int) bool {
			return out.Constraints[i].Name < out.Constraints[j].Name
		})
	}
	return out
}

// Canonicalize returns a canonicalized copy of an operation list. The
// input is never mutated.
func Canonicalize(ops []Operation) []Operation {
	if ops == nil {
		return nil
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.Canonical()
	}
	return out
}

// EqualOperations reports exact equality of two operation lists: same
// length, same operations in the same order, including the internal order
// of column lists.
func EqualOperations(a, b []Operation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// SemanticallyEqualOperations reports equality after canonicalizing both
// sides, so two lists that differ only in incidental column order compare
// equal. Two model layers that store columns in different key order
// produce semantically equal CreateTable operations; this is the check
// that keeps them from being recorded twice.
func SemanticallyEqualOperations(a, b []Operation) bool {
	return EqualOperations(Canonicalize(a), Canonicalize(b))
}
