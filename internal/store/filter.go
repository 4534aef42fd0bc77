package store

// Op is a filter comparison operator.
type Op int

const (
	// OpEq matches on string equality of the field's text form.
	OpEq Op = iota
	// OpILike matches case-insensitively with SQL LIKE wildcards.
	OpILike
)

// Clause compares one field against a value.
type Clause struct {
	Field string
	Op    Op
	Value string
}

// Eq builds an equality clause.
func Eq(field, value string) Clause {
	return Clause{Field: field, Op: OpEq, Value: value}
}

// ILike builds a case-insensitive substring clause. The value should already
// contain the % wildcards the caller wants.
func ILike(field, value string) Clause {
	return Clause{Field: field, Op: OpILike, Value: value}
}

// Filter describes one read against a collection. Where clauses are ANDed;
// AnyOf clauses form a single ORed group ANDed with the rest. A zero Filter
// selects everything.
type Filter struct {
	Where   []Clause
	AnyOf   []Clause
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}
