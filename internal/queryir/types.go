package queryir

// Query is a query over recorded messages. Sealed: only Select implements it.
type Query interface {
	queryNode()
}

// Predicate filters messages. Sealed: Equals, AtLeast and And implement it.
type Predicate interface {
	predicateNode()
}

// Select reads the messages of one run in seq order.
//
//	SELECT <message columns> FROM messages
//	WHERE run_id = <RunID> AND <Filter>
//	ORDER BY seq
//	LIMIT <Limit>
//
// A nil Filter matches every message. Limit 0 means no limit.
type Select struct {
	RunID  string
	Filter Predicate
	Limit  int
}

func (Select) queryNode() {}

// Equals matches messages whose Field equals Value. Value is a string for
// text fields and an int64 for integer fields.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// AtLeast matches messages whose integer Field is >= Min.
type AtLeast struct {
	Field string
	Min   int64
}

func (AtLeast) predicateNode() {}

// And matches messages satisfying every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// FieldType is the column type of a filterable field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
)

// Fields lists the filterable message fields and their types.
var Fields = map[string]FieldType{
	"seq":       FieldInt,
	"kind":      FieldText,
	"worker_id": FieldInt,
	"fiber_id":  FieldInt,
	"module":    FieldText,
	"func":      FieldText,
	"detail":    FieldText,
}
