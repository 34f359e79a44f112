// Package queryir is a small query representation over recorded trace
// messages.
//
// A Select names one run and an optional filter built from sealed
// Predicate nodes:
//
//	Select{
//	  RunID:  "0190c6f2-...",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "kind", Value: "request_code"},
//	    AtLeast{Field: "fiber_id", Min: 2},
//	  }},
//	}
//
// Backends (see querysql) switch exhaustively over the node types. Validate
// reports every field or value problem before a query reaches a backend.
//
// ParseFilter reads the command-line form of a predicate:
//
//	kind=request_code
//	seq>=10
package queryir
