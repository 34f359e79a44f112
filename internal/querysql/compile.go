// Package querysql compiles queryir queries to parameterized SQLite SQL
// over the trace store's messages table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/weft/internal/queryir"
)

// Columns is the column list every compiled query selects, in scan order.
const Columns = "run_id, seq, kind, worker_id, fiber_id, module, func, value, detail"

// Compile converts q to SQL and its parameters. Values are always bound as
// parameters, never interpolated. Results are ordered by seq.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	return compileSelect(sel)
}

func compileSelect(q queryir.Select) (string, []any, error) {
	where := []string{"run_id = ?"}
	params := []any{q.RunID}

	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if filterSQL != "" {
			where = append(where, filterSQL)
			params = append(params, filterParams...)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM messages WHERE %s ORDER BY seq ASC", Columns, strings.Join(where, " AND "))
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// compilePredicate returns "" for predicates that match everything.
// Field names come from queryir.Fields, so they are safe to splice.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return pred.Field + " = ?", []any{pred.Value}, nil
	case *queryir.Equals:
		return pred.Field + " = ?", []any{pred.Value}, nil
	case queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Min}, nil
	case *queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Min}, nil
	case queryir.And:
		return compileAnd(pred.Predicates)
	case *queryir.And:
		return compileAnd(pred.Predicates)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileAnd(preds []queryir.Predicate) (string, []any, error) {
	var (
		parts  []string
		params []any
	)
	for _, pred := range preds {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	switch len(parts) {
	case 0:
		return "", nil, nil
	case 1:
		return parts[0], params, nil
	default:
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	}
}
