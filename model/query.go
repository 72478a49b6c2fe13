package model

import (
	"fmt"
	"sort"

	"github.com/ioxiocom/firedantic/store"
)

// Filter is a declarative find filter: a mapping from field name to either
// a literal value (equality) or a nested map from operator symbol to value.
//
//	Filter{"owner": "alice"}                          // owner == "alice"
//	Filter{"stock": map[string]any{">=": 1}}          // stock >= 1
//	Filter{"stock": map[string]any{">": 0, "<": 10}}  // both, AND-conjoined
//
// Fields in one filter are conjoined; there is no OR.
type Filter map[string]any

// findOperators maps filter operator symbols to the store's native
// operators.
var findOperators = map[string]store.Operator{
	"==":                 store.OpEqual,
	"!=":                 store.OpNotEqual,
	"<":                  store.OpLessThan,
	"<=":                 store.OpLessThanEqual,
	">":                  store.OpGreaterThan,
	">=":                 store.OpGreaterThanEqual,
	"in":                 store.OpIn,
	"not-in":             store.OpNotIn,
	"array-contains":     store.OpArrayContains,
	"array-contains-any": store.OpArrayContainsAny,
}

// translateFilter converts a Filter into native field filters. Fields and
// operators are emitted in sorted order so the translated query is stable.
func translateFilter(filter Filter) ([]store.FieldFilter, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []store.FieldFilter
	for _, field := range fields {
		switch value := filter[field].(type) {
		case map[string]any:
			symbols := make([]string, 0, len(value))
			for symbol := range value {
				symbols = append(symbols, symbol)
			}
			sort.Strings(symbols)

			for _, symbol := range symbols {
				op, ok := findOperators[symbol]
				if !ok {
					return nil, fmt.Errorf("%w: %q", ErrInvalidFilterOperator, symbol)
				}
				out = append(out, store.FieldFilter{Field: field, Op: op, Value: value[symbol]})
			}
		default:
			out = append(out, store.FieldFilter{Field: field, Op: store.OpEqual, Value: value})
		}
	}
	return out, nil
}

// buildQuery translates a filter plus query options into a native query
// against collection.
func buildQuery(collection string, filter Filter, s *opSettings) (store.Query, error) {
	filters, err := translateFilter(filter)
	if err != nil {
		return store.Query{}, err
	}

	q := store.Query{
		Collection: collection,
		Filters:    filters,
		Orders:     s.orders,
		Limit:      -1,
		Offset:     s.offset,
	}
	if s.limit != nil {
		q.Limit = *s.limit
	}
	return q, nil
}
