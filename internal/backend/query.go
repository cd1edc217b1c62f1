package backend

import (
	"fmt"
	"strings"
)

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

type Order struct {
	Column    string
	Ascending bool
}

type Query struct {
	Table   Table
	Filters []Filter
	Order   *Order
}

// From starts a query on table, mirroring the hosted service's builder API.
func From(table Table) Query { return Query{Table: table} }

func (q Query) Eq(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

func (q Query) OrderBy(column string, ascending bool) Query {
	q.Order = &Order{Column: column, Ascending: ascending}
	return q
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(string(q.Table))
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " %s=%v", f.Column, f.Value)
	}
	if q.Order != nil {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		fmt.Fprintf(&b, " order=%s.%s", q.Order.Column, dir)
	}
	return b.String()
}
