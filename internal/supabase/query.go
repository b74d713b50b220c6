package supabase

import (
	"net/url"
	"strconv"
	"strings"
)

// Query accumulates PostgREST filters. The zero value and nil both select
// every row.
type Query struct {
	columns string
	filters [][2]string
	order   []string
	limit   int
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Columns restricts the returned columns.
func (q *Query) Columns(cols ...string) *Query {
	q.columns = strings.Join(cols, ",")
	return q
}

// Eq adds column=eq.value.
func (q *Query) Eq(column string, value any) *Query {
	return q.filter(column, "eq", value)
}

// Gte adds column=gte.value.
func (q *Query) Gte(column string, value any) *Query {
	return q.filter(column, "gte", value)
}

// Lte adds column=lte.value.
func (q *Query) Lte(column string, value any) *Query {
	return q.filter(column, "lte", value)
}

func (q *Query) filter(column, op string, value any) *Query {
	q.filters = append(q.filters, [2]string{column, op + "." + formatValue(value)})
	return q
}

// Order appends an ordering term.
func (q *Query) Order(column string, descending bool) *Query {
	dir := "asc"
	if descending {
		dir = "desc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Limit caps the number of rows. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Encode renders the query string in a stable order.
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}
	v := url.Values{}
	if q.columns != "" {
		v.Set("select", q.columns)
	}
	for _, f := range q.filters {
		v.Add(f[0], f[1])
	}
	if len(q.order) > 0 {
		v.Set("order", strings.Join(q.order, ","))
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v.Encode()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}
