package rest

import (
	"net/url"
	"strconv"
	"strings"
)

// Query builds PostgREST-style filter parameters. Parameters encode in
// insertion order so the same filters always produce the same URL.
type Query struct {
	params []queryParam
}

type queryParam struct {
	key   string
	value string
}

// NewQuery creates an empty query.
func NewQuery() *Query {
	return &Query{}
}

func (q *Query) add(key, value string) *Query {
	q.params = append(q.params, queryParam{key: key, value: value})
	return q
}

// Select names the columns to return.
func (q *Query) Select(columns string) *Query {
	return q.add("select", columns)
}

// Eq adds an equality filter: column=eq.value.
func (q *Query) Eq(column, value string) *Query {
	return q.add(column, "eq."+value)
}

// Gte adds a greater-or-equal filter: column=gte.value.
func (q *Query) Gte(column, value string) *Query {
	return q.add(column, "gte."+value)
}

// Lte adds a less-or-equal filter: column=lte.value.
func (q *Query) Lte(column, value string) *Query {
	return q.add(column, "lte."+value)
}

// Ilike adds a case-insensitive substring filter: column=ilike.*value*.
func (q *Query) Ilike(column, value string) *Query {
	return q.add(column, "ilike.*"+value+"*")
}

// Is adds an IS filter, used for booleans and null checks.
func (q *Query) Is(column, value string) *Query {
	return q.add(column, "is."+value)
}

// Order sorts by column: column.asc or column.desc.
func (q *Query) Order(column string, ascending bool) *Query {
	direction := "desc"
	if ascending {
		direction = "asc"
	}
	return q.add("order", column+"."+direction)
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	return q.add("limit", strconv.Itoa(n))
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	return q.add("offset", strconv.Itoa(n))
}

// Clone returns an independent copy of the query.
func (q *Query) Clone() *Query {
	clone := &Query{params: make([]queryParam, len(q.params))}
	copy(clone.params, q.params)
	return clone
}

// WithoutPagination strips select, order, limit and offset, leaving only
// the row filters. The count query for pagination metadata uses this.
func (q *Query) WithoutPagination() *Query {
	filtered := &Query{}
	for _, p := range q.params {
		switch p.key {
		case "select", "order", "limit", "offset":
			continue
		}
		filtered.params = append(filtered.params, p)
	}
	return filtered
}

// Encode renders the query string, without a leading "?".
func (q *Query) Encode() string {
	if q == nil || len(q.params) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
