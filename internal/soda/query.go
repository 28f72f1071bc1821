package soda

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultOrder sorts by the system row id so offsets stay stable
// across pages.
const DefaultOrder = ":id"

// Query is a SoQL request. Zero Limit and Offset are omitted.
type Query struct {
	Select []string
	Where  string
	Order  string
	Limit  int
	Offset int
}

// Values encodes q as SoQL URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Select) > 0 {
		v.Set("$select", strings.Join(q.Select, ","))
	}
	if q.Where != "" {
		v.Set("$where", q.Where)
	}
	order := q.Order
	if order == "" {
		order = DefaultOrder
	}
	v.Set("$order", order)
	if q.Limit > 0 {
		v.Set("$limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("$offset", strconv.Itoa(q.Offset))
	}
	return v
}

// Quote renders s as a SoQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Eq renders column = 'value'.
func Eq(column, value string) string {
	return column + " = " + Quote(value)
}

// In renders column in('a','b',...). An empty list yields "".
func In(column string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return column + " in(" + strings.Join(quoted, ",") + ")"
}

// EqNum renders column = value for numeric columns. value is not quoted.
func EqNum(column, value string) string {
	return column + " = " + value
}

// InNum renders column in(1,2,...) for numeric columns. Values are not
// quoted; callers pass digit strings only.
func InNum(column string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return column + " in(" + strings.Join(values, ",") + ")"
}

// StartsWith renders starts_with(column, 'prefix').
func StartsWith(column, prefix string) string {
	return "starts_with(" + column + ", " + Quote(prefix) + ")"
}

// Since renders column >= the floating timestamp of t.
func Since(column string, t time.Time) string {
	return column + " >= " + Quote(t.UTC().Format("2006-01-02T15:04:05"))
}

// And joins non-empty clauses with AND.
func And(clauses ...string) string { return join(" AND ", clauses) }

// Or joins non-empty clauses with OR.
func Or(clauses ...string) string { return join(" OR ", clauses) }

func join(op string, clauses []string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, op)
}
