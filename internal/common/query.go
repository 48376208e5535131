package common

import (
	"fmt"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListQuery carries the pagination and ordering knobs shared by every list
// endpoint.
type ListQuery struct {
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
	NoPaginate bool   `form:"nopaginate"`
	OrderBy    string `form:"order_by"`
	Order      string `form:"order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// Page is a paginated slice of rows.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (q *ListQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// OrderClause renders a safe ORDER BY clause. Unknown columns fall back to
// created_at so user input never reaches the SQL text.
func (q ListQuery) OrderClause(allowed map[string]bool) string {
	column := "created_at"
	if allowed[q.OrderBy] {
		column = q.OrderBy
	}
	dir := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, dir)
}

// Where accumulates positional SQL predicates.
type Where struct {
	clauses []string
	Args    []any
}

func (w *Where) Add(format string, arg any) {
	w.Args = append(w.Args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.Args)))
}

// AddRaw appends a predicate that takes no arguments.
func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *Where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Next returns the placeholder index for the next argument.
func (w *Where) Next() int {
	return len(w.Args) + 1
}
