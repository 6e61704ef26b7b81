// Package sqlbuild assembles dynamic WHERE and SET clauses with numbered
// PostgreSQL placeholders. Column names are never taken from user input
// directly: callers pass trusted identifiers or filter through a Columns allow-list.
package sqlbuild

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Builder accumulates arguments and AND-ed conditions.
// Zero value is ready to use.
type Builder struct {
	conds []string
	args  []any
}

// Arg appends v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Where adds "column = $n".
func (b *Builder) Where(column string, v any) *Builder {
	b.conds = append(b.conds, column+" = "+b.Arg(v))
	return b
}

// WhereAny adds "column = ANY($n)" for a slice value.
func (b *Builder) WhereAny(column string, values any) *Builder {
	b.conds = append(b.conds, column+" = ANY("+b.Arg(values)+")")
	return b
}

// Set renders "col = $n, ..." for fields in column order.
func (b *Builder) Set(fields map[string]any) string {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = " + b.Arg(fields[c])
	}
	return strings.Join(parts, ", ")
}

// Clause returns " WHERE ..." or "" when no conditions were added.
func (b *Builder) Clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// Args returns the accumulated arguments in placeholder order.
func (b *Builder) Args() []any {
	return b.args
}

// Columns is an allow-list of writable column names.
type Columns map[string]bool

// NewColumns builds an allow-list.
func NewColumns(names ...string) Columns {
	c := make(Columns, len(names))
	for _, n := range names {
		c[n] = true
	}
	return c
}

// Invalid returns the field names not in the allow-list, sorted.
func (c Columns) Invalid(fields map[string]any) []string {
	var bad []string
	for f := range fields {
		if !c[f] {
			bad = append(bad, f)
		}
	}
	sort.Strings(bad)
	return bad
}

// Names returns the allowed names, sorted.
func (c Columns) Names() []string {
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Paginate normalizes page/limit (limit defaults to 20, capped at 100) and returns limit and offset.
func Paginate(page, limit int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
