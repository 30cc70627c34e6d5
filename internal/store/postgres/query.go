package postgres

import (
	"fmt"
	"strings"

	"github.com/preyanshu/verdict/internal/domain"
)

// query accumulates a SELECT with positional arguments.
type query struct {
	sb   strings.Builder
	args []any
}

func newQuery(base string) *query {
	q := &query{}
	q.sb.WriteString(base)
	return q
}

// where appends " AND <cond>" where cond contains a single "?" placeholder.
func (q *query) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.sb.WriteString(" AND ")
	q.sb.WriteString(strings.Replace(cond, "?", fmt.Sprintf("$%d", len(q.args)), 1))
}

func (q *query) raw(s string) { q.sb.WriteString(s) }

func (q *query) page(opts domain.ListOpts) {
	if opts.Limit > 0 {
		q.args = append(q.args, opts.Limit)
		fmt.Fprintf(&q.sb, " LIMIT $%d", len(q.args))
	}
	if opts.Offset > 0 {
		q.args = append(q.args, opts.Offset)
		fmt.Fprintf(&q.sb, " OFFSET $%d", len(q.args))
	}
}

func (q *query) String() string { return q.sb.String() }
