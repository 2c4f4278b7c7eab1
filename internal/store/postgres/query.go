package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// filter accumulates WHERE clauses with positional arguments.
type filter struct {
	clauses []string
	args    []any
}

// where adds a clause; cond holds a single %d for the argument position.
func (f *filter) where(cond string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(cond, len(f.args)))
}

// window applies the time range of opts to column.
func (f *filter) window(column string, opts domain.ListOpts) {
	if opts.Since != nil {
		f.where(column+" >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		f.where(column+" <= $%d", *opts.Until)
	}
}

// build renders base with the clauses, order and paging of opts.
func (f *filter) build(base, orderBy string, opts domain.ListOpts) (string, []any) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(f.clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(f.clauses, " AND "))
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	args := f.args
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}
