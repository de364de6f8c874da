// errors.go translates driver errors into the application error taxonomy and holds the small
// query-building helpers shared by the list queries.
package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgError(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool { return isPgError(err, pgUniqueViolation) }

// translateWriteError maps constraint violations to apperr sentinels; what names the row kind.
func translateWriteError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case isPgError(err, pgUniqueViolation):
		return fmt.Errorf("%s already exists: %w", what, apperr.ErrDuplicate)
	case isPgError(err, pgForeignKeyViolation):
		return fmt.Errorf("%s references a missing row: %w", what, apperr.ErrNotFound)
	}
	return err
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
}

// ListOptions carries the generic search and paging parameters accepted by list endpoints.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// conditions accumulates positional WHERE fragments.
type conditions struct {
	clauses []string
	args    []any
}

// add appends a clause; every "?" in clause is replaced by the next positional parameter
// bound to arg.
func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(c.args))))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET parameters and returns the SQL suffix.
func (c *conditions) page(limit, offset int) string {
	c.args = append(c.args, limit, offset)
	n := len(c.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n-1, n)
}

func searchPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}
