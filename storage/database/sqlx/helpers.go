package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// SQL Server error numbers
const (
	errForeignKey  = 547
	errUniqueKey   = 2627
	errUniqueIndex = 2601
)

// mapDBError turns constraint violations into conflicts; other errors are wrapped with msg.
func mapDBError(err error, msg string) error {
	if err == nil || err == core.ErrNotFound {
		return err
	}
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case errUniqueKey, errUniqueIndex:
			return core.NewConflictError("%s: a record with the same key already exists", msg)
		case errForeignKey:
			return core.NewConflictError("%s: the record is referenced by or references other records", msg)
		}
	}
	return errors.Wrap(err, msg)
}

// where collects AND-ed predicates using `?` placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// in adds "col IN (...)"; an empty list adds nothing.
func (w *where) in(col string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	clause, args, err := sqlx.In(col+" IN (?)", values)
	if err != nil {
		return errors.Wrapf(err, "expanding %s", col)
	}
	w.add(clause, args...)
	return nil
}

// search adds a case-insensitive substring match on any of cols.
func (w *where) search(term string, cols ...string) {
	if term == "" {
		return
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	parts := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, "LOWER("+col+") LIKE ?")
		args = append(args, pattern)
	}
	w.add("("+strings.Join(parts, " OR ")+")", args...)
}

func (w where) String() string {
	return strings.Join(w.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer("[", "[[]", "%", "[%]", "_", "[_]")

// escapeLike escapes the LIKE wildcards of SQL Server.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ordering parses raw against allowed, falling back to def.
func ordering(raw string, allowed map[string]string, def ...core.DBOrdering) []core.DBOrdering {
	if ord := core.ParseOrdering(raw, allowed); len(ord) > 0 {
		return ord
	}
	return def
}

func nullable(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
