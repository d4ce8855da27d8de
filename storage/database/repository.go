package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table describes the table a BaseRepository works on.
type Table struct {
	Name    string
	PK      string
	Columns []string
}

// Query narrows down FindAll. Where is a raw SQL predicate using `?` placeholders.
type Query struct {
	Where   string
	Args    []interface{}
	OrderBy []core.DBOrdering
	Limit   int
	Offset  int
}

// BaseRepository provides parameterised CRUD for rows of T, mapped with `db` struct tags.
// Column names are never taken from user input without being checked against Table.Columns.
type BaseRepository[T any] struct {
	exec    core.DBExecutor
	table   Table
	columns map[string]bool
}

func NewBaseRepository[T any](exec core.DBExecutor, table Table) *BaseRepository[T] {
	columns := make(map[string]bool, len(table.Columns))
	for _, col := range append([]string{table.Name, table.PK}, table.Columns...) {
		if !identRegex.MatchString(col) {
			panic(fmt.Sprintf("database: invalid identifier %q", col))
		}
	}
	for _, col := range table.Columns {
		columns[col] = true
	}
	return &BaseRepository[T]{exec: exec, table: table, columns: columns}
}

func (r *BaseRepository[T]) Table() Table { return r.table }

// Exec picks the executor passed by a service (a transaction) or falls back to the pool.
func (r *BaseRepository[T]) Exec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

func (r *BaseRepository[T]) selectList() string {
	return strings.Join(r.table.Columns, ", ")
}

func (r *BaseRepository[T]) checkColumns(cols []string) error {
	for _, col := range cols {
		if !r.columns[col] {
			return errors.Errorf("unknown column %q for table %s", col, r.table.Name)
		}
	}
	return nil
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *BaseRepository[T]) Create(ctx context.Context, values map[string]interface{}, exec ...core.DBExecutor) error {
	cols := sortedKeys(values)
	if err := r.checkColumns(cols); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(cols))
	for _, col := range cols {
		args = append(args, values[col])
	}

	exe := r.Exec(exec)
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		r.table.Name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	if _, err := exe.ExecContext(ctx, exe.Rebind(q), args...); err != nil {
		return errors.Wrapf(err, "inserting into %s", r.table.Name)
	}
	return nil
}

func (r *BaseRepository[T]) FindByID(ctx context.Context, id string, exec ...core.DBExecutor) (T, error) {
	return r.FindOne(ctx, r.table.PK+" = ?", []interface{}{id}, exec...)
}

func (r *BaseRepository[T]) FindOne(ctx context.Context, where string, args []interface{}, exec ...core.DBExecutor) (T, error) {
	var item T
	exe := r.Exec(exec)
	q := fmt.Sprintf("SELECT TOP 1 %s FROM %s WHERE %s", r.selectList(), r.table.Name, where)
	if err := exe.GetContext(ctx, &item, exe.Rebind(q), args...); err != nil {
		if err == sql.ErrNoRows {
			return item, core.ErrNotFound
		}
		return item, errors.Wrapf(err, "finding %s", r.table.Name)
	}
	return item, nil
}

func (r *BaseRepository[T]) FindAll(ctx context.Context, query Query, exec ...core.DBExecutor) ([]T, error) {
	var sb strings.Builder
	args := append([]interface{}{}, query.Args...)

	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", r.selectList(), r.table.Name))
	if query.Where != "" {
		sb.WriteString(" WHERE " + query.Where)
	}

	ordering := query.OrderBy
	if len(ordering) == 0 && query.Limit > 0 {
		ordering = []core.DBOrdering{{Field: r.table.PK, Ascending: true}}
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			if ord.Field != r.table.PK && !r.columns[ord.Field] {
				return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "unknown field " + ord.Field})
			}
			orderList = append(orderList, ord.String())
		}
		sb.WriteString(" ORDER BY " + strings.Join(orderList, ", "))
	}
	if query.Limit > 0 {
		sb.WriteString(" OFFSET ? ROWS FETCH NEXT ? ROWS ONLY")
		args = append(args, query.Offset, query.Limit)
	}

	exe := r.Exec(exec)
	items := make([]T, 0)
	if err := exe.SelectContext(ctx, &items, exe.Rebind(sb.String()), args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", r.table.Name)
	}
	return items, nil
}

func (r *BaseRepository[T]) Update(ctx context.Context, id string, values map[string]interface{}, exec ...core.DBExecutor) error {
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return nil
	}
	if err := r.checkColumns(cols); err != nil {
		return err
	}
	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, values[col])
	}
	args = append(args, id)

	exe := r.Exec(exec)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", r.table.Name, strings.Join(sets, ", "), r.table.PK)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return errors.Wrapf(err, "updating %s", r.table.Name)
	}
	return checkAffected(res)
}

func (r *BaseRepository[T]) Delete(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := r.Exec(exec)
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.table.Name, r.table.PK)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), id)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", r.table.Name)
	}
	return checkAffected(res)
}

func (r *BaseRepository[T]) Count(ctx context.Context, where string, args []interface{}, exec ...core.DBExecutor) (int, error) {
	q := "SELECT COUNT(*) FROM " + r.table.Name
	if where != "" {
		q += " WHERE " + where
	}
	exe := r.Exec(exec)
	var n int
	if err := exe.GetContext(ctx, &n, exe.Rebind(q), args...); err != nil {
		return 0, errors.Wrapf(err, "counting %s", r.table.Name)
	}
	return n, nil
}

func (r *BaseRepository[T]) Exists(ctx context.Context, where string, args []interface{}, exec ...core.DBExecutor) (bool, error) {
	n, err := r.Count(ctx, where, args, exec...)
	return n > 0, err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
