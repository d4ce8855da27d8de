package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

type widget struct {
	ID   string `db:"WidgetId"`
	Name string `db:"Name"`
	Size int    `db:"Size"`
}

var widgets = Table{Name: "Widgets", PK: "WidgetId", Columns: []string{"WidgetId", "Name", "Size"}}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "sqlserver"), mock
}

func TestNewBaseRepository_RejectsBadIdentifiers(t *testing.T) {
	assert.Panics(t, func() {
		NewBaseRepository[widget](nil, Table{Name: "Widgets; DROP TABLE x", PK: "WidgetId"})
	})
}

func TestBaseRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO Widgets (Name, Size, WidgetId) VALUES (@p1, @p2, @p3)")).
		WithArgs("gear", 3, "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), map[string]interface{}{"WidgetId": "w1", "Name": "gear", "Size": 3})
	require.NoError(t, err)

	err = repo.Create(context.Background(), map[string]interface{}{"Color": "red"})
	assert.Error(t, err)
}

func TestBaseRepository_FindOne(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP 1 WidgetId, Name, Size FROM Widgets WHERE WidgetId = @p1")).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"WidgetId", "Name", "Size"}).AddRow("w1", "gear", 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP 1 WidgetId, Name, Size FROM Widgets WHERE WidgetId = @p1")).
		WithArgs("w2").
		WillReturnRows(sqlmock.NewRows([]string{"WidgetId", "Name", "Size"}))

	w, err := repo.FindByID(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, widget{ID: "w1", Name: "gear", Size: 3}, w)

	_, err = repo.FindByID(context.Background(), "w2")
	assert.Equal(t, core.ErrNotFound, err)
}

func TestBaseRepository_FindAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT WidgetId, Name, Size FROM Widgets WHERE Size > @p1 ORDER BY Name DESC OFFSET @p2 ROWS FETCH NEXT @p3 ROWS ONLY")).
		WithArgs(1, 10, 5).
		WillReturnRows(sqlmock.NewRows([]string{"WidgetId", "Name", "Size"}).AddRow("w1", "gear", 3).AddRow("w2", "axle", 2))

	items, err := repo.FindAll(context.Background(), Query{
		Where:   "Size > ?",
		Args:    []interface{}{1},
		OrderBy: []core.DBOrdering{{Field: "Name"}},
		Limit:   5,
		Offset:  10,
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBaseRepository_FindAllEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT WidgetId, Name, Size FROM Widgets")).
		WillReturnRows(sqlmock.NewRows([]string{"WidgetId", "Name", "Size"}))

	items, err := repo.FindAll(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestBaseRepository_FindAllUnknownOrdering(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	_, err := repo.FindAll(context.Background(), Query{OrderBy: []core.DBOrdering{{Field: "Name; DROP TABLE Widgets"}}})
	assert.True(t, core.IsValidationError(err))
}

func TestBaseRepository_UpdateDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE Widgets SET Name = @p1, Size = @p2 WHERE WidgetId = @p3")).
		WithArgs("cog", 4, "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM Widgets WHERE WidgetId = @p1")).
		WithArgs("w9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Update(context.Background(), "w1", map[string]interface{}{"Size": 4, "Name": "cog"}))
	assert.Equal(t, core.ErrNotFound, repo.Delete(context.Background(), "w9"))
	assert.NoError(t, repo.Update(context.Background(), "w1", nil))
}

func TestBaseRepository_ExecPrefersServiceExecutor(t *testing.T) {
	db, _ := newMockDB(t)
	other, _ := newMockDB(t)
	repo := NewBaseRepository[widget](db, widgets)

	assert.Same(t, db, repo.Exec(nil))
	assert.Same(t, other, repo.Exec([]core.DBExecutor{other}))
}

func TestTxRunner(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactor(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE Widgets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(exec core.DBExecutor) error {
		_, err := exec.ExecContext(context.Background(), "UPDATE Widgets SET Size = 1")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = tx.WithinTx(context.Background(), func(core.DBExecutor) error { return boom })
	assert.Equal(t, boom, err)
}
