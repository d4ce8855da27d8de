package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "sqlserver"), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100[%] [_]a[[]b]", escapeLike("100% _a[b]"))
}

func TestMapDBError(t *testing.T) {
	assert.Nil(t, mapDBError(nil, "x"))
	assert.Equal(t, core.ErrNotFound, mapDBError(core.ErrNotFound, "x"))
	assert.True(t, core.IsConflict(mapDBError(mssql.Error{Number: errUniqueKey}, "creating")))
	assert.True(t, core.IsConflict(mapDBError(mssql.Error{Number: errUniqueIndex}, "creating")))
	assert.True(t, core.IsConflict(mapDBError(mssql.Error{Number: errForeignKey}, "deleting")))
	assert.False(t, core.IsConflict(mapDBError(mssql.Error{Number: 1205}, "deleting")))
}

func TestMasterDataRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBusinessUnitRepository(db)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(q("INSERT INTO BusinessUnits (BusinessUnitId, Code, CreatedAt, CreatedBy, Description, IsActive, Name, UpdatedAt, UpdatedBy) VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9)")).
		WithArgs(sqlmock.AnyArg(), "BU01", now, "admin", "", true, "Corporate", now, "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))

	bu, err := repo.Create(context.Background(), orgunit.BusinessUnit{
		Code: "BU01", Name: "Corporate", IsActive: true,
		CreatedAt: now, CreatedBy: "admin", UpdatedAt: now, UpdatedBy: "admin",
	})
	require.NoError(t, err)
	assert.Len(t, bu.ID, 36)
}

func TestMasterDataRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewFunctionRepository(db)

	mock.ExpectExec(q("INSERT INTO Functions")).WillReturnError(mssql.Error{Number: errUniqueKey, Message: "Violation of UNIQUE KEY constraint"})

	_, err := repo.Create(context.Background(), function.Function{Code: "FIN", Name: "Finance"})
	assert.True(t, core.IsConflict(err))
}

func TestMasterDataRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDivisionRepository(db)
	active := true

	rows := sqlmock.NewRows([]string{"DivisionId", "BusinessUnitId", "Code", "Name", "Description", "IsActive", "CreatedAt", "CreatedBy", "UpdatedAt", "UpdatedBy"}).
		AddRow("d1", "b1", "FIN_OPS", "Finance Ops", "", true, time.Now(), "", time.Now(), "")
	mock.ExpectQuery(q("FROM Divisions WHERE (LOWER(Code) LIKE @p1 OR LOWER(Name) LIKE @p2) AND IsActive = @p3 AND BusinessUnitId = @p4 ORDER BY Code DESC")).
		WithArgs("%fin[_]%", "%fin[_]%", true, "b1").
		WillReturnRows(rows)

	divs, err := repo.List(context.Background(), core.MasterDataFilter{
		Search: "FIN_", IsActive: &active, ParentID: "b1", Ordering: "-code,unknown",
	})
	require.NoError(t, err)
	require.Len(t, divs, 1)
	assert.Equal(t, "b1", divs[0].BusinessUnitID)
	assert.Equal(t, "FIN_OPS", divs[0].Code)
}

func TestMasterDataRepository_ListIgnoresParentOnTopLevel(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBusinessUnitRepository(db)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM BusinessUnits") + "$").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))

	n, err := repo.Count(context.Background(), core.MasterDataFilter{ParentID: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMasterDataRepository_GetByCodeNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(q("SELECT TOP 1 ApplicationId, Code, Name")).
		WithArgs("APP01").
		WillReturnRows(sqlmock.NewRows([]string{"ApplicationId"}))

	_, err := repo.GetByCode(context.Background(), "app01")
	assert.Equal(t, core.ErrNotFound, err)
}

func TestMasterDataRepository_CodeExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDepartmentRepository(db)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM Departments WHERE UPPER(Code) = @p1 AND DepartmentId <> @p2")).
		WithArgs("HR", "dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	exists, err := repo.CodeExists(context.Background(), "hr", "dep-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMasterDataRepository_DeleteReferenced(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDepartmentRepository(db)

	mock.ExpectExec(q("DELETE FROM Departments WHERE DepartmentId = @p1")).
		WithArgs("dep-1").
		WillReturnError(mssql.Error{Number: errForeignKey})

	err := repo.Delete(context.Background(), "dep-1")
	assert.True(t, core.IsConflict(err))
}

func TestMasterDataRepository_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBusinessUnitRepository(db)

	mock.ExpectExec(q("UPDATE BusinessUnits SET Code = @p1, Description = @p2, IsActive = @p3, Name = @p4, UpdatedAt = @p5, UpdatedBy = @p6 WHERE BusinessUnitId = @p7")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), orgunit.BusinessUnit{ID: "nope", Code: "BU", Name: "Unit"})
	assert.Equal(t, core.ErrNotFound, err)
}

func TestUserRepository_Recipients(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q("FROM Users WHERE IsActive = @p1 AND Email <> '' AND DepartmentId IN (@p2, @p3) AND Role IN (@p4) ORDER BY Email ASC")).
		WithArgs(true, "d1", "d2", user.RoleDepartmentHead).
		WillReturnRows(sqlmock.NewRows([]string{"UserId", "Username", "Email", "Role", "IsActive"}).
			AddRow("u1", "jdoe", "jdoe@example.com", user.RoleDepartmentHead, true))

	users, err := repo.Recipients(context.Background(), user.Audience{
		DepartmentIDs: []string{"d1", "d2"},
		Roles:         []string{user.RoleDepartmentHead},
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jdoe@example.com", users[0].Email)
}

func TestUserRepository_UpdateKeepsPasswordHash(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(q("UPDATE Users SET BusinessUnitId = @p1, DepartmentId = @p2, DisplayName = @p3, DivisionId = @p4, Email = @p5, IsActive = @p6, Role = @p7, UpdatedAt = @p8, UseLDAP = @p9, Username = @p10 WHERE UserId = @p11")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Update(context.Background(), user.User{ID: "u1", Username: "jdoe", Role: user.RoleITLead})
	require.NoError(t, err)
}

func TestSessionRepository_Deactivate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(q("UPDATE Sessions SET IsActive = 0, EndedAt = COALESCE(EndedAt, @p1) WHERE SessionId = @p2")).
		WithArgs(now, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE Sessions SET IsActive = 0")).
		WithArgs(now, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Deactivate(context.Background(), "s1", now))
	assert.Equal(t, core.ErrNotFound, repo.Deactivate(context.Background(), "missing", now))
}

func TestSessionRepository_DeactivateExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepository(db)
	now := time.Now().UTC()
	cutoff := now.Add(-8 * time.Hour)

	mock.ExpectExec(q("WHERE IsActive = 1 AND (ExpiresAt <= @p2 OR CreatedAt < @p3)")).
		WithArgs(now, now, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeactivateExpired(context.Background(), now, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSurveyRepository_SaveConfigurationInsertsThenUpdates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSurveyRepository(db)
	cfg := survey.DefaultConfiguration("s1")
	cfg.HeroTitle = "Satisfaction 2024"

	mock.ExpectQuery(q("SELECT TOP 1 ConfigId")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"ConfigId"}))
	mock.ExpectExec(q("INSERT INTO SurveyConfigurations")).WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.SaveConfiguration(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	mock.ExpectQuery(q("SELECT TOP 1 ConfigId")).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"ConfigId", "SurveyId"}).AddRow(saved.ID, "s1"))
	mock.ExpectExec(q("UPDATE SurveyConfigurations SET")).WillReturnResult(sqlmock.NewResult(0, 1))

	again, err := repo.SaveConfiguration(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
}

func TestSurveyRepository_ResponseExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSurveyRepository(db)
	app := "app-1"

	mock.ExpectQuery(q("SELECT COUNT(*) FROM Responses WITH (UPDLOCK, HOLDLOCK) WHERE SurveyId = @p1 AND LOWER(RespondentEmail) = LOWER(@p2) AND ApplicationId = @p3")).
		WithArgs("s1", "a@b.c", app).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM Responses WITH (UPDLOCK, HOLDLOCK) WHERE SurveyId = @p1 AND LOWER(RespondentEmail) = LOWER(@p2)")).
		WithArgs("s1", "a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	exists, err := repo.ResponseExists(context.Background(), "s1", "a@b.c", &app)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ResponseExists(context.Background(), "s1", "a@b.c", nil)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSurveyRepository_ResponseExistsLocksInTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSurveyRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM Responses WITH (UPDLOCK, HOLDLOCK) WHERE SurveyId = @p1")).
		WithArgs("s1", "a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	exists, err := repo.ResponseExists(context.Background(), "s1", "a@b.c", nil, tx)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, tx.Rollback())
}

func TestSurveyRepository_ListQuestionsOrdering(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSurveyRepository(db)

	mock.ExpectQuery(q("FROM Questions WHERE SurveyId = @p1 ORDER BY PageNumber ASC, DisplayOrder ASC")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"QuestionId", "Options"}).
			AddRow("q1", `["Yes","No"]`))

	qs, err := repo.ListQuestions(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, survey.Options{"Yes", "No"}, qs[0].Options)
}

func TestOperationRepository_Claim(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOperationRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(q("UPDATE ScheduledOperations SET Status = @p1, UpdatedAt = @p2 WHERE OperationId = @p3 AND Status = @p4")).
		WithArgs("Running", now, "op1", "Scheduled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE ScheduledOperations SET Status = @p1")).
		WithArgs("Running", now, "op1", "Scheduled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "op1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(context.Background(), "op1", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperationRepository_RequeueStale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOperationRepository(db)
	now := time.Now().UTC()
	cutoff := now.Add(-30 * time.Minute)

	mock.ExpectExec(q("UPDATE ScheduledOperations SET Status = @p1, ErrorMessage = @p2, UpdatedAt = @p3 WHERE Status = @p4 AND UpdatedAt < @p5")).
		WithArgs("Scheduled", schedule.MsgRunInterrupted, now, "Running", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.RequeueStale(context.Background(), cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOperationRepository_ListDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOperationRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(q("WHERE Status = @p1 AND NextExecutionAt IS NOT NULL AND NextExecutionAt <= @p2 ORDER BY NextExecutionAt ASC OFFSET @p3 ROWS FETCH NEXT @p4 ROWS ONLY")).
		WithArgs("Scheduled", now, 0, 10).
		WillReturnRows(sqlmock.NewRows([]string{"OperationId", "TargetCriteria"}).
			AddRow("op1", `{"roles":["ITLead"]}`))

	ops, err := repo.ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, []string{"ITLead"}, ops[0].TargetCriteria.Roles)
}

func TestOperationRepository_Cancel(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOperationRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(q("SET Status = @p1, NextExecutionAt = NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM ScheduledOperations WHERE OperationId = @p1")).
		WithArgs("op1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	err := repo.Cancel(context.Background(), "op1", now)
	assert.True(t, core.IsConflict(err))

	mock.ExpectExec(q("SET Status = @p1, NextExecutionAt = NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM ScheduledOperations")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	assert.Equal(t, core.ErrNotFound, repo.Cancel(context.Background(), "op2", now))
}

func TestSAPSyncLogRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSAPSyncLogRepository(db)

	mock.ExpectQuery(q("FROM SAPSyncLogs ORDER BY StartedAt DESC OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY")).
		WithArgs(0, 20).
		WillReturnRows(sqlmock.NewRows([]string{"SyncLogId", "Status"}).AddRow("l1", "Completed"))

	logs, err := repo.List(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Completed", logs[0].Status)
}
