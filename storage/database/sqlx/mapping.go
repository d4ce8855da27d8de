package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

const (
	functionAppsView = `SELECT m.MappingId, m.FunctionId, m.ApplicationId, m.CreatedAt, m.CreatedBy,
	f.Code AS FunctionCode, f.Name AS FunctionName, a.Code AS ApplicationCode, a.Name AS ApplicationName
FROM FunctionApplicationMappings m
JOIN Functions f ON f.FunctionId = m.FunctionId
JOIN Applications a ON a.ApplicationId = m.ApplicationId`

	appDeptsView = `SELECT m.MappingId, m.ApplicationId, m.DepartmentId, m.CreatedAt, m.CreatedBy,
	a.Code AS ApplicationCode, a.Name AS ApplicationName,
	d.Code AS DepartmentCode, d.Name AS DepartmentName,
	v.DivisionId, v.Code AS DivisionCode, v.Name AS DivisionName,
	b.BusinessUnitId, b.Code AS BusinessUnitCode, b.Name AS BusinessUnitName
FROM ApplicationDepartmentMappings m
JOIN Applications a ON a.ApplicationId = m.ApplicationId
JOIN Departments d ON d.DepartmentId = m.DepartmentId
JOIN Divisions v ON v.DivisionId = d.DivisionId
JOIN BusinessUnits b ON b.BusinessUnitId = v.BusinessUnitId`
)

type mappingRepository struct {
	exec     core.DBExecutor
	fnApps   *database.BaseRepository[mapping.FunctionApplication]
	appDepts *database.BaseRepository[mapping.ApplicationDepartment]
}

var _ mapping.Repository = (*mappingRepository)(nil)

func NewMappingRepository(exec core.DBExecutor) *mappingRepository {
	return &mappingRepository{
		exec: exec,
		fnApps: database.NewBaseRepository[mapping.FunctionApplication](exec, database.Table{
			Name:    "FunctionApplicationMappings",
			PK:      "MappingId",
			Columns: []string{"MappingId", "FunctionId", "ApplicationId", "CreatedAt", "CreatedBy"},
		}),
		appDepts: database.NewBaseRepository[mapping.ApplicationDepartment](exec, database.Table{
			Name:    "ApplicationDepartmentMappings",
			PK:      "MappingId",
			Columns: []string{"MappingId", "ApplicationId", "DepartmentId", "CreatedAt", "CreatedBy"},
		}),
	}
}

func (repo *mappingRepository) CreateFunctionApp(ctx context.Context, m mapping.FunctionApplication, exec ...core.DBExecutor) (mapping.FunctionApplication, error) {
	m.ID = uuid.NewString()
	err := repo.fnApps.Create(ctx, map[string]interface{}{
		"MappingId":     m.ID,
		"FunctionId":    m.FunctionID,
		"ApplicationId": m.ApplicationID,
		"CreatedAt":     m.CreatedAt,
		"CreatedBy":     m.CreatedBy,
	}, exec...)
	if err != nil {
		return mapping.FunctionApplication{}, mapDBError(err, "creating function mapping")
	}
	return m, nil
}

func (repo *mappingRepository) DeleteFunctionApp(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.fnApps.Delete(ctx, id, exec...)
}

func (repo *mappingRepository) DeleteFunctionAppsByFunction(ctx context.Context, functionID string, exec ...core.DBExecutor) error {
	exe := repo.fnApps.Exec(exec)
	q := exe.Rebind("DELETE FROM FunctionApplicationMappings WHERE FunctionId = ?")
	if _, err := exe.ExecContext(ctx, q, functionID); err != nil {
		return errors.Wrap(err, "deleting function mappings")
	}
	return nil
}

func (repo *mappingRepository) FunctionAppExists(ctx context.Context, functionID, applicationID string, exec ...core.DBExecutor) (bool, error) {
	return repo.fnApps.Exists(ctx, "FunctionId = ? AND ApplicationId = ?", []interface{}{functionID, applicationID}, exec...)
}

func (repo *mappingRepository) ListFunctionApps(ctx context.Context, filter mapping.Filter, exec ...core.DBExecutor) ([]mapping.FunctionApplicationView, error) {
	var w where
	if filter.FunctionID != "" {
		w.add("m.FunctionId = ?", filter.FunctionID)
	}
	if filter.ApplicationID != "" {
		w.add("m.ApplicationId = ?", filter.ApplicationID)
	}
	w.search(filter.Search, "f.Code", "f.Name", "a.Code", "a.Name")

	q := functionAppsView
	if len(w.clauses) > 0 {
		q += "\nWHERE " + w.String()
	}
	q += "\nORDER BY f.Name, a.Name"

	exe := repo.fnApps.Exec(exec)
	views := make([]mapping.FunctionApplicationView, 0)
	if err := exe.SelectContext(ctx, &views, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "listing function mappings")
	}
	return views, nil
}

func (repo *mappingRepository) CreateAppDept(ctx context.Context, m mapping.ApplicationDepartment, exec ...core.DBExecutor) (mapping.ApplicationDepartment, error) {
	m.ID = uuid.NewString()
	err := repo.appDepts.Create(ctx, map[string]interface{}{
		"MappingId":     m.ID,
		"ApplicationId": m.ApplicationID,
		"DepartmentId":  m.DepartmentID,
		"CreatedAt":     m.CreatedAt,
		"CreatedBy":     m.CreatedBy,
	}, exec...)
	if err != nil {
		return mapping.ApplicationDepartment{}, mapDBError(err, "creating department mapping")
	}
	return m, nil
}

func (repo *mappingRepository) DeleteAppDept(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.appDepts.Delete(ctx, id, exec...)
}

func (repo *mappingRepository) DeleteAppDeptsByApplication(ctx context.Context, applicationID string, exec ...core.DBExecutor) error {
	exe := repo.appDepts.Exec(exec)
	q := exe.Rebind("DELETE FROM ApplicationDepartmentMappings WHERE ApplicationId = ?")
	if _, err := exe.ExecContext(ctx, q, applicationID); err != nil {
		return errors.Wrap(err, "deleting department mappings")
	}
	return nil
}

func (repo *mappingRepository) AppDeptExists(ctx context.Context, applicationID, departmentID string, exec ...core.DBExecutor) (bool, error) {
	return repo.appDepts.Exists(ctx, "ApplicationId = ? AND DepartmentId = ?", []interface{}{applicationID, departmentID}, exec...)
}

func (repo *mappingRepository) ListAppDepts(ctx context.Context, filter mapping.Filter, exec ...core.DBExecutor) ([]mapping.ApplicationDepartmentView, error) {
	var w where
	if filter.ApplicationID != "" {
		w.add("m.ApplicationId = ?", filter.ApplicationID)
	}
	if filter.DepartmentID != "" {
		w.add("m.DepartmentId = ?", filter.DepartmentID)
	}
	w.search(filter.Search, "a.Code", "a.Name", "d.Code", "d.Name")

	q := appDeptsView
	if len(w.clauses) > 0 {
		q += "\nWHERE " + w.String()
	}
	q += "\nORDER BY a.Name, b.Name, v.Name, d.Name"

	exe := repo.appDepts.Exec(exec)
	views := make([]mapping.ApplicationDepartmentView, 0)
	if err := exe.SelectContext(ctx, &views, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "listing department mappings")
	}
	return views, nil
}

func (repo *mappingRepository) CountByFunction(ctx context.Context, functionID string) (int, error) {
	return repo.fnApps.Count(ctx, "FunctionId = ?", []interface{}{functionID})
}

func (repo *mappingRepository) CountByApplication(ctx context.Context, applicationID string) (int, error) {
	q := repo.exec.Rebind(`SELECT
	(SELECT COUNT(*) FROM FunctionApplicationMappings WHERE ApplicationId = ?) +
	(SELECT COUNT(*) FROM ApplicationDepartmentMappings WHERE ApplicationId = ?)`)
	var n int
	if err := repo.exec.GetContext(ctx, &n, q, applicationID, applicationID); err != nil {
		return 0, errors.Wrap(err, "counting application mappings")
	}
	return n, nil
}

func (repo *mappingRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	return repo.appDepts.Count(ctx, "DepartmentId = ?", []interface{}{departmentID})
}
