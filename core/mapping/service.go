package mapping

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		CreateFunctionApp(ctx context.Context, m FunctionApplication, exec ...core.DBExecutor) (FunctionApplication, error)
		DeleteFunctionApp(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteFunctionAppsByFunction(ctx context.Context, functionID string, exec ...core.DBExecutor) error
		FunctionAppExists(ctx context.Context, functionID, applicationID string, exec ...core.DBExecutor) (bool, error)
		ListFunctionApps(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]FunctionApplicationView, error)

		CreateAppDept(ctx context.Context, m ApplicationDepartment, exec ...core.DBExecutor) (ApplicationDepartment, error)
		DeleteAppDept(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteAppDeptsByApplication(ctx context.Context, applicationID string, exec ...core.DBExecutor) error
		AppDeptExists(ctx context.Context, applicationID, departmentID string, exec ...core.DBExecutor) (bool, error)
		ListAppDepts(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]ApplicationDepartmentView, error)

		CountByFunction(ctx context.Context, functionID string) (int, error)
		// CountByApplication counts the mappings of both tables referencing the application.
		CountByApplication(ctx context.Context, applicationID string) (int, error)
		CountByDepartment(ctx context.Context, departmentID string) (int, error)
	}

	Deps struct {
		Repo         Repository
		Tx           core.Transactor
		Functions    core.MasterDataStore[function.Function]
		Applications core.MasterDataStore[application.Application]
		Departments  core.MasterDataStore[orgunit.Department]
	}

	Service struct {
		repo  Repository
		tx    core.Transactor
		fns   core.MasterDataStore[function.Function]
		apps  core.MasterDataStore[application.Application]
		depts core.MasterDataStore[orgunit.Department]
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:  deps.Repo,
		tx:    deps.Tx,
		fns:   deps.Functions,
		apps:  deps.Applications,
		depts: deps.Departments,
	}
}

func fieldNotFound(err error, field, msg string) error {
	if core.IsNotFound(err) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: msg})
	}
	return err
}

func (svc *Service) requireFunction(ctx context.Context, id string) (function.Function, error) {
	fn, err := svc.fns.Get(ctx, id)
	return fn, fieldNotFound(err, "function_id", function.ErrNotFound.Error())
}

func (svc *Service) requireApplication(ctx context.Context, id, field string) (application.Application, error) {
	app, err := svc.apps.Get(ctx, id)
	return app, fieldNotFound(err, field, application.ErrNotFound.Error())
}

func (svc *Service) requireDepartment(ctx context.Context, id, field string) (orgunit.Department, error) {
	dept, err := svc.depts.Get(ctx, id)
	return dept, fieldNotFound(err, field, orgunit.ErrDepartmentNotFound.Error())
}

// uniqueIDs drops blanks and duplicates, keeping order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Function <-> Application

func (svc *Service) CreateFunctionApp(ctx context.Context, in NewFunctionApp, actor string) (FunctionApplication, error) {
	in.FunctionID = core.CleanString(in.FunctionID)
	in.ApplicationID = core.CleanString(in.ApplicationID)
	if err := core.Validate.Struct(in); err != nil {
		return FunctionApplication{}, err
	}
	if _, err := svc.requireFunction(ctx, in.FunctionID); err != nil {
		return FunctionApplication{}, err
	}
	if _, err := svc.requireApplication(ctx, in.ApplicationID, "application_id"); err != nil {
		return FunctionApplication{}, err
	}
	exists, err := svc.repo.FunctionAppExists(ctx, in.FunctionID, in.ApplicationID)
	if err != nil {
		return FunctionApplication{}, err
	}
	if exists {
		return FunctionApplication{}, core.NewConflictError("the application is already mapped to this function")
	}
	return svc.repo.CreateFunctionApp(ctx, FunctionApplication{
		FunctionID:    in.FunctionID,
		ApplicationID: in.ApplicationID,
		CreatedAt:     nowFunc().UTC(),
		CreatedBy:     actor,
	})
}

func (svc *Service) DeleteFunctionApp(ctx context.Context, id string) error {
	err := svc.repo.DeleteFunctionApp(ctx, id)
	if core.IsNotFound(err) {
		return ErrFunctionAppNotFound
	}
	return err
}

func (svc *Service) ListFunctionApps(ctx context.Context, filter Filter) ([]FunctionApplicationView, error) {
	filter.Clean()
	return svc.repo.ListFunctionApps(ctx, filter)
}

// BulkSetFunctionApps replaces the applications mapped to a function in one transaction.
func (svc *Service) BulkSetFunctionApps(ctx context.Context, functionID string, applicationIDs []string, actor string) ([]FunctionApplicationView, error) {
	if _, err := svc.requireFunction(ctx, functionID); err != nil {
		return nil, err
	}
	ids := uniqueIDs(applicationIDs)
	for _, id := range ids {
		if _, err := svc.requireApplication(ctx, id, "ids"); err != nil {
			return nil, err
		}
	}

	now := nowFunc().UTC()
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteFunctionAppsByFunction(ctx, functionID, exec); err != nil {
			return err
		}
		for _, id := range ids {
			m := FunctionApplication{FunctionID: functionID, ApplicationID: id, CreatedAt: now, CreatedBy: actor}
			if _, err := svc.repo.CreateFunctionApp(ctx, m, exec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "replacing function mappings")
	}
	return svc.repo.ListFunctionApps(ctx, Filter{FunctionID: functionID})
}

func (svc *Service) ApplicationsByFunction(ctx context.Context, functionID string) ([]Ref, error) {
	if _, err := svc.fns.Get(ctx, functionID); err != nil {
		if core.IsNotFound(err) {
			return nil, function.ErrNotFound
		}
		return nil, err
	}
	rows, err := svc.repo.ListFunctionApps(ctx, Filter{FunctionID: functionID})
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, Ref{ID: r.ApplicationID, Code: r.ApplicationCode, Name: r.ApplicationName})
	}
	return refs, nil
}

func (svc *Service) FunctionsByApplication(ctx context.Context, applicationID string) ([]Ref, error) {
	if _, err := svc.apps.Get(ctx, applicationID); err != nil {
		if core.IsNotFound(err) {
			return nil, application.ErrNotFound
		}
		return nil, err
	}
	rows, err := svc.repo.ListFunctionApps(ctx, Filter{ApplicationID: applicationID})
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, Ref{ID: r.FunctionID, Code: r.FunctionCode, Name: r.FunctionName})
	}
	return refs, nil
}

// FunctionApplicationTree lists every mapped function with its applications.
func (svc *Service) FunctionApplicationTree(ctx context.Context) ([]FunctionNode, error) {
	rows, err := svc.repo.ListFunctionApps(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	tree := make([]FunctionNode, 0)
	idx := make(map[string]int)
	for _, r := range rows {
		i, ok := idx[r.FunctionID]
		if !ok {
			tree = append(tree, FunctionNode{
				Ref:          Ref{ID: r.FunctionID, Code: r.FunctionCode, Name: r.FunctionName},
				Applications: make([]Ref, 0),
			})
			i = len(tree) - 1
			idx[r.FunctionID] = i
		}
		tree[i].Applications = append(tree[i].Applications, Ref{ID: r.ApplicationID, Code: r.ApplicationCode, Name: r.ApplicationName})
	}
	return tree, nil
}

// Application <-> Department

func (svc *Service) CreateAppDept(ctx context.Context, in NewAppDept, actor string) (ApplicationDepartment, error) {
	in.ApplicationID = core.CleanString(in.ApplicationID)
	in.DepartmentID = core.CleanString(in.DepartmentID)
	if err := core.Validate.Struct(in); err != nil {
		return ApplicationDepartment{}, err
	}
	if _, err := svc.requireApplication(ctx, in.ApplicationID, "application_id"); err != nil {
		return ApplicationDepartment{}, err
	}
	if _, err := svc.requireDepartment(ctx, in.DepartmentID, "department_id"); err != nil {
		return ApplicationDepartment{}, err
	}
	exists, err := svc.repo.AppDeptExists(ctx, in.ApplicationID, in.DepartmentID)
	if err != nil {
		return ApplicationDepartment{}, err
	}
	if exists {
		return ApplicationDepartment{}, core.NewConflictError("the department is already mapped to this application")
	}
	return svc.repo.CreateAppDept(ctx, ApplicationDepartment{
		ApplicationID: in.ApplicationID,
		DepartmentID:  in.DepartmentID,
		CreatedAt:     nowFunc().UTC(),
		CreatedBy:     actor,
	})
}

func (svc *Service) DeleteAppDept(ctx context.Context, id string) error {
	err := svc.repo.DeleteAppDept(ctx, id)
	if core.IsNotFound(err) {
		return ErrAppDeptNotFound
	}
	return err
}

func (svc *Service) ListAppDepts(ctx context.Context, filter Filter) ([]ApplicationDepartmentView, error) {
	filter.Clean()
	return svc.repo.ListAppDepts(ctx, filter)
}

// BulkSetAppDepts replaces the departments mapped to an application in one transaction.
func (svc *Service) BulkSetAppDepts(ctx context.Context, applicationID string, departmentIDs []string, actor string) ([]ApplicationDepartmentView, error) {
	if _, err := svc.requireApplication(ctx, applicationID, "application_id"); err != nil {
		return nil, err
	}
	ids := uniqueIDs(departmentIDs)
	for _, id := range ids {
		if _, err := svc.requireDepartment(ctx, id, "ids"); err != nil {
			return nil, err
		}
	}

	now := nowFunc().UTC()
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteAppDeptsByApplication(ctx, applicationID, exec); err != nil {
			return err
		}
		for _, id := range ids {
			m := ApplicationDepartment{ApplicationID: applicationID, DepartmentID: id, CreatedAt: now, CreatedBy: actor}
			if _, err := svc.repo.CreateAppDept(ctx, m, exec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "replacing application mappings")
	}
	return svc.repo.ListAppDepts(ctx, Filter{ApplicationID: applicationID})
}

func (svc *Service) ApplicationsByDepartment(ctx context.Context, departmentID string) ([]Ref, error) {
	if _, err := svc.depts.Get(ctx, departmentID); err != nil {
		if core.IsNotFound(err) {
			return nil, orgunit.ErrDepartmentNotFound
		}
		return nil, err
	}
	rows, err := svc.repo.ListAppDepts(ctx, Filter{DepartmentID: departmentID})
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, Ref{ID: r.ApplicationID, Code: r.ApplicationCode, Name: r.ApplicationName})
	}
	return refs, nil
}

// DepartmentHierarchy returns the departments mapped to an application grouped by business unit and division.
func (svc *Service) DepartmentHierarchy(ctx context.Context, applicationID string) ([]orgunit.BusinessUnitNode, error) {
	if _, err := svc.apps.Get(ctx, applicationID); err != nil {
		if core.IsNotFound(err) {
			return nil, application.ErrNotFound
		}
		return nil, err
	}
	rows, err := svc.repo.ListAppDepts(ctx, Filter{ApplicationID: applicationID})
	if err != nil {
		return nil, err
	}
	hier := make([]orgunit.HierarchyRow, 0, len(rows))
	for _, r := range rows {
		hier = append(hier, orgunit.HierarchyRow{
			BusinessUnitID:   r.BusinessUnitID,
			BusinessUnitCode: r.BusinessUnitCode,
			BusinessUnitName: r.BusinessUnitName,
			DivisionID:       r.DivisionID,
			DivisionCode:     r.DivisionCode,
			DivisionName:     r.DivisionName,
			DepartmentID:     r.DepartmentID,
			DepartmentCode:   r.DepartmentCode,
			DepartmentName:   r.DepartmentName,
		})
	}
	return orgunit.BuildTree(hier), nil
}

// CSV exports

func (svc *Service) ExportFunctionAppsCSV(ctx context.Context, w io.Writer) error {
	rows, err := svc.repo.ListFunctionApps(ctx, Filter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"FunctionCode", "FunctionName", "ApplicationCode", "ApplicationName", "CreatedAt", "CreatedBy"})
	for _, r := range rows {
		_ = cw.Write(csvRow(
			r.FunctionCode, r.FunctionName, r.ApplicationCode, r.ApplicationName,
			r.CreatedAt.UTC().Format(time.RFC3339), r.CreatedBy,
		))
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing csv")
}

func (svc *Service) ExportAppDeptsCSV(ctx context.Context, w io.Writer) error {
	rows, err := svc.repo.ListAppDepts(ctx, Filter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"ApplicationCode", "ApplicationName", "BusinessUnitCode", "DivisionCode",
		"DepartmentCode", "DepartmentName", "CreatedAt", "CreatedBy",
	})
	for _, r := range rows {
		_ = cw.Write(csvRow(
			r.ApplicationCode, r.ApplicationName, r.BusinessUnitCode, r.DivisionCode,
			r.DepartmentCode, r.DepartmentName, r.CreatedAt.UTC().Format(time.RFC3339), r.CreatedBy,
		))
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing csv")
}

// csvRow prefixes cells that a spreadsheet would read as a formula with a quote.
func csvRow(cells ...string) []string {
	for i, c := range cells {
		if c != "" && strings.ContainsRune("=+-@\t\r", rune(c[0])) {
			cells[i] = "'" + c
		}
	}
	return cells
}
