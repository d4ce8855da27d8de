package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

var (
	masterColumns = []string{"Code", "Name", "Description", "IsActive", "CreatedAt", "CreatedBy", "UpdatedAt", "UpdatedBy"}

	masterOrdering = map[string]string{
		"code":       "Code",
		"name":       "Name",
		"is_active":  "IsActive",
		"created_at": "CreatedAt",
		"updated_at": "UpdatedAt",
	}
)

// masterFields are the values shared by every master-data table.
type masterFields struct {
	Code, Name, Description string
	IsActive                bool
	CreatedAt, UpdatedAt    time.Time
	CreatedBy, UpdatedBy    string
}

func (f masterFields) values() map[string]interface{} {
	return map[string]interface{}{
		"Code":        f.Code,
		"Name":        f.Name,
		"Description": f.Description,
		"IsActive":    f.IsActive,
		"CreatedAt":   f.CreatedAt,
		"CreatedBy":   f.CreatedBy,
		"UpdatedAt":   f.UpdatedAt,
		"UpdatedBy":   f.UpdatedBy,
	}
}

// MasterDataRepository stores one kind of master-data record.
type MasterDataRepository[T any] struct {
	base   *database.BaseRepository[T]
	entity string
	parent string // foreign key to the parent level, if any
	id     func(item *T) *string
	fields func(item T) (masterFields, map[string]interface{})
}

func (repo *MasterDataRepository[T]) values(item T) map[string]interface{} {
	f, extra := repo.fields(item)
	vals := f.values()
	for k, v := range extra {
		vals[k] = v
	}
	return vals
}

func (repo *MasterDataRepository[T]) Create(ctx context.Context, item T, exec ...core.DBExecutor) (T, error) {
	id := repo.id(&item)
	if *id == "" {
		*id = uuid.NewString()
	}
	vals := repo.values(item)
	vals[repo.base.Table().PK] = *id
	if err := repo.base.Create(ctx, vals, exec...); err != nil {
		var zero T
		return zero, mapDBError(err, "creating "+repo.entity)
	}
	return item, nil
}

func (repo *MasterDataRepository[T]) Get(ctx context.Context, id string, exec ...core.DBExecutor) (T, error) {
	return repo.base.FindByID(ctx, id, exec...)
}

func (repo *MasterDataRepository[T]) GetByCode(ctx context.Context, code string, exec ...core.DBExecutor) (T, error) {
	return repo.base.FindOne(ctx, "UPPER(Code) = ?", []interface{}{strings.ToUpper(code)}, exec...)
}

func (repo *MasterDataRepository[T]) filter(f core.MasterDataFilter) where {
	var w where
	w.search(f.Search, "Code", "Name")
	if f.IsActive != nil {
		w.add("IsActive = ?", *f.IsActive)
	}
	if f.ParentID != "" && repo.parent != "" {
		w.add(repo.parent+" = ?", f.ParentID)
	}
	return w
}

func (repo *MasterDataRepository[T]) List(ctx context.Context, f core.MasterDataFilter, exec ...core.DBExecutor) ([]T, error) {
	w := repo.filter(f)
	return repo.base.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: ordering(f.Ordering, masterOrdering, core.DBOrdering{Field: "Name", Ascending: true}),
	}, exec...)
}

func (repo *MasterDataRepository[T]) Count(ctx context.Context, f core.MasterDataFilter, exec ...core.DBExecutor) (int, error) {
	w := repo.filter(f)
	return repo.base.Count(ctx, w.String(), w.args, exec...)
}

func (repo *MasterDataRepository[T]) Update(ctx context.Context, item T, exec ...core.DBExecutor) (T, error) {
	vals := repo.values(item)
	delete(vals, "CreatedAt")
	delete(vals, "CreatedBy")
	if err := repo.base.Update(ctx, *repo.id(&item), vals, exec...); err != nil {
		var zero T
		return zero, mapDBError(err, "updating "+repo.entity)
	}
	return item, nil
}

func (repo *MasterDataRepository[T]) Delete(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return mapDBError(repo.base.Delete(ctx, id, exec...), "deleting "+repo.entity)
}

func (repo *MasterDataRepository[T]) CodeExists(ctx context.Context, code, excludeID string, exec ...core.DBExecutor) (bool, error) {
	var w where
	w.add("UPPER(Code) = ?", strings.ToUpper(code))
	if excludeID != "" {
		w.add(repo.base.Table().PK+" <> ?", excludeID)
	}
	return repo.base.Exists(ctx, w.String(), w.args, exec...)
}

func masterTable(name, pk string, extra ...string) database.Table {
	cols := append([]string{pk}, extra...)
	return database.Table{Name: name, PK: pk, Columns: append(cols, masterColumns...)}
}

func NewBusinessUnitRepository(exec core.DBExecutor) *MasterDataRepository[orgunit.BusinessUnit] {
	return &MasterDataRepository[orgunit.BusinessUnit]{
		base:   database.NewBaseRepository[orgunit.BusinessUnit](exec, masterTable("BusinessUnits", "BusinessUnitId")),
		entity: "business unit",
		id:     func(bu *orgunit.BusinessUnit) *string { return &bu.ID },
		fields: func(bu orgunit.BusinessUnit) (masterFields, map[string]interface{}) {
			return masterFields{
				Code: bu.Code, Name: bu.Name, Description: bu.Description, IsActive: bu.IsActive,
				CreatedAt: bu.CreatedAt, CreatedBy: bu.CreatedBy, UpdatedAt: bu.UpdatedAt, UpdatedBy: bu.UpdatedBy,
			}, nil
		},
	}
}

func NewDivisionRepository(exec core.DBExecutor) *MasterDataRepository[orgunit.Division] {
	return &MasterDataRepository[orgunit.Division]{
		base:   database.NewBaseRepository[orgunit.Division](exec, masterTable("Divisions", "DivisionId", "BusinessUnitId")),
		entity: "division",
		parent: "BusinessUnitId",
		id:     func(d *orgunit.Division) *string { return &d.ID },
		fields: func(d orgunit.Division) (masterFields, map[string]interface{}) {
			return masterFields{
				Code: d.Code, Name: d.Name, Description: d.Description, IsActive: d.IsActive,
				CreatedAt: d.CreatedAt, CreatedBy: d.CreatedBy, UpdatedAt: d.UpdatedAt, UpdatedBy: d.UpdatedBy,
			}, map[string]interface{}{"BusinessUnitId": d.BusinessUnitID}
		},
	}
}

func NewDepartmentRepository(exec core.DBExecutor) *MasterDataRepository[orgunit.Department] {
	return &MasterDataRepository[orgunit.Department]{
		base:   database.NewBaseRepository[orgunit.Department](exec, masterTable("Departments", "DepartmentId", "DivisionId")),
		entity: "department",
		parent: "DivisionId",
		id:     func(d *orgunit.Department) *string { return &d.ID },
		fields: func(d orgunit.Department) (masterFields, map[string]interface{}) {
			return masterFields{
				Code: d.Code, Name: d.Name, Description: d.Description, IsActive: d.IsActive,
				CreatedAt: d.CreatedAt, CreatedBy: d.CreatedBy, UpdatedAt: d.UpdatedAt, UpdatedBy: d.UpdatedBy,
			}, map[string]interface{}{"DivisionId": d.DivisionID}
		},
	}
}

func NewFunctionRepository(exec core.DBExecutor) *MasterDataRepository[function.Function] {
	return &MasterDataRepository[function.Function]{
		base:   database.NewBaseRepository[function.Function](exec, masterTable("Functions", "FunctionId")),
		entity: "function",
		id:     func(fn *function.Function) *string { return &fn.ID },
		fields: func(fn function.Function) (masterFields, map[string]interface{}) {
			return masterFields{
				Code: fn.Code, Name: fn.Name, Description: fn.Description, IsActive: fn.IsActive,
				CreatedAt: fn.CreatedAt, CreatedBy: fn.CreatedBy, UpdatedAt: fn.UpdatedAt, UpdatedBy: fn.UpdatedBy,
			}, nil
		},
	}
}

func NewApplicationRepository(exec core.DBExecutor) *MasterDataRepository[application.Application] {
	return &MasterDataRepository[application.Application]{
		base:   database.NewBaseRepository[application.Application](exec, masterTable("Applications", "ApplicationId")),
		entity: "application",
		id:     func(app *application.Application) *string { return &app.ID },
		fields: func(app application.Application) (masterFields, map[string]interface{}) {
			return masterFields{
				Code: app.Code, Name: app.Name, Description: app.Description, IsActive: app.IsActive,
				CreatedAt: app.CreatedAt, CreatedBy: app.CreatedBy, UpdatedAt: app.UpdatedAt, UpdatedBy: app.UpdatedBy,
			}, nil
		},
	}
}

// NewOrgUnitStores builds the three levels of the organisation on exec.
func NewOrgUnitStores(exec core.DBExecutor) orgunit.Stores {
	return orgunit.Stores{
		BusinessUnits: NewBusinessUnitRepository(exec),
		Divisions:     NewDivisionRepository(exec),
		Departments:   NewDepartmentRepository(exec),
	}
}

var (
	_ core.MasterDataStore[orgunit.BusinessUnit]    = (*MasterDataRepository[orgunit.BusinessUnit])(nil)
	_ core.MasterDataStore[application.Application] = (*MasterDataRepository[application.Application])(nil)
)
