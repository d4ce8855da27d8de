package bulkimport

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
)

// importer handles one entity. A fresh importer is used for every import.
type importer interface {
	columns() []string
	example() []string
	// check validates rows, keeping the valid ones for write.
	check(ctx context.Context, rows []row, errs *rowErrors) error
	write(ctx context.Context, exec core.DBExecutor, actor string, now time.Time, res *Result) error
	export(ctx context.Context) (header []string, rows [][]string, err error)
}

// record is the importable part of a master-data record.
type record struct {
	ID          string
	Code        string
	Name        string
	Description string
	ParentID    string
	IsActive    bool
	// activeSet is false when the IsActive cell was blank or the column missing.
	activeSet bool
}

// lookup resolves a code to an id.
type lookup func(ctx context.Context, code string) (id string, active bool, err error)

func byCode[T any](store core.MasterDataStore[T], view func(T) record) lookup {
	return func(ctx context.Context, code string) (string, bool, error) {
		item, err := store.GetByCode(ctx, code)
		if err != nil {
			return "", false, err
		}
		rec := view(item)
		return rec.ID, rec.IsActive, nil
	}
}

func codesByID[T any](ctx context.Context, store core.MasterDataStore[T], view func(T) record) (map[string]string, error) {
	items, err := store.List(ctx, core.MasterDataFilter{})
	if err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(items))
	for _, item := range items {
		rec := view(item)
		codes[rec.ID] = rec.Code
	}
	return codes, nil
}

type parentRef struct {
	column string
	find   lookup
	codes  func(ctx context.Context) (map[string]string, error) // id -> code
}

// resolve checks a referenced code; ok is false when an error was recorded.
func resolve(ctx context.Context, find lookup, r row, col, entity string, errs *rowErrors) (id string, ok bool, err error) {
	code := core.CleanCode(r.get(col))
	if code == "" {
		errs.add(r.num, col, "this field is required")
		return "", false, nil
	}
	id, active, err := find(ctx, code)
	if core.IsNotFound(err) {
		errs.add(r.num, col, "%s %s does not exist", entity, code)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !active {
		errs.add(r.num, col, "%s %s is inactive", entity, code)
		return "", false, nil
	}
	return id, true, nil
}

type masterImporter[T any] struct {
	store   core.MasterDataStore[T]
	parent  *parentRef
	view    func(T) record
	set     func(item *T, rec record, actor string, now time.Time, isNew bool)
	sample  record
	pending []record
}

func (m *masterImporter[T]) columns() []string {
	cols := []string{colCode, colName, colDescription}
	if m.parent != nil {
		cols = append(cols, m.parent.column)
	}
	return append(cols, colIsActive)
}

func (m *masterImporter[T]) example() []string {
	ex := []string{m.sample.Code, m.sample.Name, m.sample.Description}
	if m.parent != nil {
		ex = append(ex, m.sample.ParentID)
	}
	return append(ex, formatBool(true))
}

func (m *masterImporter[T]) check(ctx context.Context, rows []row, errs *rowErrors) error {
	seen := make(map[string]int, len(rows))
	for _, r := range rows {
		before := len(*errs)
		rec := record{
			Code:        core.CleanCode(r.get(colCode)),
			Name:        core.CleanString(r.get(colName)),
			Description: core.CleanString(r.get(colDescription)),
		}

		if rec.Code == "" {
			errs.add(r.num, colCode, "this field is required")
		} else if !core.CodeRegex.MatchString(rec.Code) {
			errs.add(r.num, colCode, "only uppercase letters, digits, '_' and '-' are allowed (max 20 characters)")
		} else if prev, dup := seen[rec.Code]; dup {
			errs.add(r.num, colCode, "duplicate of row %d", prev)
		} else {
			seen[rec.Code] = r.num
		}

		if n := utf8.RuneCountInString(rec.Name); n < nameMinLen || n > nameMaxLen {
			errs.add(r.num, colName, "must be between %d and %d characters", nameMinLen, nameMaxLen)
		}
		if utf8.RuneCountInString(rec.Description) > descriptionMaxLen {
			errs.add(r.num, colDescription, "must be at most %d characters", descriptionMaxLen)
		}
		active, ok := parseBool(r.get(colIsActive))
		if !ok {
			errs.add(r.num, colIsActive, "must be TRUE or FALSE")
		}
		if active != nil {
			rec.IsActive, rec.activeSet = *active, true
		}

		if m.parent != nil {
			id, _, err := resolve(ctx, m.parent.find, r, m.parent.column, "parent", errs)
			if err != nil {
				return err
			}
			rec.ParentID = id
		}

		if len(*errs) == before {
			m.pending = append(m.pending, rec)
		}
	}
	return nil
}

// write upserts the checked records by code.
func (m *masterImporter[T]) write(ctx context.Context, exec core.DBExecutor, actor string, now time.Time, res *Result) error {
	for _, rec := range m.pending {
		existing, err := m.store.GetByCode(ctx, rec.Code, exec)
		switch {
		case err == nil:
			cur := m.view(existing)
			if !rec.activeSet {
				rec.IsActive = cur.IsActive
			}
			if cur.Name == rec.Name && cur.Description == rec.Description &&
				cur.ParentID == rec.ParentID && cur.IsActive == rec.IsActive {
				res.Skipped++
				continue
			}
			m.set(&existing, rec, actor, now, false)
			if _, err = m.store.Update(ctx, existing, exec); err != nil {
				return err
			}
			res.Updated++
		case core.IsNotFound(err):
			if !rec.activeSet {
				rec.IsActive = true
			}
			var item T
			m.set(&item, rec, actor, now, true)
			if _, err = m.store.Create(ctx, item, exec); err != nil {
				return err
			}
			res.Created++
		default:
			return err
		}
	}
	return nil
}

func (m *masterImporter[T]) export(ctx context.Context) ([]string, [][]string, error) {
	items, err := m.store.List(ctx, core.MasterDataFilter{Ordering: "code"})
	if err != nil {
		return nil, nil, err
	}
	var parentCodes map[string]string
	if m.parent != nil {
		if parentCodes, err = m.parent.codes(ctx); err != nil {
			return nil, nil, err
		}
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rec := m.view(item)
		cells := []string{rec.Code, rec.Name, rec.Description}
		if m.parent != nil {
			cells = append(cells, parentCodes[rec.ParentID])
		}
		rows = append(rows, append(cells, formatBool(rec.IsActive)))
	}
	return m.columns(), rows, nil
}

// mappingImporter links two existing records; existing links are skipped.
type mappingImporter struct {
	left, right       string // columns
	leftEnt, rightEnt string
	findLeft          lookup
	findRight         lookup
	exists            func(ctx context.Context, exec core.DBExecutor, leftID, rightID string) (bool, error)
	create            func(ctx context.Context, exec core.DBExecutor, leftID, rightID, actor string, now time.Time) error
	list              func(ctx context.Context) ([]string, [][]string, error)
	sample            []string
	pending           [][2]string
}

func (m *mappingImporter) columns() []string { return []string{m.left, m.right} }
func (m *mappingImporter) example() []string { return m.sample }

func (m *mappingImporter) check(ctx context.Context, rows []row, errs *rowErrors) error {
	seen := make(map[[2]string]int, len(rows))
	for _, r := range rows {
		before := len(*errs)
		leftID, okL, err := resolve(ctx, m.findLeft, r, m.left, m.leftEnt, errs)
		if err != nil {
			return err
		}
		rightID, okR, err := resolve(ctx, m.findRight, r, m.right, m.rightEnt, errs)
		if err != nil {
			return err
		}
		if okL && okR {
			pair := [2]string{leftID, rightID}
			if prev, dup := seen[pair]; dup {
				errs.add(r.num, m.right, "duplicate of row %d", prev)
			} else {
				seen[pair] = r.num
			}
		}
		if len(*errs) == before {
			m.pending = append(m.pending, [2]string{leftID, rightID})
		}
	}
	return nil
}

func (m *mappingImporter) write(ctx context.Context, exec core.DBExecutor, actor string, now time.Time, res *Result) error {
	for _, pair := range m.pending {
		exists, err := m.exists(ctx, exec, pair[0], pair[1])
		if err != nil {
			return err
		}
		if exists {
			res.Skipped++
			continue
		}
		if err = m.create(ctx, exec, pair[0], pair[1], actor, now); err != nil {
			return err
		}
		res.Created++
	}
	return nil
}

func (m *mappingImporter) export(ctx context.Context) ([]string, [][]string, error) {
	return m.list(ctx)
}

// views

func businessUnitView(bu orgunit.BusinessUnit) record {
	return record{ID: bu.ID, Code: bu.Code, Name: bu.Name, Description: bu.Description, IsActive: bu.IsActive}
}

func divisionView(d orgunit.Division) record {
	return record{ID: d.ID, Code: d.Code, Name: d.Name, Description: d.Description, ParentID: d.BusinessUnitID, IsActive: d.IsActive}
}

func departmentView(d orgunit.Department) record {
	return record{ID: d.ID, Code: d.Code, Name: d.Name, Description: d.Description, ParentID: d.DivisionID, IsActive: d.IsActive}
}

func functionView(f function.Function) record {
	return record{ID: f.ID, Code: f.Code, Name: f.Name, Description: f.Description, IsActive: f.IsActive}
}

func applicationView(a application.Application) record {
	return record{ID: a.ID, Code: a.Code, Name: a.Name, Description: a.Description, IsActive: a.IsActive}
}

func (svc *Service) importerFor(entity string) (importer, error) {
	switch entity {
	case EntityBusinessUnits:
		return &masterImporter[orgunit.BusinessUnit]{
			store: svc.org.BusinessUnits,
			view:  businessUnitView,
			set: func(bu *orgunit.BusinessUnit, rec record, actor string, now time.Time, isNew bool) {
				bu.Code, bu.Name, bu.Description, bu.IsActive = rec.Code, rec.Name, rec.Description, rec.IsActive
				bu.UpdatedAt, bu.UpdatedBy = now, actor
				if isNew {
					bu.CreatedAt, bu.CreatedBy = now, actor
				}
			},
			sample: record{Code: "BU-CORP", Name: "Corporate", Description: "Head office"},
		}, nil

	case EntityDivisions:
		return &masterImporter[orgunit.Division]{
			store: svc.org.Divisions,
			parent: &parentRef{
				column: colBusinessUnitCode,
				find:   byCode(svc.org.BusinessUnits, businessUnitView),
				codes: func(ctx context.Context) (map[string]string, error) {
					return codesByID(ctx, svc.org.BusinessUnits, businessUnitView)
				},
			},
			view: divisionView,
			set: func(d *orgunit.Division, rec record, actor string, now time.Time, isNew bool) {
				d.Code, d.Name, d.Description, d.IsActive = rec.Code, rec.Name, rec.Description, rec.IsActive
				d.BusinessUnitID = rec.ParentID
				d.UpdatedAt, d.UpdatedBy = now, actor
				if isNew {
					d.CreatedAt, d.CreatedBy = now, actor
				}
			},
			sample: record{Code: "DIV-IT", Name: "Information Technology", ParentID: "BU-CORP"},
		}, nil

	case EntityDepartments:
		return &masterImporter[orgunit.Department]{
			store: svc.org.Departments,
			parent: &parentRef{
				column: colDivisionCode,
				find:   byCode(svc.org.Divisions, divisionView),
				codes: func(ctx context.Context) (map[string]string, error) {
					return codesByID(ctx, svc.org.Divisions, divisionView)
				},
			},
			view: departmentView,
			set: func(d *orgunit.Department, rec record, actor string, now time.Time, isNew bool) {
				d.Code, d.Name, d.Description, d.IsActive = rec.Code, rec.Name, rec.Description, rec.IsActive
				d.DivisionID = rec.ParentID
				d.UpdatedAt, d.UpdatedBy = now, actor
				if isNew {
					d.CreatedAt, d.CreatedBy = now, actor
				}
			},
			sample: record{Code: "DEPT-APPS", Name: "Application Support", ParentID: "DIV-IT"},
		}, nil

	case EntityFunctions:
		return &masterImporter[function.Function]{
			store: svc.functions,
			view:  functionView,
			set: func(f *function.Function, rec record, actor string, now time.Time, isNew bool) {
				f.Code, f.Name, f.Description, f.IsActive = rec.Code, rec.Name, rec.Description, rec.IsActive
				f.UpdatedAt, f.UpdatedBy = now, actor
				if isNew {
					f.CreatedAt, f.CreatedBy = now, actor
				}
			},
			sample: record{Code: "FIN", Name: "Finance", Description: "Finance function"},
		}, nil

	case EntityApplications:
		return &masterImporter[application.Application]{
			store: svc.applications,
			view:  applicationView,
			set: func(a *application.Application, rec record, actor string, now time.Time, isNew bool) {
				a.Code, a.Name, a.Description, a.IsActive = rec.Code, rec.Name, rec.Description, rec.IsActive
				a.UpdatedAt, a.UpdatedBy = now, actor
				if isNew {
					a.CreatedAt, a.CreatedBy = now, actor
				}
			},
			sample: record{Code: "SAP-FI", Name: "SAP Financials", Description: "General ledger"},
		}, nil

	case EntityFunctionApplications:
		return &mappingImporter{
			left: colFunctionCode, right: colApplicationCode,
			leftEnt: "function", rightEnt: "application",
			findLeft:  byCode(svc.functions, functionView),
			findRight: byCode(svc.applications, applicationView),
			exists: func(ctx context.Context, exec core.DBExecutor, fnID, appID string) (bool, error) {
				return svc.mappings.FunctionAppExists(ctx, fnID, appID, exec)
			},
			create: func(ctx context.Context, exec core.DBExecutor, fnID, appID, actor string, now time.Time) error {
				_, err := svc.mappings.CreateFunctionApp(ctx, mapping.FunctionApplication{
					FunctionID: fnID, ApplicationID: appID, CreatedAt: now, CreatedBy: actor,
				}, exec)
				return err
			},
			list: func(ctx context.Context) ([]string, [][]string, error) {
				views, err := svc.mappings.ListFunctionApps(ctx, mapping.Filter{})
				if err != nil {
					return nil, nil, err
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.FunctionCode, v.ApplicationCode, v.FunctionName, v.ApplicationName})
				}
				return []string{colFunctionCode, colApplicationCode, "FunctionName", "ApplicationName"}, rows, nil
			},
			sample: []string{"FIN", "SAP-FI"},
		}, nil

	case EntityApplicationDepartments:
		return &mappingImporter{
			left: colApplicationCode, right: colDepartmentCode,
			leftEnt: "application", rightEnt: "department",
			findLeft:  byCode(svc.applications, applicationView),
			findRight: byCode(svc.org.Departments, departmentView),
			exists: func(ctx context.Context, exec core.DBExecutor, appID, deptID string) (bool, error) {
				return svc.mappings.AppDeptExists(ctx, appID, deptID, exec)
			},
			create: func(ctx context.Context, exec core.DBExecutor, appID, deptID, actor string, now time.Time) error {
				_, err := svc.mappings.CreateAppDept(ctx, mapping.ApplicationDepartment{
					ApplicationID: appID, DepartmentID: deptID, CreatedAt: now, CreatedBy: actor,
				}, exec)
				return err
			},
			list: func(ctx context.Context) ([]string, [][]string, error) {
				views, err := svc.mappings.ListAppDepts(ctx, mapping.Filter{})
				if err != nil {
					return nil, nil, err
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						v.ApplicationCode, v.DepartmentCode, v.ApplicationName, v.DepartmentName,
						v.DivisionCode, v.BusinessUnitCode,
					})
				}
				header := []string{colApplicationCode, colDepartmentCode, "ApplicationName", "DepartmentName", "DivisionCode", "BusinessUnitCode"}
				return header, rows, nil
			},
			sample: []string{"SAP-FI", "DEPT-APPS"},
		}, nil
	}
	return nil, ErrUnknownEntity
}
