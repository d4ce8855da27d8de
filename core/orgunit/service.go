package orgunit

import (
	"context"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var nowFunc = time.Now // mockable

type (
	// MappingCounter counts the application mappings referencing a department.
	MappingCounter interface {
		CountByDepartment(ctx context.Context, departmentID string) (int, error)
	}

	Stores struct {
		BusinessUnits core.MasterDataStore[BusinessUnit]
		Divisions     core.MasterDataStore[Division]
		Departments   core.MasterDataStore[Department]
	}

	Service struct {
		bus      core.MasterDataStore[BusinessUnit]
		divs     core.MasterDataStore[Division]
		depts    core.MasterDataStore[Department]
		mappings MappingCounter
	}
)

func NewService(stores Stores, mappings MappingCounter) *Service {
	return &Service{
		bus:      stores.BusinessUnits,
		divs:     stores.Divisions,
		depts:    stores.Departments,
		mappings: mappings,
	}
}

func mapNotFound(err, target error) error {
	if core.IsNotFound(err) {
		return target
	}
	return err
}

func (svc *Service) checkCode(ctx context.Context, exists func(ctx context.Context, code, excludeID string, exec ...core.DBExecutor) (bool, error), code, excludeID, entity string) error {
	found, err := exists(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if found {
		return core.NewConflictError("a %s with code %s already exists", entity, code)
	}
	return nil
}

// Business units

func (svc *Service) CreateBusinessUnit(ctx context.Context, in NewBusinessUnit, actor string) (BusinessUnit, error) {
	if err := in.Validate(); err != nil {
		return BusinessUnit{}, err
	}
	if err := svc.checkCode(ctx, svc.bus.CodeExists, in.Code, "", "business unit"); err != nil {
		return BusinessUnit{}, err
	}
	now := nowFunc().UTC()
	return svc.bus.Create(ctx, BusinessUnit{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		CreatedBy:   actor,
		UpdatedAt:   now,
		UpdatedBy:   actor,
	})
}

func (svc *Service) GetBusinessUnit(ctx context.Context, id string) (BusinessUnit, error) {
	bu, err := svc.bus.Get(ctx, id)
	return bu, mapNotFound(err, ErrBusinessUnitNotFound)
}

func (svc *Service) ListBusinessUnits(ctx context.Context, filter core.MasterDataFilter) ([]BusinessUnit, error) {
	filter.Clean()
	filter.ParentID = ""
	return svc.bus.List(ctx, filter)
}

func (svc *Service) UpdateBusinessUnit(ctx context.Context, id string, in UpdateBusinessUnit, actor string) (BusinessUnit, error) {
	if err := in.Validate(); err != nil {
		return BusinessUnit{}, err
	}
	bu, err := svc.GetBusinessUnit(ctx, id)
	if err != nil {
		return BusinessUnit{}, err
	}
	if in.Code != "" && in.Code != bu.Code {
		if err = svc.checkCode(ctx, svc.bus.CodeExists, in.Code, bu.ID, "business unit"); err != nil {
			return BusinessUnit{}, err
		}
	}
	in.Apply(&bu.Code, &bu.Name, &bu.Description, &bu.IsActive)
	bu.UpdatedAt = nowFunc().UTC()
	bu.UpdatedBy = actor
	return svc.bus.Update(ctx, bu)
}

func (svc *Service) DeleteBusinessUnit(ctx context.Context, id string) error {
	if _, err := svc.GetBusinessUnit(ctx, id); err != nil {
		return err
	}
	n, err := svc.divs.Count(ctx, core.MasterDataFilter{ParentID: id})
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("business unit has %d division(s); delete or move them first", n)
	}
	return mapNotFound(svc.bus.Delete(ctx, id), ErrBusinessUnitNotFound)
}

// Divisions

// activeBusinessUnit checks that id refers to an existing, active business unit.
func (svc *Service) activeBusinessUnit(ctx context.Context, id string) error {
	bu, err := svc.bus.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "business_unit_id", Error: ErrBusinessUnitNotFound.Error()})
		}
		return err
	}
	if !bu.IsActive {
		return core.NewValidationError(nil, core.FieldError{Field: "business_unit_id", Error: "business unit is inactive"})
	}
	return nil
}

func (svc *Service) CreateDivision(ctx context.Context, in NewDivision, actor string) (Division, error) {
	if err := in.Validate(); err != nil {
		return Division{}, err
	}
	if err := svc.activeBusinessUnit(ctx, in.BusinessUnitID); err != nil {
		return Division{}, err
	}
	if err := svc.checkCode(ctx, svc.divs.CodeExists, in.Code, "", "division"); err != nil {
		return Division{}, err
	}
	now := nowFunc().UTC()
	return svc.divs.Create(ctx, Division{
		BusinessUnitID: in.BusinessUnitID,
		Code:           in.Code,
		Name:           in.Name,
		Description:    in.Description,
		IsActive:       true,
		CreatedAt:      now,
		CreatedBy:      actor,
		UpdatedAt:      now,
		UpdatedBy:      actor,
	})
}

func (svc *Service) GetDivision(ctx context.Context, id string) (Division, error) {
	div, err := svc.divs.Get(ctx, id)
	return div, mapNotFound(err, ErrDivisionNotFound)
}

func (svc *Service) ListDivisions(ctx context.Context, filter core.MasterDataFilter) ([]Division, error) {
	filter.Clean()
	return svc.divs.List(ctx, filter)
}

func (svc *Service) UpdateDivision(ctx context.Context, id string, in UpdateDivision, actor string) (Division, error) {
	if err := in.Validate(); err != nil {
		return Division{}, err
	}
	div, err := svc.GetDivision(ctx, id)
	if err != nil {
		return Division{}, err
	}
	if in.BusinessUnitID != "" && in.BusinessUnitID != div.BusinessUnitID {
		if err = svc.activeBusinessUnit(ctx, in.BusinessUnitID); err != nil {
			return Division{}, err
		}
		div.BusinessUnitID = in.BusinessUnitID
	}
	if in.Code != "" && in.Code != div.Code {
		if err = svc.checkCode(ctx, svc.divs.CodeExists, in.Code, div.ID, "division"); err != nil {
			return Division{}, err
		}
	}
	in.Apply(&div.Code, &div.Name, &div.Description, &div.IsActive)
	div.UpdatedAt = nowFunc().UTC()
	div.UpdatedBy = actor
	return svc.divs.Update(ctx, div)
}

func (svc *Service) DeleteDivision(ctx context.Context, id string) error {
	if _, err := svc.GetDivision(ctx, id); err != nil {
		return err
	}
	n, err := svc.depts.Count(ctx, core.MasterDataFilter{ParentID: id})
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("division has %d department(s); delete or move them first", n)
	}
	return mapNotFound(svc.divs.Delete(ctx, id), ErrDivisionNotFound)
}

// Departments

func (svc *Service) activeDivision(ctx context.Context, id string) error {
	div, err := svc.divs.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "division_id", Error: ErrDivisionNotFound.Error()})
		}
		return err
	}
	if !div.IsActive {
		return core.NewValidationError(nil, core.FieldError{Field: "division_id", Error: "division is inactive"})
	}
	return nil
}

func (svc *Service) CreateDepartment(ctx context.Context, in NewDepartment, actor string) (Department, error) {
	if err := in.Validate(); err != nil {
		return Department{}, err
	}
	if err := svc.activeDivision(ctx, in.DivisionID); err != nil {
		return Department{}, err
	}
	if err := svc.checkCode(ctx, svc.depts.CodeExists, in.Code, "", "department"); err != nil {
		return Department{}, err
	}
	now := nowFunc().UTC()
	return svc.depts.Create(ctx, Department{
		DivisionID:  in.DivisionID,
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		CreatedBy:   actor,
		UpdatedAt:   now,
		UpdatedBy:   actor,
	})
}

func (svc *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	dept, err := svc.depts.Get(ctx, id)
	return dept, mapNotFound(err, ErrDepartmentNotFound)
}

func (svc *Service) ListDepartments(ctx context.Context, filter core.MasterDataFilter) ([]Department, error) {
	filter.Clean()
	return svc.depts.List(ctx, filter)
}

func (svc *Service) UpdateDepartment(ctx context.Context, id string, in UpdateDepartment, actor string) (Department, error) {
	if err := in.Validate(); err != nil {
		return Department{}, err
	}
	dept, err := svc.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if in.DivisionID != "" && in.DivisionID != dept.DivisionID {
		if err = svc.activeDivision(ctx, in.DivisionID); err != nil {
			return Department{}, err
		}
		dept.DivisionID = in.DivisionID
	}
	if in.Code != "" && in.Code != dept.Code {
		if err = svc.checkCode(ctx, svc.depts.CodeExists, in.Code, dept.ID, "department"); err != nil {
			return Department{}, err
		}
	}
	in.Apply(&dept.Code, &dept.Name, &dept.Description, &dept.IsActive)
	dept.UpdatedAt = nowFunc().UTC()
	dept.UpdatedBy = actor
	return svc.depts.Update(ctx, dept)
}

func (svc *Service) DeleteDepartment(ctx context.Context, id string) error {
	if _, err := svc.GetDepartment(ctx, id); err != nil {
		return err
	}
	n, err := svc.mappings.CountByDepartment(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("department is mapped to %d application(s); remove the mappings first", n)
	}
	return mapNotFound(svc.depts.Delete(ctx, id), ErrDepartmentNotFound)
}

// Hierarchy returns the BU -> Division -> Department tree.
// With activeOnly, inactive records (and everything below them) are left out.
func (svc *Service) Hierarchy(ctx context.Context, activeOnly bool) ([]BusinessUnitNode, error) {
	var filter core.MasterDataFilter
	if activeOnly {
		active := true
		filter.IsActive = &active
	}
	filter.Ordering = "name"

	bus, err := svc.bus.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	divs, err := svc.divs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	depts, err := svc.depts.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	deptsByDiv := make(map[string][]DepartmentNode)
	for _, d := range depts {
		deptsByDiv[d.DivisionID] = append(deptsByDiv[d.DivisionID], DepartmentNode{
			ID: d.ID, Code: d.Code, Name: d.Name, IsActive: d.IsActive,
		})
	}
	divsByBU := make(map[string][]DivisionNode)
	for _, d := range divs {
		children := deptsByDiv[d.ID]
		if children == nil {
			children = make([]DepartmentNode, 0)
		}
		divsByBU[d.BusinessUnitID] = append(divsByBU[d.BusinessUnitID], DivisionNode{
			ID: d.ID, Code: d.Code, Name: d.Name, IsActive: d.IsActive, Departments: children,
		})
	}

	tree := make([]BusinessUnitNode, 0, len(bus))
	for _, bu := range bus {
		children := divsByBU[bu.ID]
		if children == nil {
			children = make([]DivisionNode, 0)
		}
		tree = append(tree, BusinessUnitNode{
			ID: bu.ID, Code: bu.Code, Name: bu.Name, IsActive: bu.IsActive, Divisions: children,
		})
	}
	return tree, nil
}
