package orgunit

import (
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	ErrBusinessUnitNotFound = core.NewNotFoundError("business unit not found")
	ErrDivisionNotFound     = core.NewNotFoundError("division not found")
	ErrDepartmentNotFound   = core.NewNotFoundError("department not found")
)

type BusinessUnit struct {
	ID          string    `db:"BusinessUnitId" json:"id"`
	Code        string    `db:"Code" json:"code"`
	Name        string    `db:"Name" json:"name"`
	Description string    `db:"Description" json:"description"`
	IsActive    bool      `db:"IsActive" json:"is_active"`
	CreatedAt   time.Time `db:"CreatedAt" json:"created_at"` // UTC
	CreatedBy   string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt   time.Time `db:"UpdatedAt" json:"updated_at"` // UTC
	UpdatedBy   string    `db:"UpdatedBy" json:"updated_by"`
}

type Division struct {
	ID             string    `db:"DivisionId" json:"id"`
	BusinessUnitID string    `db:"BusinessUnitId" json:"business_unit_id"`
	Code           string    `db:"Code" json:"code"`
	Name           string    `db:"Name" json:"name"`
	Description    string    `db:"Description" json:"description"`
	IsActive       bool      `db:"IsActive" json:"is_active"`
	CreatedAt      time.Time `db:"CreatedAt" json:"created_at"`
	CreatedBy      string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt      time.Time `db:"UpdatedAt" json:"updated_at"`
	UpdatedBy      string    `db:"UpdatedBy" json:"updated_by"`
}

type Department struct {
	ID          string    `db:"DepartmentId" json:"id"`
	DivisionID  string    `db:"DivisionId" json:"division_id"`
	Code        string    `db:"Code" json:"code"`
	Name        string    `db:"Name" json:"name"`
	Description string    `db:"Description" json:"description"`
	IsActive    bool      `db:"IsActive" json:"is_active"`
	CreatedAt   time.Time `db:"CreatedAt" json:"created_at"`
	CreatedBy   string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt   time.Time `db:"UpdatedAt" json:"updated_at"`
	UpdatedBy   string    `db:"UpdatedBy" json:"updated_by"`
}

type NewBusinessUnit struct {
	core.MasterDataInput
}

func (in *NewBusinessUnit) Validate() error {
	in.Clean()
	return core.Validate.Struct(in)
}

type UpdateBusinessUnit struct {
	core.MasterDataUpdate
}

func (in *UpdateBusinessUnit) Validate() error {
	in.Clean()
	return core.Validate.Struct(in)
}

type NewDivision struct {
	core.MasterDataInput
	BusinessUnitID string `json:"business_unit_id" validate:"required"`
}

func (in *NewDivision) Validate() error {
	in.Clean()
	in.BusinessUnitID = core.CleanString(in.BusinessUnitID)
	return core.Validate.Struct(in)
}

type UpdateDivision struct {
	core.MasterDataUpdate
	BusinessUnitID string `json:"business_unit_id"`
}

func (in *UpdateDivision) Validate() error {
	in.Clean()
	in.BusinessUnitID = core.CleanString(in.BusinessUnitID)
	return core.Validate.Struct(in)
}

type NewDepartment struct {
	core.MasterDataInput
	DivisionID string `json:"division_id" validate:"required"`
}

func (in *NewDepartment) Validate() error {
	in.Clean()
	in.DivisionID = core.CleanString(in.DivisionID)
	return core.Validate.Struct(in)
}

type UpdateDepartment struct {
	core.MasterDataUpdate
	DivisionID string `json:"division_id"`
}

func (in *UpdateDepartment) Validate() error {
	in.Clean()
	in.DivisionID = core.CleanString(in.DivisionID)
	return core.Validate.Struct(in)
}

// Tree nodes of the BU -> Division -> Department hierarchy.
type (
	DepartmentNode struct {
		ID       string `json:"id"`
		Code     string `json:"code"`
		Name     string `json:"name"`
		IsActive bool   `json:"is_active"`
	}

	DivisionNode struct {
		ID          string           `json:"id"`
		Code        string           `json:"code"`
		Name        string           `json:"name"`
		IsActive    bool             `json:"is_active"`
		Departments []DepartmentNode `json:"departments"`
	}

	BusinessUnitNode struct {
		ID        string         `json:"id"`
		Code      string         `json:"code"`
		Name      string         `json:"name"`
		IsActive  bool           `json:"is_active"`
		Divisions []DivisionNode `json:"divisions"`
	}
)

// HierarchyRow is one department with its ancestors, as returned by joined queries.
type HierarchyRow struct {
	BusinessUnitID   string `db:"BusinessUnitId"`
	BusinessUnitCode string `db:"BusinessUnitCode"`
	BusinessUnitName string `db:"BusinessUnitName"`
	DivisionID       string `db:"DivisionId"`
	DivisionCode     string `db:"DivisionCode"`
	DivisionName     string `db:"DivisionName"`
	DepartmentID     string `db:"DepartmentId"`
	DepartmentCode   string `db:"DepartmentCode"`
	DepartmentName   string `db:"DepartmentName"`
}

// BuildTree groups rows by business unit then division, keeping the order rows first appear in.
func BuildTree(rows []HierarchyRow) []BusinessUnitNode {
	tree := make([]BusinessUnitNode, 0)
	buIdx := make(map[string]int)
	divIdx := make(map[string]int)

	for _, row := range rows {
		bi, ok := buIdx[row.BusinessUnitID]
		if !ok {
			tree = append(tree, BusinessUnitNode{
				ID: row.BusinessUnitID, Code: row.BusinessUnitCode, Name: row.BusinessUnitName, IsActive: true,
				Divisions: make([]DivisionNode, 0),
			})
			bi = len(tree) - 1
			buIdx[row.BusinessUnitID] = bi
		}
		bu := &tree[bi]

		di, ok := divIdx[row.DivisionID]
		if !ok {
			bu.Divisions = append(bu.Divisions, DivisionNode{
				ID: row.DivisionID, Code: row.DivisionCode, Name: row.DivisionName, IsActive: true,
				Departments: make([]DepartmentNode, 0),
			})
			di = len(bu.Divisions) - 1
			divIdx[row.DivisionID] = di
		}
		div := &bu.Divisions[di]
		div.Departments = append(div.Departments, DepartmentNode{
			ID: row.DepartmentID, Code: row.DepartmentCode, Name: row.DepartmentName, IsActive: true,
		})
	}
	return tree
}
