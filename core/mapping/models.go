package mapping

import (
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	ErrFunctionAppNotFound = core.NewNotFoundError("function-application mapping not found")
	ErrAppDeptNotFound     = core.NewNotFoundError("application-department mapping not found")
)

type FunctionApplication struct {
	ID            string    `db:"MappingId" json:"id"`
	FunctionID    string    `db:"FunctionId" json:"function_id"`
	ApplicationID string    `db:"ApplicationId" json:"application_id"`
	CreatedAt     time.Time `db:"CreatedAt" json:"created_at"`
	CreatedBy     string    `db:"CreatedBy" json:"created_by"`
}

// FunctionApplicationView is a mapping joined with both ends.
type FunctionApplicationView struct {
	FunctionApplication
	FunctionCode    string `db:"FunctionCode" json:"function_code"`
	FunctionName    string `db:"FunctionName" json:"function_name"`
	ApplicationCode string `db:"ApplicationCode" json:"application_code"`
	ApplicationName string `db:"ApplicationName" json:"application_name"`
}

type ApplicationDepartment struct {
	ID            string    `db:"MappingId" json:"id"`
	ApplicationID string    `db:"ApplicationId" json:"application_id"`
	DepartmentID  string    `db:"DepartmentId" json:"department_id"`
	CreatedAt     time.Time `db:"CreatedAt" json:"created_at"`
	CreatedBy     string    `db:"CreatedBy" json:"created_by"`
}

// ApplicationDepartmentView is a mapping joined with the application and the department's ancestors.
type ApplicationDepartmentView struct {
	ApplicationDepartment
	ApplicationCode  string `db:"ApplicationCode" json:"application_code"`
	ApplicationName  string `db:"ApplicationName" json:"application_name"`
	DepartmentCode   string `db:"DepartmentCode" json:"department_code"`
	DepartmentName   string `db:"DepartmentName" json:"department_name"`
	DivisionID       string `db:"DivisionId" json:"division_id"`
	DivisionCode     string `db:"DivisionCode" json:"division_code"`
	DivisionName     string `db:"DivisionName" json:"division_name"`
	BusinessUnitID   string `db:"BusinessUnitId" json:"business_unit_id"`
	BusinessUnitCode string `db:"BusinessUnitCode" json:"business_unit_code"`
	BusinessUnitName string `db:"BusinessUnitName" json:"business_unit_name"`
}

// Ref is a short reference to a mapped record.
type Ref struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// FunctionNode is a function with the applications mapped to it.
type FunctionNode struct {
	Ref
	Applications []Ref `json:"applications"`
}

type Filter struct {
	FunctionID    string `query:"function_id"`
	ApplicationID string `query:"application_id"`
	DepartmentID  string `query:"department_id"`
	Search        string `query:"search"` // matches codes and names of either end
}

func (f *Filter) Clean() {
	f.FunctionID = core.CleanString(f.FunctionID)
	f.ApplicationID = core.CleanString(f.ApplicationID)
	f.DepartmentID = core.CleanString(f.DepartmentID)
	f.Search = core.CleanString(f.Search)
}

type NewFunctionApp struct {
	FunctionID    string `json:"function_id" validate:"required"`
	ApplicationID string `json:"application_id" validate:"required"`
}

type NewAppDept struct {
	ApplicationID string `json:"application_id" validate:"required"`
	DepartmentID  string `json:"department_id" validate:"required"`
}

// BulkSet replaces the whole set of IDs mapped to one record.
type BulkSet struct {
	IDs []string `json:"ids" validate:"dive,required"`
}
