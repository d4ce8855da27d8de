package bulkimport

import (
	"fmt"
	"strings"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// Entities
const (
	EntityBusinessUnits          = "businessunits"
	EntityDivisions              = "divisions"
	EntityDepartments            = "departments"
	EntityFunctions              = "functions"
	EntityApplications           = "applications"
	EntityFunctionApplications   = "function-applications"
	EntityApplicationDepartments = "application-departments"
)

// Column names, as written in templates and exports.
const (
	colCode             = "Code"
	colName             = "Name"
	colDescription      = "Description"
	colIsActive         = "IsActive"
	colBusinessUnitCode = "BusinessUnitCode"
	colDivisionCode     = "DivisionCode"
	colDepartmentCode   = "DepartmentCode"
	colFunctionCode     = "FunctionCode"
	colApplicationCode  = "ApplicationCode"
)

const (
	nameMinLen        = 3
	nameMaxLen        = 200
	descriptionMaxLen = 500
	xlsxExt           = ".xlsx"
)

var (
	Entities = []string{
		EntityBusinessUnits, EntityDivisions, EntityDepartments, EntityFunctions, EntityApplications,
		EntityFunctionApplications, EntityApplicationDepartments,
	}

	ErrUnknownEntity = core.NewNotFoundError(fmt.Sprintf("unknown entity; expected one of %s", strings.Join(Entities, ", ")))
)

// RowError locates a problem in an imported sheet. Row is the 1-based spreadsheet row.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result sums up an import. Nothing is written when Errors is not empty.
type Result struct {
	Entity  string     `json:"entity"`
	Rows    int        `json:"rows"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

// row is one data row of a sheet, keyed by canonical column name.
type row struct {
	num   int
	cells map[string]string
}

func (r row) get(col string) string {
	return strings.TrimSpace(r.cells[col])
}

type rowErrors []RowError

func (errs *rowErrors) add(num int, field, format string, args ...interface{}) {
	*errs = append(*errs, RowError{Row: num, Field: field, Message: fmt.Sprintf(format, args...)})
}

// normalizeHeader makes header matching case-insensitive and tolerant of spaces and underscores.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// parseBool reads an IsActive cell; a blank cell gives nil.
func parseBool(s string) (*bool, bool) {
	var b bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, true
	case "1", "true", "yes", "y", "active":
		b = true
	case "0", "false", "no", "n", "inactive":
		b = false
	default:
		return nil, false
	}
	return &b, true
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
