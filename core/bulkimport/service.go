package bulkimport

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	columnWidth  = 24
	headerColour = "#DDEBF7"
)

var nowFunc = time.Now // mockable

type (
	Deps struct {
		Org          orgunit.Stores
		Functions    core.MasterDataStore[function.Function]
		Applications core.MasterDataStore[application.Application]
		Mappings     mapping.Repository
		Tx           core.Transactor
		Logger       core.Logger
		Metrics      core.Metrics
	}

	// Service imports and exports master data and mappings as xlsx workbooks.
	Service struct {
		org          orgunit.Stores
		functions    core.MasterDataStore[function.Function]
		applications core.MasterDataStore[application.Application]
		mappings     mapping.Repository
		tx           core.Transactor
		logger       core.Logger
		metrics      core.Metrics
	}
)

func NewService(deps Deps) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		org:          deps.Org,
		functions:    deps.Functions,
		applications: deps.Applications,
		mappings:     deps.Mappings,
		tx:           deps.Tx,
		logger:       deps.Logger,
		metrics:      metrics,
	}
}

// Filename is the download name of a template or an export.
func Filename(entity, kind string) string {
	return fmt.Sprintf("%s-%s%s", entity, kind, xlsxExt)
}

// Template returns a workbook with the header row of entity and an example row.
func (svc *Service) Template(entity string) ([]byte, error) {
	imp, err := svc.importerFor(entity)
	if err != nil {
		return nil, err
	}
	return writeWorkbook(entity, imp.columns(), [][]string{imp.example()})
}

// Export returns the current rows of entity as a workbook.
func (svc *Service) Export(ctx context.Context, entity string) ([]byte, error) {
	imp, err := svc.importerFor(entity)
	if err != nil {
		return nil, err
	}
	header, rows, err := imp.export(ctx)
	if err != nil {
		return nil, err
	}
	return writeWorkbook(entity, header, rows)
}

// Import reads the first sheet of an xlsx workbook and upserts its rows in one transaction.
// When any row is invalid, nothing is written and the row errors are returned in the result.
func (svc *Service) Import(ctx context.Context, entity string, r io.Reader, filename, actor string) (Result, error) {
	res := Result{Entity: entity, Errors: make([]RowError, 0)}
	imp, err := svc.importerFor(entity)
	if err != nil {
		return res, err
	}
	if !strings.EqualFold(filepath.Ext(filename), xlsxExt) {
		return res, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "only .xlsx files are supported"})
	}

	rows, headerErrs, err := readSheet(r, imp.columns())
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)
	if len(headerErrs) > 0 {
		res.Errors = headerErrs
		svc.metrics.Import(entity, res.Rows, false)
		return res, nil
	}
	if len(rows) == 0 {
		return res, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the sheet has no data rows"})
	}

	errs := rowErrors(res.Errors)
	if err = imp.check(ctx, rows, &errs); err != nil {
		return res, err
	}
	if len(errs) > 0 {
		res.Errors = errs
		svc.metrics.Import(entity, res.Rows, false)
		return res, nil
	}

	now := nowFunc().UTC()
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		return imp.write(ctx, exec, actor, now, &res)
	})
	if err != nil {
		svc.metrics.Import(entity, res.Rows, false)
		return Result{Entity: entity, Rows: res.Rows, Errors: make([]RowError, 0)}, err
	}
	svc.metrics.Import(entity, res.Rows, true)
	svc.logger.Info(fmt.Sprintf("imported %s: %d created, %d updated, %d unchanged", entity, res.Created, res.Updated, res.Skipped))
	return res, nil
}

// readSheet parses the first sheet; the first row is the header.
func readSheet(r io.Reader, columns []string) ([]row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, core.NewValidationError(err, core.FieldError{Field: "file", Error: "the file is not a valid xlsx workbook"})
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the workbook has no sheet"})
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.Wrap(err, "excelize.GetRows")
	}
	if len(raw) == 0 {
		return nil, nil, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the sheet is empty"})
	}

	known := make(map[string]string, len(columns))
	for _, col := range columns {
		known[normalizeHeader(col)] = col
	}
	index := make(map[int]string)
	found := make(map[string]bool)
	for i, h := range raw[0] {
		if col, ok := known[normalizeHeader(h)]; ok && !found[col] {
			index[i] = col
			found[col] = true
		}
	}
	var headerErrs []RowError
	for _, col := range columns {
		if !found[col] && col != colDescription && col != colIsActive {
			headerErrs = append(headerErrs, RowError{Row: 1, Field: col, Message: "missing column"})
		}
	}
	if len(headerErrs) > 0 {
		return nil, headerErrs, nil
	}

	rows := make([]row, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		rw := row{num: i + 2, cells: make(map[string]string, len(index))}
		blank := true
		for j, v := range cells {
			col, ok := index[j]
			if !ok {
				continue
			}
			rw.cells[col] = v
			if strings.TrimSpace(v) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, rw)
		}
	}
	return rows, nil, nil
}

func writeWorkbook(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, errors.Wrap(err, "excelize.SetSheetName")
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "excelize.SetSheetRow")
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerColour}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "excelize.NewStyle")
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, errors.Wrap(err, "excelize.ColumnNumberToName")
	}
	if err = f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return nil, errors.Wrap(err, "excelize.SetCellStyle")
	}
	if err = f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
		return nil, errors.Wrap(err, "excelize.SetColWidth")
	}

	for i, cells := range rows {
		cells := cells
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, errors.Wrap(err, "excelize.CoordinatesToCellName")
		}
		if err = f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, errors.Wrap(err, "excelize.SetSheetRow")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "excelize.WriteToBuffer")
	}
	return buf.Bytes(), nil
}
