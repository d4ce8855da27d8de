package sapsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
)

var (
	ErrDisabled       = core.NewConflictError("SAP synchronisation is disabled")
	ErrAlreadyRunning = core.NewConflictError("a SAP synchronisation is already running")

	nowFunc = time.Now // mockable
)

// names follow the same bounds as the master-data forms
const (
	minNameLen = 3
	maxNameLen = 200
)

type (
	Deps struct {
		Source  Source // nil when SAP is disabled
		Stores  orgunit.Stores
		Logs    LogRepository
		Tx      core.Transactor
		Logger  core.Logger
		Metrics core.Metrics
	}

	// Service reconciles business units, divisions and departments with SAP, which is the master.
	Service struct {
		source  Source
		stores  orgunit.Stores
		logs    LogRepository
		tx      core.Transactor
		logger  core.Logger
		metrics core.Metrics

		running sync.Mutex
	}
)

func NewService(deps Deps) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		source:  deps.Source,
		stores:  deps.Stores,
		logs:    deps.Logs,
		tx:      deps.Tx,
		logger:  deps.Logger,
		metrics: metrics,
	}
}

// Sync runs business units, then divisions, then departments, each level in its own transaction.
// Records missing upstream are deactivated; children with an unknown parent are reported and skipped.
func (svc *Service) Sync(ctx context.Context, triggeredBy string) (Result, error) {
	if svc.source == nil {
		return Result{}, ErrDisabled
	}
	if !svc.running.TryLock() {
		return Result{}, ErrAlreadyRunning
	}
	defer svc.running.Unlock()

	log, err := svc.logs.Create(ctx, Log{TriggeredBy: triggeredBy, Status: StatusRunning, StartedAt: nowFunc().UTC()})
	if err != nil {
		return Result{}, err
	}
	res := Result{LogID: log.ID}

	err = svc.run(ctx, triggeredBy, &res)
	if err != nil {
		res.Status = StatusFailed
	} else if _, _, _, errs := res.totals(); len(errs) > 0 {
		res.Status = StatusCompletedWithErrors
	} else {
		res.Status = StatusCompleted
	}

	if ferr := svc.finish(ctx, log, res, err); ferr != nil {
		svc.logger.Error("saving SAP sync log", ferr)
	}
	svc.metrics.SAPSync(res.Status)
	if err != nil {
		svc.logger.Error("SAP sync failed", err)
		return res, err
	}
	added, updated, deactivated, errs := res.totals()
	svc.logger.Info(fmt.Sprintf("SAP sync %s: %d added, %d updated, %d deactivated, %d error(s)",
		strings.ToLower(res.Status), added, updated, deactivated, len(errs)))
	return res, nil
}

func (svc *Service) run(ctx context.Context, actor string, res *Result) error {
	buRecords, err := svc.source.FetchBusinessUnits(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching business units")
	}
	divRecords, err := svc.source.FetchDivisions(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching divisions")
	}
	deptRecords, err := svc.source.FetchDepartments(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching departments")
	}

	now := nowFunc().UTC()
	var buIDs, divIDs map[string]string

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res.BusinessUnits, buIDs, err = businessUnitLevel(svc.stores.BusinessUnits).sync(ctx, exec, buRecords, nil, actor, now)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "syncing business units")
	}

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res.Divisions, divIDs, err = divisionLevel(svc.stores.Divisions).sync(ctx, exec, divRecords, buIDs, actor, now)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "syncing divisions")
	}

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		res.Departments, _, err = departmentLevel(svc.stores.Departments).sync(ctx, exec, deptRecords, divIDs, actor, now)
		return err
	})
	return errors.Wrap(err, "syncing departments")
}

func (svc *Service) finish(ctx context.Context, log Log, res Result, runErr error) error {
	added, updated, deactivated, errs := res.totals()
	if runErr != nil {
		errs = append(errs, runErr.Error())
	}
	details := strings.Join(errs, "\n")
	if len(details) > maxErrorDetails {
		details = details[:maxErrorDetails]
	}
	finished := nowFunc().UTC()
	log.Status = res.Status
	log.Added, log.Updated, log.Deactivated = added, updated, deactivated
	log.Errors = len(errs)
	log.ErrorDetails = details
	log.FinishedAt = &finished
	return svc.logs.Finish(ctx, log)
}

// History returns the latest runs, newest first.
func (svc *Service) History(ctx context.Context, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return svc.logs.List(ctx, limit)
}

// unit is the part of an organisational record that SAP drives.
type unit struct {
	ID       string
	Code     string
	Name     string
	ParentID string
	IsActive bool
}

// level adapts one record type to the reconciliation loop.
type level[T any] struct {
	entity string
	store  core.MasterDataStore[T]
	view   func(T) unit
	set    func(item *T, name, parentID string, active bool, actor string, now time.Time)
	create func(code, name, parentID, actor string, now time.Time) T
}

// sync reconciles records with the store. parents maps parent codes to ids; nil for the top level.
// It returns the ids of the synced records by code.
func (l level[T]) sync(ctx context.Context, exec core.DBExecutor, records []Record, parents map[string]string, actor string, now time.Time) (LevelResult, map[string]string, error) {
	res := LevelResult{Errors: make([]string, 0)}
	ids := make(map[string]string, len(records))

	existing, err := l.store.List(ctx, core.MasterDataFilter{}, exec)
	if err != nil {
		return res, nil, err
	}
	byCode := make(map[string]T, len(existing))
	for _, item := range existing {
		byCode[l.view(item).Code] = item
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		code := core.CleanCode(rec.Code)
		name := core.CleanString(rec.Name)
		if err := core.Validate.Var(code, "required,code"); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %q: invalid code", l.entity, rec.Code))
			continue
		}
		if seen[code] {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: duplicate code", l.entity, code))
			continue
		}
		seen[code] = true
		if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: name must be %d to %d characters", l.entity, code, minNameLen, maxNameLen))
			continue
		}

		var parentID string
		if parents != nil {
			parentCode := core.CleanCode(rec.ParentCode)
			pid, ok := parents[parentCode]
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("%s %s: unknown parent %q", l.entity, code, parentCode))
				continue
			}
			parentID = pid
		}

		item, ok := byCode[code]
		if !ok {
			created, err := l.store.Create(ctx, l.create(code, name, parentID, actor, now), exec)
			if err != nil {
				return res, nil, errors.Wrapf(err, "creating %s %s", l.entity, code)
			}
			ids[code] = l.view(created).ID
			res.Added++
			continue
		}

		u := l.view(item)
		ids[code] = u.ID
		if u.Name == name && u.ParentID == parentID && u.IsActive {
			continue
		}
		l.set(&item, name, parentID, true, actor, now)
		if _, err = l.store.Update(ctx, item, exec); err != nil {
			return res, nil, errors.Wrapf(err, "updating %s %s", l.entity, code)
		}
		res.Updated++
	}

	for code, item := range byCode {
		u := l.view(item)
		if seen[code] || !u.IsActive {
			continue
		}
		l.set(&item, u.Name, u.ParentID, false, actor, now)
		if _, err = l.store.Update(ctx, item, exec); err != nil {
			return res, nil, errors.Wrapf(err, "deactivating %s %s", l.entity, code)
		}
		res.Deactivated++
	}
	return res, ids, nil
}

func businessUnitLevel(store core.MasterDataStore[orgunit.BusinessUnit]) level[orgunit.BusinessUnit] {
	return level[orgunit.BusinessUnit]{
		entity: "business unit",
		store:  store,
		view: func(bu orgunit.BusinessUnit) unit {
			return unit{ID: bu.ID, Code: bu.Code, Name: bu.Name, IsActive: bu.IsActive}
		},
		set: func(bu *orgunit.BusinessUnit, name, _ string, active bool, actor string, now time.Time) {
			bu.Name, bu.IsActive, bu.UpdatedBy, bu.UpdatedAt = name, active, actor, now
		},
		create: func(code, name, _, actor string, now time.Time) orgunit.BusinessUnit {
			return orgunit.BusinessUnit{
				Code: code, Name: name, IsActive: true,
				CreatedAt: now, CreatedBy: actor, UpdatedAt: now, UpdatedBy: actor,
			}
		},
	}
}

func divisionLevel(store core.MasterDataStore[orgunit.Division]) level[orgunit.Division] {
	return level[orgunit.Division]{
		entity: "division",
		store:  store,
		view: func(d orgunit.Division) unit {
			return unit{ID: d.ID, Code: d.Code, Name: d.Name, ParentID: d.BusinessUnitID, IsActive: d.IsActive}
		},
		set: func(d *orgunit.Division, name, parentID string, active bool, actor string, now time.Time) {
			d.Name, d.BusinessUnitID, d.IsActive, d.UpdatedBy, d.UpdatedAt = name, parentID, active, actor, now
		},
		create: func(code, name, parentID, actor string, now time.Time) orgunit.Division {
			return orgunit.Division{
				BusinessUnitID: parentID, Code: code, Name: name, IsActive: true,
				CreatedAt: now, CreatedBy: actor, UpdatedAt: now, UpdatedBy: actor,
			}
		},
	}
}

func departmentLevel(store core.MasterDataStore[orgunit.Department]) level[orgunit.Department] {
	return level[orgunit.Department]{
		entity: "department",
		store:  store,
		view: func(d orgunit.Department) unit {
			return unit{ID: d.ID, Code: d.Code, Name: d.Name, ParentID: d.DivisionID, IsActive: d.IsActive}
		},
		set: func(d *orgunit.Department, name, parentID string, active bool, actor string, now time.Time) {
			d.Name, d.DivisionID, d.IsActive, d.UpdatedBy, d.UpdatedAt = name, parentID, active, actor, now
		},
		create: func(code, name, parentID, actor string, now time.Time) orgunit.Department {
			return orgunit.Department{
				DivisionID: parentID, Code: code, Name: name, IsActive: true,
				CreatedAt: now, CreatedBy: actor, UpdatedAt: now, UpdatedBy: actor,
			}
		},
	}
}
