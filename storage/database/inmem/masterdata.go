package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
)

type fields[T any] struct {
	id     func(item *T) *string
	code   func(item T) string
	name   func(item T) string
	active func(item T) bool
	parent func(item T) string
}

// MasterData keeps master-data records in memory. It is meant for tests and local runs.
type MasterData[T any] struct {
	mutex sync.RWMutex
	table map[string]T
	f     fields[T]
}

func newMasterData[T any](f fields[T]) *MasterData[T] {
	if f.parent == nil {
		f.parent = func(T) string { return "" }
	}
	return &MasterData[T]{table: make(map[string]T), f: f}
}

func (db *MasterData[T]) Create(_ context.Context, item T, _ ...core.DBExecutor) (T, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	id := db.f.id(&item)
	if *id == "" {
		*id = uuid.NewString()
	}
	for _, other := range db.table {
		if strings.EqualFold(db.f.code(other), db.f.code(item)) {
			var zero T
			return zero, core.NewConflictError("code %s already exists", db.f.code(item))
		}
	}
	db.table[*id] = item
	return item, nil
}

func (db *MasterData[T]) Get(_ context.Context, id string, _ ...core.DBExecutor) (T, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if item, ok := db.table[id]; ok {
		return item, nil
	}
	var zero T
	return zero, core.ErrNotFound
}

func (db *MasterData[T]) GetByCode(_ context.Context, code string, _ ...core.DBExecutor) (T, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for _, item := range db.table {
		if strings.EqualFold(db.f.code(item), code) {
			return item, nil
		}
	}
	var zero T
	return zero, core.ErrNotFound
}

func (db *MasterData[T]) match(item T, filter core.MasterDataFilter) bool {
	if filter.Search != "" {
		term := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(db.f.code(item)), term) &&
			!strings.Contains(strings.ToLower(db.f.name(item)), term) {
			return false
		}
	}
	if filter.IsActive != nil && db.f.active(item) != *filter.IsActive {
		return false
	}
	if filter.ParentID != "" && db.f.parent(item) != "" && db.f.parent(item) != filter.ParentID {
		return false
	}
	return true
}

func (db *MasterData[T]) List(_ context.Context, filter core.MasterDataFilter, _ ...core.DBExecutor) ([]T, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	items := make([]T, 0, len(db.table))
	for _, item := range db.table {
		if db.match(item, filter) {
			items = append(items, item)
		}
	}
	key := db.f.name
	if strings.TrimPrefix(filter.Ordering, "-") == "code" {
		key = db.f.code
	}
	desc := strings.HasPrefix(filter.Ordering, "-")
	sort.Slice(items, func(i, j int) bool {
		if desc {
			return key(items[i]) > key(items[j])
		}
		return key(items[i]) < key(items[j])
	})
	return items, nil
}

func (db *MasterData[T]) Count(ctx context.Context, filter core.MasterDataFilter, exec ...core.DBExecutor) (int, error) {
	items, err := db.List(ctx, filter, exec...)
	return len(items), err
}

func (db *MasterData[T]) Update(_ context.Context, item T, _ ...core.DBExecutor) (T, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	id := *db.f.id(&item)
	if _, ok := db.table[id]; !ok {
		var zero T
		return zero, core.ErrNotFound
	}
	db.table[id] = item
	return item, nil
}

func (db *MasterData[T]) Delete(_ context.Context, id string, _ ...core.DBExecutor) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, ok := db.table[id]; !ok {
		return core.ErrNotFound
	}
	delete(db.table, id)
	return nil
}

func (db *MasterData[T]) CodeExists(_ context.Context, code, excludeID string, _ ...core.DBExecutor) (bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	for id, item := range db.table {
		if id != excludeID && strings.EqualFold(db.f.code(item), code) {
			return true, nil
		}
	}
	return false, nil
}

func NewBusinessUnitStore() *MasterData[orgunit.BusinessUnit] {
	return newMasterData(fields[orgunit.BusinessUnit]{
		id:     func(bu *orgunit.BusinessUnit) *string { return &bu.ID },
		code:   func(bu orgunit.BusinessUnit) string { return bu.Code },
		name:   func(bu orgunit.BusinessUnit) string { return bu.Name },
		active: func(bu orgunit.BusinessUnit) bool { return bu.IsActive },
	})
}

func NewDivisionStore() *MasterData[orgunit.Division] {
	return newMasterData(fields[orgunit.Division]{
		id:     func(d *orgunit.Division) *string { return &d.ID },
		code:   func(d orgunit.Division) string { return d.Code },
		name:   func(d orgunit.Division) string { return d.Name },
		active: func(d orgunit.Division) bool { return d.IsActive },
		parent: func(d orgunit.Division) string { return d.BusinessUnitID },
	})
}

func NewDepartmentStore() *MasterData[orgunit.Department] {
	return newMasterData(fields[orgunit.Department]{
		id:     func(d *orgunit.Department) *string { return &d.ID },
		code:   func(d orgunit.Department) string { return d.Code },
		name:   func(d orgunit.Department) string { return d.Name },
		active: func(d orgunit.Department) bool { return d.IsActive },
		parent: func(d orgunit.Department) string { return d.DivisionID },
	})
}

func NewFunctionStore() *MasterData[function.Function] {
	return newMasterData(fields[function.Function]{
		id:     func(fn *function.Function) *string { return &fn.ID },
		code:   func(fn function.Function) string { return fn.Code },
		name:   func(fn function.Function) string { return fn.Name },
		active: func(fn function.Function) bool { return fn.IsActive },
	})
}

func NewApplicationStore() *MasterData[application.Application] {
	return newMasterData(fields[application.Application]{
		id:     func(app *application.Application) *string { return &app.ID },
		code:   func(app application.Application) string { return app.Code },
		name:   func(app application.Application) string { return app.Name },
		active: func(app application.Application) bool { return app.IsActive },
	})
}

func NewOrgUnitStores() orgunit.Stores {
	return orgunit.Stores{
		BusinessUnits: NewBusinessUnitStore(),
		Divisions:     NewDivisionStore(),
		Departments:   NewDepartmentStore(),
	}
}

var _ core.MasterDataStore[orgunit.Department] = (*MasterData[orgunit.Department])(nil)
