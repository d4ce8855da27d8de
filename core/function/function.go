package function

import (
	"context"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	ErrNotFound = core.NewNotFoundError("function not found")

	nowFunc = time.Now // mockable
)

type Function struct {
	ID          string    `db:"FunctionId" json:"id"`
	Code        string    `db:"Code" json:"code"`
	Name        string    `db:"Name" json:"name"`
	Description string    `db:"Description" json:"description"`
	IsActive    bool      `db:"IsActive" json:"is_active"`
	CreatedAt   time.Time `db:"CreatedAt" json:"created_at"` // UTC
	CreatedBy   string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt   time.Time `db:"UpdatedAt" json:"updated_at"` // UTC
	UpdatedBy   string    `db:"UpdatedBy" json:"updated_by"`
}

type NewFunction struct {
	core.MasterDataInput
}

type UpdateFunction struct {
	core.MasterDataUpdate
}

type (
	// MappingCounter counts the function-application mappings of a function.
	MappingCounter interface {
		CountByFunction(ctx context.Context, functionID string) (int, error)
	}

	Service struct {
		store    core.MasterDataStore[Function]
		mappings MappingCounter
	}
)

func NewService(store core.MasterDataStore[Function], mappings MappingCounter) *Service {
	return &Service{store: store, mappings: mappings}
}

func (svc *Service) checkCode(ctx context.Context, code, excludeID string) error {
	exists, err := svc.store.CodeExists(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return core.NewConflictError("a function with code %s already exists", code)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, in NewFunction, actor string) (Function, error) {
	in.Clean()
	if err := core.Validate.Struct(in); err != nil {
		return Function{}, err
	}
	if err := svc.checkCode(ctx, in.Code, ""); err != nil {
		return Function{}, err
	}
	now := nowFunc().UTC()
	return svc.store.Create(ctx, Function{
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

func (svc *Service) Get(ctx context.Context, id string) (Function, error) {
	fn, err := svc.store.Get(ctx, id)
	if core.IsNotFound(err) {
		return fn, ErrNotFound
	}
	return fn, err
}

func (svc *Service) List(ctx context.Context, filter core.MasterDataFilter) ([]Function, error) {
	filter.Clean()
	filter.ParentID = ""
	return svc.store.List(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, in UpdateFunction, actor string) (Function, error) {
	in.Clean()
	if err := core.Validate.Struct(in); err != nil {
		return Function{}, err
	}
	fn, err := svc.Get(ctx, id)
	if err != nil {
		return Function{}, err
	}
	if in.Code != "" && in.Code != fn.Code {
		if err = svc.checkCode(ctx, in.Code, fn.ID); err != nil {
			return Function{}, err
		}
	}
	in.Apply(&fn.Code, &fn.Name, &fn.Description, &fn.IsActive)
	fn.UpdatedAt = nowFunc().UTC()
	fn.UpdatedBy = actor
	return svc.store.Update(ctx, fn)
}

// Delete removes a function that is not mapped to any application.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	n, err := svc.mappings.CountByFunction(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("function is mapped to %d application(s); remove the mappings first", n)
	}
	err = svc.store.Delete(ctx, id)
	if core.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
