package application

import (
	"context"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	ErrNotFound = core.NewNotFoundError("application not found")

	nowFunc = time.Now // mockable
)

type Application struct {
	ID          string    `db:"ApplicationId" json:"id"`
	Code        string    `db:"Code" json:"code"`
	Name        string    `db:"Name" json:"name"`
	Description string    `db:"Description" json:"description"`
	IsActive    bool      `db:"IsActive" json:"is_active"`
	CreatedAt   time.Time `db:"CreatedAt" json:"created_at"` // UTC
	CreatedBy   string    `db:"CreatedBy" json:"created_by"`
	UpdatedAt   time.Time `db:"UpdatedAt" json:"updated_at"` // UTC
	UpdatedBy   string    `db:"UpdatedBy" json:"updated_by"`
}

type NewApplication struct {
	core.MasterDataInput
}

type UpdateApplication struct {
	core.MasterDataUpdate
}

type (
	// DependencyCounter counts the records referencing an application.
	DependencyCounter interface {
		// CountByApplication counts both function and department mappings.
		CountByApplication(ctx context.Context, applicationID string) (int, error)
	}

	// ResponseCounter counts survey responses given for an application.
	ResponseCounter interface {
		CountResponsesByApplication(ctx context.Context, applicationID string) (int, error)
	}

	Service struct {
		store     core.MasterDataStore[Application]
		mappings  DependencyCounter
		responses ResponseCounter
	}
)

func NewService(store core.MasterDataStore[Application], mappings DependencyCounter, responses ResponseCounter) *Service {
	return &Service{store: store, mappings: mappings, responses: responses}
}

func (svc *Service) checkCode(ctx context.Context, code, excludeID string) error {
	exists, err := svc.store.CodeExists(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return core.NewConflictError("an application with code %s already exists", code)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, in NewApplication, actor string) (Application, error) {
	in.Clean()
	if err := core.Validate.Struct(in); err != nil {
		return Application{}, err
	}
	if err := svc.checkCode(ctx, in.Code, ""); err != nil {
		return Application{}, err
	}
	now := nowFunc().UTC()
	return svc.store.Create(ctx, Application{
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

func (svc *Service) Get(ctx context.Context, id string) (Application, error) {
	app, err := svc.store.Get(ctx, id)
	if core.IsNotFound(err) {
		return app, ErrNotFound
	}
	return app, err
}

func (svc *Service) List(ctx context.Context, filter core.MasterDataFilter) ([]Application, error) {
	filter.Clean()
	filter.ParentID = ""
	return svc.store.List(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, in UpdateApplication, actor string) (Application, error) {
	in.Clean()
	if err := core.Validate.Struct(in); err != nil {
		return Application{}, err
	}
	app, err := svc.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if in.Code != "" && in.Code != app.Code {
		if err = svc.checkCode(ctx, in.Code, app.ID); err != nil {
			return Application{}, err
		}
	}
	in.Apply(&app.Code, &app.Name, &app.Description, &app.IsActive)
	app.UpdatedAt = nowFunc().UTC()
	app.UpdatedBy = actor
	return svc.store.Update(ctx, app)
}

// Delete removes an application that has no mappings and no survey responses.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	n, err := svc.mappings.CountByApplication(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("application has %d mapping(s); remove them first", n)
	}
	if n, err = svc.responses.CountResponsesByApplication(ctx, id); err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflictError("application is referenced by %d survey response(s); deactivate it instead", n)
	}
	err = svc.store.Delete(ctx, id)
	if core.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
