package core

import (
	"context"
)

// MasterDataInput holds the fields shared by every master-data record (business units, divisions,
// departments, functions and applications).
type MasterDataInput struct {
	Code        string `json:"code" validate:"required,code"`
	Name        string `json:"name" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=500"`
}

func (in *MasterDataInput) Clean() {
	in.Code = CleanCode(in.Code)
	in.Name = CleanString(in.Name)
	in.Description = CleanString(in.Description)
}

// MasterDataUpdate is a partial update: empty strings keep the current value.
type MasterDataUpdate struct {
	Code        string  `json:"code" validate:"omitempty,code"`
	Name        string  `json:"name" validate:"omitempty,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

func (in *MasterDataUpdate) Clean() {
	in.Code = CleanCode(in.Code)
	in.Name = CleanString(in.Name)
	if in.Description != nil {
		desc := CleanString(*in.Description)
		in.Description = &desc
	}
}

// MasterDataFilter narrows down master-data listings.
// ParentID is the business unit of divisions or the division of departments; ignored elsewhere.
type MasterDataFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
	ParentID string `query:"parent_id"`
	Ordering string `query:"ordering"`
}

func (f *MasterDataFilter) Clean() {
	f.Search = CleanString(f.Search)
	f.ParentID = CleanString(f.ParentID)
}

// MasterDataStore persists one kind of master-data record.
// Get and GetByCode return ErrNotFound when nothing matches; codes are compared case-insensitively.
type MasterDataStore[T any] interface {
	Create(ctx context.Context, item T, exec ...DBExecutor) (T, error)
	Get(ctx context.Context, id string, exec ...DBExecutor) (T, error)
	GetByCode(ctx context.Context, code string, exec ...DBExecutor) (T, error)
	List(ctx context.Context, filter MasterDataFilter, exec ...DBExecutor) ([]T, error)
	Count(ctx context.Context, filter MasterDataFilter, exec ...DBExecutor) (int, error)
	Update(ctx context.Context, item T, exec ...DBExecutor) (T, error)
	Delete(ctx context.Context, id string, exec ...DBExecutor) error
	// CodeExists reports whether another record (other than excludeID) already uses code.
	CodeExists(ctx context.Context, code, excludeID string, exec ...DBExecutor) (bool, error)
}

// Apply copies the provided values onto the given record fields.
func (in MasterDataUpdate) Apply(code, name, description *string, isActive *bool) {
	if in.Code != "" {
		*code = in.Code
	}
	if in.Name != "" {
		*name = in.Name
	}
	if in.Description != nil {
		*description = *in.Description
	}
	if in.IsActive != nil {
		*isActive = *in.IsActive
	}
}
