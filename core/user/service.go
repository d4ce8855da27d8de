package user

import (
	"context"
	"time"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

var (
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrUsernameExists = core.NewConflictError("a user with this username already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		Create(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		UsernameExists(ctx context.Context, username, excludeID string) (bool, error)
		// List applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Username, DisplayName or Email.
		List(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		Delete(ctx context.Context, id string) error
		// Recipients returns the active users with an email address matching the audience.
		Recipients(ctx context.Context, audience Audience) ([]User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, username string) error {
	exists, err := svc.repo.UsernameExists(ctx, username, "")
	if err != nil {
		return err
	}
	if exists {
		return ErrUsernameExists
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(ctx, svc); err != nil {
		return User{}, err
	}
	now := nowFunc().UTC()
	usr := User{
		Username:       nu.Username,
		DisplayName:    nu.DisplayName,
		Email:          nu.Email,
		Role:           nu.Role,
		UseLDAP:        nu.UseLDAP,
		IsActive:       true,
		BusinessUnitID: nu.BusinessUnitID,
		DivisionID:     nu.DivisionID,
		DepartmentID:   nu.DepartmentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.Create(ctx, usr)
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.Get(ctx, id)
	if core.IsNotFound(err) {
		return usr, ErrNotFound
	}
	return usr, err
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	usr, err := svc.repo.GetByUsername(ctx, core.CleanString(uname, true /* lower */))
	if core.IsNotFound(err) {
		return usr, ErrNotFound
	}
	return usr, err
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.List(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = uu.Validate(usr); err != nil {
		return User{}, err
	}

	usr.DisplayName = uu.DisplayName
	if uu.Email != nil {
		usr.Email = *uu.Email
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.UseLDAP != nil {
		usr.UseLDAP = *uu.UseLDAP
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.BusinessUnitID != nil {
		usr.BusinessUnitID = cleanRef(uu.BusinessUnitID)
	}
	if uu.DivisionID != nil {
		usr.DivisionID = cleanRef(uu.DivisionID)
	}
	if uu.DepartmentID != nil {
		usr.DepartmentID = cleanRef(uu.DepartmentID)
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.Update(ctx, usr)
}

// SetPassword replaces the password of a local account, applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, id, pwd, pwdConfirm string) error {
	_, err := svc.Update(ctx, id, UpdateUser{Password: pwd, PasswordConfirm: pwdConfirm})
	return err
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	err := svc.repo.Delete(ctx, id)
	if core.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// Recipients returns the active users matching audience, skipping duplicate addresses.
func (svc *Service) Recipients(ctx context.Context, audience Audience) ([]User, error) {
	users, err := svc.repo.Recipients(ctx, audience)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(users))
	out := make([]User, 0, len(users))
	for _, u := range users {
		email := core.CleanString(u.Email, true /* lower */)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, u)
	}
	return out, nil
}
