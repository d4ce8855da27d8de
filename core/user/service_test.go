package user

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

type memRepo struct {
	users map[string]User
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo { return &memRepo{users: make(map[string]User)} }

func (r *memRepo) Create(_ context.Context, usr User, _ ...core.DBExecutor) (User, error) {
	usr.ID = uuid.NewString()
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *memRepo) Get(_ context.Context, id string, _ ...core.DBExecutor) (User, error) {
	if usr, ok := r.users[id]; ok {
		return usr, nil
	}
	return User{}, core.ErrNotFound
}

func (r *memRepo) GetByUsername(_ context.Context, username string, _ ...core.DBExecutor) (User, error) {
	for _, usr := range r.users {
		if usr.Username == username {
			return usr, nil
		}
	}
	return User{}, core.ErrNotFound
}

func (r *memRepo) UsernameExists(_ context.Context, username, excludeID string) (bool, error) {
	for id, usr := range r.users {
		if id != excludeID && strings.EqualFold(usr.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) List(_ context.Context, filter QueryFilter) ([]User, error) {
	out := make([]User, 0)
	for _, usr := range r.users {
		if filter.Search != "" && !strings.Contains(usr.Username, strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, usr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memRepo) Update(_ context.Context, usr User, _ ...core.DBExecutor) (User, error) {
	if _, ok := r.users[usr.ID]; !ok {
		return User{}, core.ErrNotFound
	}
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *memRepo) UpdateLastLogin(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	usr := r.users[id]
	usr.LastLogin = &at
	r.users[id] = usr
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memRepo) Recipients(_ context.Context, audience Audience) ([]User, error) {
	out := make([]User, 0)
	for _, usr := range r.users {
		if !usr.IsActive {
			continue
		}
		if len(audience.Roles) > 0 && !usr.HasRole(audience.Roles...) {
			continue
		}
		out = append(out, usr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// fieldErrors returns the validation failures of err keyed by field.
func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "not a validation error: %v", err)
	fields := make(map[string]string)
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(core.Translator)
	}
	return fields
}

func TestNewUser_passwordPolicy(t *testing.T) {
	base := NewUser{Username: "jdoe", DisplayName: "John Doe", Email: "john.doe@example.com", Role: RoleITLead}

	tests := []struct {
		name    string
		pwd     string
		ldap    bool
		wantErr string
	}{
		{name: "missing", wantErr: pwdRequiredText},
		{name: "ldap needs none", ldap: true},
		{name: "too short", pwd: "Ab1!", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Abcd 1234!", wantErr: pwdNoSpaceText},
		{name: "all numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "not complex", pwd: "abcdefgh1", wantErr: pwdComplexityText},
		{name: "similar to the name", pwd: "JohnDoe!23", wantErr: pwdAttrSimText},
		{name: "valid", pwd: "Tr0ub4dor&3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := base
			nu.UseLDAP = tt.ldap
			nu.Password, nu.PasswordConfirm = tt.pwd, tt.pwd
			err := core.Validate.Struct(nu)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(t, err)["password"])
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	usr, err := svc.Create(ctx, NewUser{
		Username:        " JDoe ",
		DisplayName:     "John Doe",
		Email:           "John.Doe@Example.com",
		Role:            RoleDepartmentHead,
		Password:        "Tr0ub4dor&3",
		PasswordConfirm: "Tr0ub4dor&3",
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", usr.Username)
	assert.Equal(t, "john.doe@example.com", usr.Email)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Tr0ub4dor&3"))

	_, err = svc.Create(ctx, NewUser{Username: "jdoe", DisplayName: "Other", Role: RoleITLead, UseLDAP: true})
	assert.Equal(t, ErrUsernameExists, err)

	_, err = svc.Create(ctx, NewUser{Username: "bad user", DisplayName: "Bad", Role: "Janitor", UseLDAP: true})
	fields := fieldErrors(t, err)
	assert.Equal(t, usernameText, fields["username"])
	assert.Equal(t, roleText, fields["role"])

	_, err = svc.Create(ctx, NewUser{
		Username: "mismatch", DisplayName: "Mismatch", Role: RoleITLead,
		Password: "Tr0ub4dor&3", PasswordConfirm: "Tr0ub4dor&4",
	})
	assert.Contains(t, fieldErrors(t, err), "password_confirm")

	ldapUser, err := svc.Create(ctx, NewUser{Username: "ldap.user", DisplayName: "Directory User", Role: RoleSuperAdmin, UseLDAP: true})
	require.NoError(t, err)
	assert.Empty(t, ldapUser.PasswordHash)
	assert.True(t, ldapUser.IsAdmin())
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	usr, err := svc.Create(ctx, NewUser{Username: "jdoe", DisplayName: "John Doe", Role: RoleITLead, UseLDAP: true})
	require.NoError(t, err)

	inactive := false
	email := " JD@Example.com "
	dept := " dept-1 "
	upd, err := svc.Update(ctx, usr.ID, UpdateUser{Role: RoleAdminEvent, IsActive: &inactive, Email: &email, DepartmentID: &dept})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", upd.DisplayName, "empty display name keeps the current one")
	assert.Equal(t, RoleAdminEvent, upd.Role)
	assert.Equal(t, "jd@example.com", upd.Email)
	assert.False(t, upd.IsActive)
	require.NotNil(t, upd.DepartmentID)
	assert.Equal(t, "dept-1", *upd.DepartmentID)

	_, err = svc.Update(ctx, usr.ID, UpdateUser{Role: "Janitor"})
	assert.True(t, core.IsValidationError(err))

	_, err = svc.Update(ctx, "nope", UpdateUser{})
	assert.Equal(t, ErrNotFound, err)

	t.Run("set password", func(t *testing.T) {
		err := svc.SetPassword(ctx, usr.ID, "short", "short")
		assert.Equal(t, pwdMinLenText, fieldErrors(t, err)["password"])

		err = svc.SetPassword(ctx, usr.ID, "Tr0ub4dor&3", "")
		assert.Contains(t, fieldErrors(t, err), "password_confirm")

		require.NoError(t, svc.SetPassword(ctx, usr.ID, "Tr0ub4dor&3", "Tr0ub4dor&3"))
		stored, err := svc.Get(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword("Tr0ub4dor&3"))
	})

	require.NoError(t, svc.Delete(ctx, usr.ID))
	assert.Equal(t, ErrNotFound, svc.Delete(ctx, usr.ID))
	_, err = svc.GetByUsername(ctx, "JDOE")
	assert.Equal(t, ErrNotFound, err)
}

func TestService_Recipients(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	for _, u := range []User{
		{Username: "a", Email: "a@example.com", Role: RoleITLead, IsActive: true},
		{Username: "b", Email: "A@Example.com", Role: RoleITLead, IsActive: true},
		{Username: "c", Role: RoleITLead, IsActive: true},
		{Username: "d", Email: "d@example.com", Role: RoleDepartmentHead, IsActive: true},
		{Username: "e", Email: "e@example.com", Role: RoleITLead},
	} {
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}
	svc := NewService(repo)

	users, err := svc.Recipients(ctx, Audience{Roles: []string{RoleITLead}})
	require.NoError(t, err)
	require.Len(t, users, 1, "duplicate addresses and users without email are skipped")
	assert.Equal(t, "a", users[0].Username)

	users, err = svc.Recipients(ctx, Audience{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestRolePriority(t *testing.T) {
	assert.Greater(t, RolePriority(RoleSuperAdmin), RolePriority(RoleAdminEvent))
	assert.Greater(t, RolePriority(RoleITLead), RolePriority(RoleDepartmentHead))
	assert.Zero(t, RolePriority("Janitor"))

	usr := User{Role: RoleDepartmentHead}
	assert.False(t, usr.IsAdmin())
	assert.True(t, usr.HasRole(RoleITLead, RoleDepartmentHead))
}
