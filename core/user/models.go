package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// Roles
const (
	RoleSuperAdmin     = "SuperAdmin"
	RoleAdminEvent     = "AdminEvent"
	RoleITLead         = "ITLead"
	RoleDepartmentHead = "DepartmentHead"
)

var (
	AllRoles   = []string{RoleSuperAdmin, RoleAdminEvent, RoleITLead, RoleDepartmentHead}
	AdminRoles = []string{RoleSuperAdmin, RoleAdminEvent}

	rolePriorities = map[string]int{
		RoleSuperAdmin:     40,
		RoleAdminEvent:     30,
		RoleITLead:         20,
		RoleDepartmentHead: 10,
	}

	Roles = []Role{
		{Name: "Super Admin", Value: RoleSuperAdmin},
		{Name: "Admin Event", Value: RoleAdminEvent},
		{Name: "IT Lead", Value: RoleITLead},
		{Name: "Department Head", Value: RoleDepartmentHead},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID             string     `db:"UserId" json:"id"`
	Username       string     `db:"Username" json:"username"`
	DisplayName    string     `db:"DisplayName" json:"display_name"`
	Email          string     `db:"Email" json:"email"`
	Role           string     `db:"Role" json:"role"`
	UseLDAP        bool       `db:"UseLDAP" json:"use_ldap"`
	PasswordHash   []byte     `db:"PasswordHash" json:"-"`
	IsActive       bool       `db:"IsActive" json:"is_active"`
	BusinessUnitID *string    `db:"BusinessUnitId" json:"business_unit_id"`
	DivisionID     *string    `db:"DivisionId" json:"division_id"`
	DepartmentID   *string    `db:"DepartmentId" json:"department_id"`
	LastLogin      *time.Time `db:"LastLogin" json:"last_login"` // UTC
	CreatedAt      time.Time  `db:"CreatedAt" json:"created_at"` // UTC
	UpdatedAt      time.Time  `db:"UpdatedAt" json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasRole reports whether the user holds one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(AdminRoles...)
}

// NewUser contains information needed to create a new User.
// Password is only required for local (non-LDAP) accounts.
type NewUser struct {
	Username        string  `json:"username" validate:"required,min=3,max=100,username"`
	DisplayName     string  `json:"display_name" validate:"required,max=200"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            string  `json:"role" validate:"required,role"`
	UseLDAP         bool    `json:"use_ldap"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm" validate:"eqfield=Password"`
	BusinessUnitID  *string `json:"business_unit_id"`
	DivisionID      *string `json:"division_id"`
	DepartmentID    *string `json:"department_id"`
}

func (nu *NewUser) Validate(ctx context.Context, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.DisplayName = core.CleanString(nu.DisplayName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.BusinessUnitID = cleanRef(nu.BusinessUnitID)
	nu.DivisionID = cleanRef(nu.DivisionID)
	nu.DepartmentID = cleanRef(nu.DepartmentID)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	DisplayName     string  `json:"display_name" validate:"max=200"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Role            string  `json:"role" validate:"omitempty,role"`
	UseLDAP         *bool   `json:"use_ldap"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	BusinessUnitID  *string `json:"business_unit_id"`
	DivisionID      *string `json:"division_id"`
	DepartmentID    *string `json:"department_id"`

	// set from the record being updated; used by the password policy
	username string
}

func (uu *UpdateUser) Validate(orig User) error {
	uu.DisplayName = core.CleanString(uu.DisplayName)
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}
	uu.username = orig.Username
	if uu.DisplayName == "" {
		uu.DisplayName = orig.DisplayName
	}
	return core.Validate.Struct(uu)
}

// Audience selects active users with an email address.
// Empty slices do not restrict; non-empty ones are combined with AND.
type Audience struct {
	BusinessUnitIDs []string `json:"business_unit_ids"`
	DivisionIDs     []string `json:"division_ids"`
	DepartmentIDs   []string `json:"department_ids"`
	Roles           []string `json:"roles"`
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
	Ordering string   `query:"ordering"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func cleanRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := core.CleanString(*id)
	if v == "" {
		return nil
	}
	return &v
}
