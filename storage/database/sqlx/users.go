package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

var userOrdering = map[string]string{
	"username":     "Username",
	"display_name": "DisplayName",
	"email":        "Email",
	"role":         "Role",
	"created_at":   "CreatedAt",
	"last_login":   "LastLogin",
}

type userRepository struct {
	base *database.BaseRepository[user.User]
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{
		base: database.NewBaseRepository[user.User](exec, database.Table{
			Name: "Users",
			PK:   "UserId",
			Columns: []string{
				"UserId", "Username", "DisplayName", "Email", "Role", "UseLDAP", "PasswordHash", "IsActive",
				"BusinessUnitId", "DivisionId", "DepartmentId", "LastLogin", "CreatedAt", "UpdatedAt",
			},
		}),
	}
}

func (repo *userRepository) values(usr user.User) map[string]interface{} {
	vals := map[string]interface{}{
		"Username":       usr.Username,
		"DisplayName":    usr.DisplayName,
		"Email":          usr.Email,
		"Role":           usr.Role,
		"UseLDAP":        usr.UseLDAP,
		"IsActive":       usr.IsActive,
		"BusinessUnitId": nullable(usr.BusinessUnitID),
		"DivisionId":     nullable(usr.DivisionID),
		"DepartmentId":   nullable(usr.DepartmentID),
		"UpdatedAt":      usr.UpdatedAt,
	}
	if usr.PasswordHash != nil {
		vals["PasswordHash"] = usr.PasswordHash
	}
	return vals
}

func (repo *userRepository) Create(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	vals := repo.values(usr)
	vals["UserId"] = usr.ID
	vals["CreatedAt"] = usr.CreatedAt
	if err := repo.base.Create(ctx, vals, exec...); err != nil {
		return user.User{}, mapDBError(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) Get(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	return repo.base.FindByID(ctx, id, exec...)
}

func (repo *userRepository) GetByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.base.FindOne(ctx, "LOWER(Username) = ?", []interface{}{strings.ToLower(username)}, exec...)
}

func (repo *userRepository) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	var w where
	w.add("LOWER(Username) = ?", strings.ToLower(username))
	if excludeID != "" {
		w.add("UserId <> ?", excludeID)
	}
	return repo.base.Exists(ctx, w.String(), w.args)
}

func (repo *userRepository) List(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var w where
	w.search(filter.Search, "Username", "DisplayName", "Email")
	if err := w.in("Role", filter.Roles); err != nil {
		return nil, err
	}
	if filter.IsActive != nil {
		w.add("IsActive = ?", *filter.IsActive)
	}
	return repo.base.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: ordering(filter.Ordering, userOrdering, core.DBOrdering{Field: "Username", Ascending: true}),
	})
}

func (repo *userRepository) Update(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if err := repo.base.Update(ctx, usr.ID, repo.values(usr), exec...); err != nil {
		return user.User{}, mapDBError(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	return repo.base.Update(ctx, id, map[string]interface{}{"LastLogin": at}, exec...)
}

func (repo *userRepository) Delete(ctx context.Context, id string) error {
	return mapDBError(repo.base.Delete(ctx, id), "deleting user")
}

func (repo *userRepository) Recipients(ctx context.Context, audience user.Audience) ([]user.User, error) {
	var w where
	w.add("IsActive = ?", true)
	w.add("Email <> ''")
	for _, f := range []struct {
		col    string
		values []string
	}{
		{"BusinessUnitId", audience.BusinessUnitIDs},
		{"DivisionId", audience.DivisionIDs},
		{"DepartmentId", audience.DepartmentIDs},
		{"Role", audience.Roles},
	} {
		if err := w.in(f.col, f.values); err != nil {
			return nil, err
		}
	}
	return repo.base.FindAll(ctx, database.Query{
		Where:   w.String(),
		Args:    w.args,
		OrderBy: []core.DBOrdering{{Field: "Email", Ascending: true}},
	})
}
