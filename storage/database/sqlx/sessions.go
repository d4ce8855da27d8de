package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

type sessionRepository struct {
	base *database.BaseRepository[auth.Session]
}

var _ auth.SessionRepository = (*sessionRepository)(nil)

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{
		base: database.NewBaseRepository[auth.Session](exec, database.Table{
			Name: "Sessions",
			PK:   "SessionId",
			Columns: []string{
				"SessionId", "UserId", "TokenHash", "IPAddress", "UserAgent",
				"CreatedAt", "LastActivity", "ExpiresAt", "IsActive", "EndedAt",
			},
		}),
	}
}

func (repo *sessionRepository) Create(ctx context.Context, s auth.Session, exec ...core.DBExecutor) (auth.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := repo.base.Create(ctx, map[string]interface{}{
		"SessionId":    s.ID,
		"UserId":       s.UserID,
		"TokenHash":    s.TokenHash,
		"IPAddress":    s.IPAddress,
		"UserAgent":    s.UserAgent,
		"CreatedAt":    s.CreatedAt,
		"LastActivity": s.LastActivity,
		"ExpiresAt":    s.ExpiresAt,
		"IsActive":     s.IsActive,
	}, exec...)
	if err != nil {
		return auth.Session{}, mapDBError(err, "creating session")
	}
	return s, nil
}

func (repo *sessionRepository) Get(ctx context.Context, id string, exec ...core.DBExecutor) (auth.Session, error) {
	return repo.base.FindByID(ctx, id, exec...)
}

// update runs an UPDATE and returns the number of rows it touched.
func (repo *sessionRepository) update(ctx context.Context, svcExec []core.DBExecutor, q string, args ...interface{}) (int, error) {
	exe := repo.base.Exec(svcExec)
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading rows affected")
	}
	return int(n), nil
}

func (repo *sessionRepository) Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time, exec ...core.DBExecutor) error {
	n, err := repo.update(ctx, exec,
		"UPDATE Sessions SET LastActivity = ?, ExpiresAt = ? WHERE SessionId = ? AND IsActive = 1",
		lastActivity, expiresAt, id,
	)
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (repo *sessionRepository) UpdateToken(ctx context.Context, id, tokenHash string, lastActivity, expiresAt time.Time, exec ...core.DBExecutor) error {
	n, err := repo.update(ctx, exec,
		"UPDATE Sessions SET TokenHash = ?, LastActivity = ?, ExpiresAt = ? WHERE SessionId = ? AND IsActive = 1",
		tokenHash, lastActivity, expiresAt, id,
	)
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (repo *sessionRepository) Deactivate(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	n, err := repo.update(ctx, exec,
		"UPDATE Sessions SET IsActive = 0, EndedAt = COALESCE(EndedAt, ?) WHERE SessionId = ?",
		at, id,
	)
	if err == nil && n == 0 {
		return core.ErrNotFound
	}
	return err
}

func (repo *sessionRepository) DeactivateByUser(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error) {
	return repo.update(ctx, exec,
		"UPDATE Sessions SET IsActive = 0, EndedAt = ? WHERE UserId = ? AND IsActive = 1",
		at, userID,
	)
}

func (repo *sessionRepository) DeactivateExpired(ctx context.Context, now, createdBefore time.Time) (int, error) {
	return repo.update(ctx, nil,
		"UPDATE Sessions SET IsActive = 0, EndedAt = ? WHERE IsActive = 1 AND (ExpiresAt <= ? OR CreatedAt < ?)",
		now, now, createdBefore,
	)
}
