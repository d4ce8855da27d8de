package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
	logsvc "github.com/ademscil/Event-Management-BE-sub001/services/logger"
	inmemdb "github.com/ademscil/Event-Management-BE-sub001/storage/database/inmem"
)

type userStore map[string]user.User

func (db userStore) Get(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	if usr, ok := db[id]; ok {
		return usr, nil
	}
	return user.User{}, core.ErrNotFound
}

func (db userStore) GetByUsername(_ context.Context, username string, _ ...core.DBExecutor) (user.User, error) {
	for _, usr := range db {
		if usr.Username == username {
			return usr, nil
		}
	}
	return user.User{}, core.ErrNotFound
}

func (db userStore) UpdateLastLogin(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	usr := db[id]
	usr.LastLogin = &at
	db[id] = usr
	return nil
}

type sessionStore map[string]Session

func (db sessionStore) Create(_ context.Context, s Session, _ ...core.DBExecutor) (Session, error) {
	db[s.ID] = s
	return s, nil
}

func (db sessionStore) Get(_ context.Context, id string, _ ...core.DBExecutor) (Session, error) {
	if s, ok := db[id]; ok {
		return s, nil
	}
	return Session{}, core.ErrNotFound
}

func (db sessionStore) Touch(_ context.Context, id string, lastActivity, expiresAt time.Time, _ ...core.DBExecutor) error {
	s, ok := db[id]
	if !ok {
		return core.ErrNotFound
	}
	s.LastActivity, s.ExpiresAt = lastActivity, expiresAt
	db[id] = s
	return nil
}

func (db sessionStore) UpdateToken(_ context.Context, id, tokenHash string, lastActivity, expiresAt time.Time, _ ...core.DBExecutor) error {
	s, ok := db[id]
	if !ok {
		return core.ErrNotFound
	}
	s.TokenHash, s.LastActivity, s.ExpiresAt = tokenHash, lastActivity, expiresAt
	db[id] = s
	return nil
}

func (db sessionStore) Deactivate(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	s, ok := db[id]
	if !ok {
		return core.ErrNotFound
	}
	s.IsActive, s.EndedAt = false, &at
	db[id] = s
	return nil
}

func (db sessionStore) DeactivateByUser(_ context.Context, userID string, at time.Time, _ ...core.DBExecutor) (int, error) {
	n := 0
	for id, s := range db {
		if s.UserID == userID && s.IsActive {
			s.IsActive, s.EndedAt = false, &at
			db[id] = s
			n++
		}
	}
	return n, nil
}

func (db sessionStore) DeactivateExpired(_ context.Context, now, createdBefore time.Time) (int, error) {
	n := 0
	for id, s := range db {
		if s.IsActive && (now.After(s.ExpiresAt) || s.CreatedAt.Before(createdBefore)) {
			s.IsActive, s.EndedAt = false, &now
			db[id] = s
			n++
		}
	}
	return n, nil
}

type directory map[string]string // username: password

func (d directory) Authenticate(_ context.Context, username, password string) (DirectoryUser, error) {
	if pwd, ok := d[username]; ok && pwd == password {
		return DirectoryUser{DN: "cn=" + username, DisplayName: username}, nil
	}
	return DirectoryUser{}, ErrInvalidCredentials
}

type loginMetrics struct {
	core.NopMetrics
	outcomes []string
}

func (m *loginMetrics) Login(result string) { m.outcomes = append(m.outcomes, result) }

type fixture struct {
	svc      *Service
	users    userStore
	sessions sessionStore
	metrics  *loginMetrics
}

func setup(t *testing.T) fixture {
	t.Helper()
	mkUser := func(id, uname string, ldap, active bool) user.User {
		usr := user.User{ID: id, Username: uname, Role: user.RoleAdminEvent, UseLDAP: ldap, IsActive: active}
		if !ldap {
			require.NoError(t, usr.SetPassword("Passw0rd!"))
		}
		return usr
	}
	f := fixture{
		users: userStore{
			"u1": mkUser("u1", "alice", false, true),
			"u2": mkUser("u2", "bob", true, true),
			"u3": mkUser("u3", "carol", false, false),
		},
		sessions: sessionStore{},
		metrics:  &loginMetrics{},
	}
	f.svc = NewService(Deps{
		Conf:      core.NewTestConfig(),
		Users:     f.users,
		Sessions:  f.sessions,
		Directory: directory{"bob": "ldap-secret"},
		Tx:        inmemdb.Tx{},
		Logger:    logsvc.NewDiscardLogger(),
		Metrics:   f.metrics,
	})
	return f
}

func mockNow(t *testing.T, now time.Time) *time.Time {
	t.Helper()
	orig := nowFunc
	t.Cleanup(func() { nowFunc = orig })
	current := now
	nowFunc = func() time.Time { return current }
	return &current
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{name: "unknown user", creds: Credentials{Username: "nobody", Password: "x"}, wantErr: ErrInvalidCredentials},
		{name: "bad password", creds: Credentials{Username: "alice", Password: "wrong"}, wantErr: ErrInvalidCredentials},
		{name: "inactive user", creds: Credentials{Username: "carol", Password: "Passw0rd!"}, wantErr: ErrInactiveUser},
		{name: "ldap rejects", creds: Credentials{Username: "bob", Password: "Passw0rd!"}, wantErr: ErrInvalidCredentials},
		{name: "ldap user", creds: Credentials{Username: "bob", Password: "ldap-secret"}},
		{name: "local user, username is case-insensitive", creds: Credentials{Username: " ALICE ", Password: "Passw0rd!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Login(ctx, tt.creds, "10.0.0.1", "go-test")
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.NotNil(t, res.User.LastLogin)

			claims, err := f.svc.ValidateSession(ctx, res.Token)
			require.NoError(t, err)
			assert.Equal(t, res.User.ID, claims.UserID())
			assert.Equal(t, user.RoleAdminEvent, claims.Role)

			sess := f.sessions[claims.SessionID]
			assert.Equal(t, "10.0.0.1", sess.IPAddress)
			assert.Equal(t, hashToken(res.Token), sess.TokenHash)
			assert.NotEqual(t, res.Token, sess.TokenHash)
		})
	}

	_, err := f.svc.Login(ctx, Credentials{}, "", "")
	assert.True(t, core.IsValidationError(err))

	assert.Equal(t, []string{
		"invalid_credentials", "invalid_credentials", "inactive", "invalid_credentials",
		"success", "success", "invalid_request",
	}, f.metrics.outcomes)
}

func TestService_singleSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	creds := Credentials{Username: "alice", Password: "Passw0rd!"}

	first, err := f.svc.Login(ctx, creds, "", "")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, creds, "", "")
	require.NoError(t, err)

	_, err = f.svc.ValidateSession(ctx, first.Token)
	assert.Equal(t, ErrSessionEnded, err)
	_, err = f.svc.ValidateSession(ctx, second.Token)
	assert.NoError(t, err)

	active := 0
	for _, s := range f.sessions {
		if s.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestService_sessionExpiry(t *testing.T) {
	ctx := context.Background()
	start := time.Now().UTC()
	now := mockNow(t, start)
	f := setup(t)

	res, err := f.svc.Login(ctx, Credentials{Username: "alice", Password: "Passw0rd!"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*time.Minute), res.ExpiresAt)

	// activity slides the idle expiry
	for i := 0; i < 3; i++ {
		*now = now.Add(20 * time.Minute)
		_, err = f.svc.ValidateSession(ctx, res.Token)
		require.NoError(t, err)
	}

	// idle for too long
	*now = now.Add(31 * time.Minute)
	_, err = f.svc.ValidateSession(ctx, res.Token)
	assert.Equal(t, ErrSessionExpired, err)
	for _, s := range f.sessions {
		assert.False(t, s.IsActive, "expired sessions are deactivated")
	}

	t.Run("hard cap", func(t *testing.T) {
		*now = start
		res, err := f.svc.Login(ctx, Credentials{Username: "alice", Password: "Passw0rd!"}, "", "")
		require.NoError(t, err)
		for elapsed := time.Duration(0); elapsed <= 8*time.Hour-20*time.Minute; elapsed += 20 * time.Minute {
			*now = start.Add(elapsed)
			_, err = f.svc.ValidateSession(ctx, res.Token)
			require.NoError(t, err, elapsed.String())
		}
		claims, err := f.svc.parseToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, start.Add(8*time.Hour), f.sessions[claims.SessionID].ExpiresAt, "sliding stops at the cap")

		*now = start.Add(8*time.Hour + time.Minute)
		_, err = f.svc.ValidateSession(ctx, res.Token)
		assert.Equal(t, ErrSessionExpired, err)
	})
}

func TestService_RefreshLogout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.Login(ctx, Credentials{Username: "alice", Password: "Passw0rd!"}, "", "")
	require.NoError(t, err)
	claims, err := f.svc.ValidateSession(ctx, res.Token)
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, res.Token)
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, refreshed.Token)
	assert.Equal(t, "alice", refreshed.User.Username)

	_, err = f.svc.ValidateSession(ctx, res.Token)
	assert.Equal(t, ErrInvalidToken, err, "the previous token no longer matches the session")
	newClaims, err := f.svc.ValidateSession(ctx, refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, claims.SessionID, newClaims.SessionID)

	me, err := f.svc.Me(ctx, newClaims)
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)

	require.NoError(t, f.svc.Logout(ctx, newClaims.SessionID))
	_, err = f.svc.ValidateSession(ctx, refreshed.Token)
	assert.Equal(t, ErrSessionEnded, err)
	_, err = f.svc.Refresh(ctx, refreshed.Token)
	assert.Equal(t, ErrSessionEnded, err)

	assert.Equal(t, ErrSessionNotFound, f.svc.Logout(ctx, "nope"))
}

func TestService_tokens(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := f.svc.ValidateSession(ctx, token)
		assert.Equal(t, ErrInvalidToken, err, token)
	}

	res, err := f.svc.Login(ctx, Credentials{Username: "alice", Password: "Passw0rd!"}, "", "")
	require.NoError(t, err)

	other := NewService(Deps{Conf: &core.Config{SecretKey: "other"}, Sessions: f.sessions, Users: f.users})
	_, err = other.ValidateSession(ctx, res.Token)
	assert.Equal(t, ErrInvalidToken, err, "tokens signed with another key are rejected")
}

func TestService_cleanup(t *testing.T) {
	ctx := context.Background()
	start := time.Now().UTC()
	now := mockNow(t, start)
	f := setup(t)

	_, err := f.svc.Login(ctx, Credentials{Username: "alice", Password: "Passw0rd!"}, "", "")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, Credentials{Username: "bob", Password: "ldap-secret"}, "", "")
	require.NoError(t, err)

	n, err := f.svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	*now = start.Add(time.Hour)
	n, err = f.svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.svc.EndUserSessions(ctx, "u1"))
}
