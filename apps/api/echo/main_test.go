package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
	logsvc "github.com/ademscil/Event-Management-BE-sub001/services/logger"
	inmemdb "github.com/ademscil/Event-Management-BE-sub001/storage/database/inmem"
)

const testPassword = "Passw0rd!"

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	token    string
	wantCode int
	wantBody string // substring of the response body
}

// users is an in-memory user.Repository.
type users struct {
	mu    sync.Mutex
	items map[string]user.User
}

func (db *users) Get(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if usr, ok := db.items[id]; ok {
		return usr, nil
	}
	return user.User{}, core.ErrNotFound
}

func (db *users) GetByUsername(_ context.Context, username string, _ ...core.DBExecutor) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, usr := range db.items {
		if strings.EqualFold(usr.Username, username) {
			return usr, nil
		}
	}
	return user.User{}, core.ErrNotFound
}

func (db *users) UpdateLastLogin(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	usr := db.items[id]
	usr.LastLogin = &at
	db.items[id] = usr
	return nil
}

func (db *users) Create(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.items[usr.ID] = usr
	return usr, nil
}

func (db *users) UsernameExists(_ context.Context, username, excludeID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, usr := range db.items {
		if id != excludeID && strings.EqualFold(usr.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (db *users) List(context.Context, user.QueryFilter) ([]user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	res := make([]user.User, 0, len(db.items))
	for _, usr := range db.items {
		res = append(res, usr)
	}
	return res, nil
}

func (db *users) Update(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.items[usr.ID]; !ok {
		return user.User{}, core.ErrNotFound
	}
	db.items[usr.ID] = usr
	return usr, nil
}

func (db *users) Delete(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(db.items, id)
	return nil
}

func (db *users) Recipients(context.Context, user.Audience) ([]user.User, error) {
	return nil, nil
}

// sessions is an in-memory auth.SessionRepository.
type sessions struct {
	mu    sync.Mutex
	items map[string]auth.Session
}

func (db *sessions) Create(_ context.Context, s auth.Session, _ ...core.DBExecutor) (auth.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.items[s.ID] = s
	return s, nil
}

func (db *sessions) Get(_ context.Context, id string, _ ...core.DBExecutor) (auth.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.items[id]; ok {
		return s, nil
	}
	return auth.Session{}, core.ErrNotFound
}

func (db *sessions) modify(id string, fn func(s *auth.Session)) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.items[id]
	if !ok || !s.IsActive {
		return core.ErrNotFound
	}
	fn(&s)
	db.items[id] = s
	return nil
}

func (db *sessions) Touch(_ context.Context, id string, lastActivity, expiresAt time.Time, _ ...core.DBExecutor) error {
	return db.modify(id, func(s *auth.Session) {
		s.LastActivity, s.ExpiresAt = lastActivity, expiresAt
	})
}

func (db *sessions) UpdateToken(_ context.Context, id, tokenHash string, lastActivity, expiresAt time.Time, _ ...core.DBExecutor) error {
	return db.modify(id, func(s *auth.Session) {
		s.TokenHash, s.LastActivity, s.ExpiresAt = tokenHash, lastActivity, expiresAt
	})
}

func (db *sessions) Deactivate(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	return db.modify(id, func(s *auth.Session) {
		s.IsActive, s.EndedAt = false, &at
	})
}

func (db *sessions) DeactivateByUser(_ context.Context, userID string, at time.Time, _ ...core.DBExecutor) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for id, s := range db.items {
		if s.UserID == userID && s.IsActive {
			s.IsActive, s.EndedAt = false, &at
			db.items[id] = s
			n++
		}
	}
	return n, nil
}

func (db *sessions) DeactivateExpired(_ context.Context, now, createdBefore time.Time) (int, error) {
	return 0, nil
}

type noMappings struct{}

func (noMappings) CountByDepartment(context.Context, string) (int, error) {
	return 0, nil
}

func (noMappings) CountByFunction(context.Context, string) (int, error) {
	return 0, nil
}

func (noMappings) CountByApplication(context.Context, string) (int, error) {
	return 0, nil
}

func (noMappings) CountResponsesByApplication(context.Context, string) (int, error) {
	return 0, nil
}

type testApp struct {
	server *Server
	users  *users
}

func newTestApp(t *testing.T, health ...func(context.Context) error) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	usrs := &users{items: make(map[string]user.User)}

	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Users:    usrs,
		Sessions: &sessions{items: make(map[string]auth.Session)},
		Tx:       inmemdb.Tx{},
		Logger:   logger,
	})
	deps := ServerDeps{
		Conf:   conf,
		Logger: logger,
		Services: Services{
			Auth:         authSvc,
			Users:        user.NewService(usrs),
			OrgUnits:     orgunit.NewService(inmemdb.NewOrgUnitStores(), noMappings{}),
			Functions:    function.NewService(inmemdb.NewFunctionStore(), noMappings{}),
			Applications: application.NewService(inmemdb.NewApplicationStore(), noMappings{}, noMappings{}),
		},
		DisableReqLogs: true,
	}
	if len(health) > 0 {
		deps.Health = health[0]
	}
	return &testApp{server: NewServer(deps), users: usrs}
}

func (app *testApp) createUser(t *testing.T, username, role string, active bool) user.User {
	t.Helper()
	usr := user.User{
		ID:          username + "-id",
		Username:    username,
		DisplayName: strings.ToUpper(username),
		Email:       username + "@example.com",
		Role:        role,
		IsActive:    active,
	}
	require.NoError(t, usr.SetPassword(testPassword))
	app.users.mu.Lock()
	app.users.items[usr.ID] = usr
	app.users.mu.Unlock()
	return usr
}

func (app *testApp) login(t *testing.T, username string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + testPassword + `"}`
	rec := app.do(http.MethodPost, "/api/v1/auth/login", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res auth.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (app *testApp) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
