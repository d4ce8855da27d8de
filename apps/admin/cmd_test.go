package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/core/schedule"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

type fakeUsers struct {
	created  []user.NewUser
	users    map[string]user.User
	password map[string]string
}

func (f *fakeUsers) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	if _, ok := f.users[nu.Username]; ok {
		return user.User{}, core.NewConflictError("username %s is taken", nu.Username)
	}
	f.created = append(f.created, nu)
	return user.User{ID: "new-id", Username: nu.Username, Role: nu.Role}, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, uname string) (user.User, error) {
	if usr, ok := f.users[uname]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) SetPassword(_ context.Context, id, pwd, pwdConfirm string) error {
	if pwd != pwdConfirm {
		return errors.New("mismatch")
	}
	f.password[id] = pwd
	return nil
}

type fakeSAP struct{ err error }

func (f fakeSAP) Sync(context.Context, string) (sapsync.Result, error) {
	if f.err != nil {
		return sapsync.Result{}, f.err
	}
	return sapsync.Result{
		Status:        sapsync.StatusCompleted,
		BusinessUnits: sapsync.LevelResult{Added: 2},
		Departments:   sapsync.LevelResult{Updated: 1, Errors: []string{"DEPT-X: unknown division"}},
	}, nil
}

type fakeOps struct{}

func (fakeOps) Tick(context.Context) (schedule.TickResult, error) {
	return schedule.TickResult{Processed: 3, Failed: 1, SessionsExpired: 4}, nil
}

type migration struct {
	command string
	args    []string
}

func setup(t *testing.T) (*commandLine, *fakeUsers, *[]migration, *bytes.Buffer) {
	t.Helper()
	users := &fakeUsers{
		users:    map[string]user.User{"awe": {ID: "awe-id", Username: "awe"}},
		password: make(map[string]string),
	}
	var migrations []migration
	out := new(bytes.Buffer)
	cli := &commandLine{
		migrate: func(_ context.Context, command string, args ...string) error {
			migrations = append(migrations, migration{command: command, args: args})
			return nil
		},
		users: users,
		sap:   fakeSAP{},
		ops:   fakeOps{},
		out:   out,
	}
	return cli, users, &migrations, out
}

func mockPasswords(t *testing.T, pwds ...string) {
	t.Helper()
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	i := 0
	readPasswordFunc = func(int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, nil
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwds    []string
	wantErr error
}

func run(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.pwds...)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, _, out := setup(t)
	run(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, migrations, _ := setup(t)
	run(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "status", args: []string{"migrate", "status"}},
	})
	assert.Equal(t, []migration{
		{command: "up", args: []string{}},
		{command: "up-to", args: []string{"2"}},
		{command: "status", args: []string{}},
	}, *migrations)
}

func Test_migrator(t *testing.T) {
	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })

	var got []string
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		got = append([]string{command}, args...)
		return nil
	}
	require.NoError(t, migrator(nil)(context.Background(), "down-to", "1"))
	assert.Equal(t, []string{"down-to", "1"}, got)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, users, _, out := setup(t)
	run(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "bob"}, wantErr: errHelp},
		{name: "passwords differ", args: []string{"adduser", "-username", "bob"}, pwds: []string{"one", "two"}, wantErr: errPasswordMismatch},
		{
			name: "local user", args: []string{"adduser", "-username", "bob", "-name", "Bob", "-email", "bob@example.com", "-role", user.RoleAdminEvent},
			pwds: []string{"S3cret!pass", "S3cret!pass"},
		},
		{name: "ldap user", args: []string{"adduser", "-username", "carol", "-ldap"}},
	})

	require.Len(t, users.created, 2)
	bob := users.created[0]
	assert.Equal(t, "Bob", bob.DisplayName)
	assert.Equal(t, user.RoleAdminEvent, bob.Role)
	assert.Equal(t, "S3cret!pass", bob.Password)
	assert.Equal(t, bob.Password, bob.PasswordConfirm)

	carol := users.created[1]
	assert.True(t, carol.UseLDAP)
	assert.Empty(t, carol.Password)
	assert.Equal(t, "carol", carol.DisplayName)
	assert.Equal(t, user.RoleSuperAdmin, carol.Role)

	assert.Contains(t, out.String(), `created AdminEvent user "bob"`)

	err := cli.run([]string{"admin", "adduser", "-username", "awe", "-ldap"})
	assert.True(t, core.IsConflict(err))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, users, _, _ := setup(t)
	run(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwds: []string{"pwd", "pwd"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", "awe"}, pwds: []string{"N3w!pass", "N3w!pass"}},
	})
	assert.Equal(t, "N3w!pass", users.password["awe-id"])
}

func Test_commandLine_sapSync(t *testing.T) {
	cli, _, _, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "sapsync"}))
	assert.Contains(t, out.String(), "added 2")
	assert.Contains(t, out.String(), "DEPT-X: unknown division")

	boom := errors.New("SAP unreachable")
	cli.sap = fakeSAP{err: boom}
	assert.Equal(t, boom, cli.run([]string{"admin", "sapsync"}))
}

func Test_commandLine_runOps(t *testing.T) {
	cli, _, _, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "runops"}))
	assert.Contains(t, out.String(), "operations processed 3, failed 1; sessions expired 4")
}
