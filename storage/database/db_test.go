package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{AppName: "CSI Portal"}
	conf.Database = core.DatabaseConfig{
		Host: "db.local", Port: 1433, Name: "csi", User: "sa", Password: "p@ss:word", Encrypt: "disable",
	}

	u, err := url.Parse(DSN(conf))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db.local:1433", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	pwd, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pwd)
	assert.Equal(t, "csi", u.Query().Get("database"))
	assert.Equal(t, "disable", u.Query().Get("encrypt"))
	assert.Equal(t, "CSI Portal", u.Query().Get("app name"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 4)
}
