package sapsync_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	logsvc "github.com/ademscil/Event-Management-BE-sub001/services/logger"
	inmemdb "github.com/ademscil/Event-Management-BE-sub001/storage/database/inmem"
)

type source struct {
	bus, divs, depts []sapsync.Record
	err              error
	started, release chan struct{}
}

func (s *source) FetchBusinessUnits(context.Context) ([]sapsync.Record, error) {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.bus, s.err
}

func (s *source) FetchDivisions(context.Context) ([]sapsync.Record, error) {
	return s.divs, nil
}

func (s *source) FetchDepartments(context.Context) ([]sapsync.Record, error) {
	return s.depts, nil
}

type syncMetrics struct {
	core.NopMetrics
	statuses []string
}

func (m *syncMetrics) SAPSync(status string) { m.statuses = append(m.statuses, status) }

type fixture struct {
	svc     *sapsync.Service
	src     *source
	stores  orgunit.Stores
	logs    *inmemdb.SAPSyncLogs
	metrics *syncMetrics
}

func setup(src *source) *fixture {
	f := &fixture{
		src:     src,
		stores:  inmemdb.NewOrgUnitStores(),
		logs:    inmemdb.NewSAPSyncLogs(),
		metrics: &syncMetrics{},
	}
	deps := sapsync.Deps{
		Stores:  f.stores,
		Logs:    f.logs,
		Tx:      inmemdb.Tx{},
		Logger:  logsvc.NewDiscardLogger(),
		Metrics: f.metrics,
	}
	if src != nil {
		deps.Source = src
	}
	f.svc = sapsync.NewService(deps)
	return f
}

func byCode[T any](t *testing.T, store core.MasterDataStore[T], code string) T {
	t.Helper()
	item, err := store.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return item
}

func TestService_Sync(t *testing.T) {
	ctx := context.Background()
	f := setup(&source{
		bus: []sapsync.Record{
			{Code: "hq", Name: " Head Office "},
			{Code: "NEW", Name: "New Business"},
			{Code: "bad code!", Name: "Broken"},
			{Code: "HQ", Name: "Duplicate"},
			{Code: "NONAME", Name: "  "},
		},
		divs: []sapsync.Record{
			{Code: "OPS", Name: "Operations", ParentCode: "HQ"},
			{Code: "LOST", Name: "Lost", ParentCode: "NOWHERE"},
		},
		depts: []sapsync.Record{
			{Code: "IT", Name: "Information Technology", ParentCode: "ops"},
			{Code: "STALE", Name: "Stale", ParentCode: "LOST"},
		},
	})

	old, err := f.stores.BusinessUnits.Create(ctx, orgunit.BusinessUnit{Code: "OLD", Name: "Old", IsActive: true})
	require.NoError(t, err)
	_, err = f.stores.BusinessUnits.Create(ctx, orgunit.BusinessUnit{Code: "HQ", Name: "Headquarters", IsActive: true})
	require.NoError(t, err)
	_, err = f.stores.Departments.Create(ctx, orgunit.Department{Code: "STALE", Name: "Stale", DivisionID: "gone", IsActive: true})
	require.NoError(t, err)

	res, err := f.svc.Sync(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, sapsync.StatusCompletedWithErrors, res.Status)
	assert.NotEmpty(t, res.LogID)

	assert.Equal(t, 1, res.BusinessUnits.Added)
	assert.Equal(t, 1, res.BusinessUnits.Updated)
	assert.Equal(t, 1, res.BusinessUnits.Deactivated)
	assert.Equal(t, []string{
		`business unit "bad code!": invalid code`,
		"business unit HQ: duplicate code",
		"business unit NONAME: name must be 3 to 200 characters",
	}, res.BusinessUnits.Errors)

	assert.Equal(t, 1, res.Divisions.Added)
	assert.Equal(t, []string{`division LOST: unknown parent "NOWHERE"`}, res.Divisions.Errors)

	assert.Equal(t, 1, res.Departments.Added)
	assert.Zero(t, res.Departments.Deactivated, "records reported upstream with errors stay active")
	assert.Len(t, res.Departments.Errors, 1)

	hq := byCode(t, f.stores.BusinessUnits, "HQ")
	assert.Equal(t, "Head Office", hq.Name)
	assert.Equal(t, "admin", hq.UpdatedBy)
	assert.False(t, byCode(t, f.stores.BusinessUnits, "OLD").IsActive)
	ops := byCode(t, f.stores.Divisions, "OPS")
	assert.Equal(t, hq.ID, ops.BusinessUnitID)
	assert.Equal(t, ops.ID, byCode(t, f.stores.Departments, "IT").DivisionID)
	assert.True(t, byCode(t, f.stores.Departments, "STALE").IsActive)

	history, err := f.svc.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	log := history[0]
	assert.Equal(t, res.LogID, log.ID)
	assert.Equal(t, sapsync.StatusCompletedWithErrors, log.Status)
	assert.Equal(t, 3, log.Added)
	assert.Equal(t, 1, log.Updated)
	assert.Equal(t, 1, log.Deactivated)
	assert.Equal(t, 5, log.Errors)
	assert.Contains(t, log.ErrorDetails, "duplicate code")
	require.NotNil(t, log.FinishedAt)
	assert.Equal(t, "admin", log.TriggeredBy)

	t.Run("second run is a no-op", func(t *testing.T) {
		res, err := f.svc.Sync(ctx, "cron")
		require.NoError(t, err)
		for _, lvl := range []sapsync.LevelResult{res.BusinessUnits, res.Divisions, res.Departments} {
			assert.Zero(t, lvl.Added)
			assert.Zero(t, lvl.Updated)
			assert.Zero(t, lvl.Deactivated)
		}
	})

	t.Run("reactivates records back upstream", func(t *testing.T) {
		f.src.bus = append(f.src.bus, sapsync.Record{Code: "OLD", Name: "Old"})
		res, err := f.svc.Sync(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, 1, res.BusinessUnits.Updated)
		reactivated, err := f.stores.BusinessUnits.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.True(t, reactivated.IsActive)
	})

	assert.Equal(t, []string{
		sapsync.StatusCompletedWithErrors, sapsync.StatusCompletedWithErrors, sapsync.StatusCompletedWithErrors,
	}, f.metrics.statuses)
}

func TestService_Sync_clean(t *testing.T) {
	f := setup(&source{
		bus:  []sapsync.Record{{Code: "HQ", Name: "Head Office"}},
		divs: []sapsync.Record{{Code: "OPS", Name: "Operations", ParentCode: "HQ"}},
	})
	res, err := f.svc.Sync(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, sapsync.StatusCompleted, res.Status)
	assert.Empty(t, res.Departments.Errors)
}

func TestService_Sync_names(t *testing.T) {
	ctx := context.Background()
	f := setup(&source{
		bus: []sapsync.Record{
			{Code: "X1", Name: "IT"},
			{Code: "X2", Name: "Ünï"},
			{Code: "X3", Name: strings.Repeat("é", 201)},
		},
	})
	_, err := f.stores.BusinessUnits.Create(ctx, orgunit.BusinessUnit{Code: "X1", Name: "Information Technology", IsActive: true})
	require.NoError(t, err)

	res, err := f.svc.Sync(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, sapsync.StatusCompletedWithErrors, res.Status)
	assert.Equal(t, 1, res.BusinessUnits.Added, "three characters are counted as runes")
	assert.Zero(t, res.BusinessUnits.Updated)
	assert.Zero(t, res.BusinessUnits.Deactivated)
	assert.Equal(t, []string{
		"business unit X1: name must be 3 to 200 characters",
		"business unit X3: name must be 3 to 200 characters",
	}, res.BusinessUnits.Errors)

	x1 := byCode(t, f.stores.BusinessUnits, "X1")
	assert.Equal(t, "Information Technology", x1.Name)
	assert.True(t, x1.IsActive)
	_, err = f.stores.BusinessUnits.GetByCode(ctx, "X3")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Sync_failures(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := setup(nil)
		_, err := f.svc.Sync(ctx, "admin")
		assert.Equal(t, sapsync.ErrDisabled, err)
	})

	t.Run("source error", func(t *testing.T) {
		f := setup(&source{err: errors.New("connection refused")})
		res, err := f.svc.Sync(ctx, "admin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetching business units")
		assert.Equal(t, sapsync.StatusFailed, res.Status)

		history, err := f.svc.History(ctx, 500)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, sapsync.StatusFailed, history[0].Status)
		assert.Equal(t, 1, history[0].Errors)
		assert.Contains(t, history[0].ErrorDetails, "connection refused")
		assert.Equal(t, []string{sapsync.StatusFailed}, f.metrics.statuses)
	})

	t.Run("one run at a time", func(t *testing.T) {
		src := &source{started: make(chan struct{}), release: make(chan struct{})}
		f := setup(src)

		done := make(chan error, 1)
		go func() {
			_, err := f.svc.Sync(ctx, "first")
			done <- err
		}()
		<-src.started

		_, err := f.svc.Sync(ctx, "second")
		assert.Equal(t, sapsync.ErrAlreadyRunning, err)

		close(src.release)
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("first sync did not finish")
		}
	})
}
