package orgunit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	inmemdb "github.com/ademscil/Event-Management-BE-sub001/storage/database/inmem"
)

type deptMappings map[string]int

func (m deptMappings) CountByDepartment(_ context.Context, departmentID string) (int, error) {
	return m[departmentID], nil
}

func md(code, name string) core.MasterDataInput {
	return core.MasterDataInput{Code: code, Name: name}
}

func newService(mappings deptMappings) *orgunit.Service {
	return orgunit.NewService(inmemdb.NewOrgUnitStores(), mappings)
}

func TestService_businessUnits(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	bu, err := svc.CreateBusinessUnit(ctx, orgunit.NewBusinessUnit{MasterDataInput: md(" corp ", " Corporate ")}, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, bu.ID)
	assert.Equal(t, "CORP", bu.Code)
	assert.Equal(t, "Corporate", bu.Name)
	assert.True(t, bu.IsActive)
	assert.Equal(t, "admin", bu.CreatedBy)

	_, err = svc.CreateBusinessUnit(ctx, orgunit.NewBusinessUnit{MasterDataInput: md("Corp", "Other")}, "admin")
	assert.True(t, core.IsConflict(err), "duplicate codes are compared case-insensitively")

	_, err = svc.CreateBusinessUnit(ctx, orgunit.NewBusinessUnit{MasterDataInput: md("bad code", "Other")}, "admin")
	assert.True(t, core.IsValidationError(err))

	other, err := svc.CreateBusinessUnit(ctx, orgunit.NewBusinessUnit{MasterDataInput: md("RETAIL", "Retail")}, "admin")
	require.NoError(t, err)
	_, err = svc.UpdateBusinessUnit(ctx, other.ID, orgunit.UpdateBusinessUnit{MasterDataUpdate: core.MasterDataUpdate{Code: "corp"}}, "bob")
	assert.True(t, core.IsConflict(err))

	inactive := false
	upd, err := svc.UpdateBusinessUnit(ctx, other.ID, orgunit.UpdateBusinessUnit{
		MasterDataUpdate: core.MasterDataUpdate{Name: "Retail Banking", IsActive: &inactive},
	}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "RETAIL", upd.Code)
	assert.Equal(t, "Retail Banking", upd.Name)
	assert.False(t, upd.IsActive)
	assert.Equal(t, "bob", upd.UpdatedBy)
	assert.Equal(t, "admin", upd.CreatedBy)

	active := true
	list, err := svc.ListBusinessUnits(ctx, core.MasterDataFilter{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CORP", list[0].Code)

	list, err = svc.ListBusinessUnits(ctx, core.MasterDataFilter{Search: "bank"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	_, err = svc.GetBusinessUnit(ctx, "missing")
	assert.Equal(t, orgunit.ErrBusinessUnitNotFound, err)
	assert.Equal(t, orgunit.ErrBusinessUnitNotFound, svc.DeleteBusinessUnit(ctx, "missing"))

	require.NoError(t, svc.DeleteBusinessUnit(ctx, other.ID))
	_, err = svc.GetBusinessUnit(ctx, other.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_hierarchyRules(t *testing.T) {
	ctx := context.Background()
	mappings := deptMappings{}
	svc := newService(mappings)

	bu, err := svc.CreateBusinessUnit(ctx, orgunit.NewBusinessUnit{MasterDataInput: md("CORP", "Corporate")}, "admin")
	require.NoError(t, err)

	t.Run("division needs an existing business unit", func(t *testing.T) {
		_, err := svc.CreateDivision(ctx, orgunit.NewDivision{MasterDataInput: md("FIN", "Finance"), BusinessUnitID: "nope"}, "admin")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "business_unit_id", verr.Fields[0].Field)
	})

	div, err := svc.CreateDivision(ctx, orgunit.NewDivision{MasterDataInput: md("FIN", "Finance"), BusinessUnitID: bu.ID}, "admin")
	require.NoError(t, err)
	dept, err := svc.CreateDepartment(ctx, orgunit.NewDepartment{MasterDataInput: md("ACC", "Accounting"), DivisionID: div.ID}, "admin")
	require.NoError(t, err)
	assert.Equal(t, div.ID, dept.DivisionID)

	t.Run("department needs an active division", func(t *testing.T) {
		closed, err := svc.CreateDivision(ctx, orgunit.NewDivision{MasterDataInput: md("OLD", "Old division"), BusinessUnitID: bu.ID}, "admin")
		require.NoError(t, err)
		inactive := false
		_, err = svc.UpdateDivision(ctx, closed.ID, orgunit.UpdateDivision{MasterDataUpdate: core.MasterDataUpdate{IsActive: &inactive}}, "admin")
		require.NoError(t, err)

		_, err = svc.CreateDepartment(ctx, orgunit.NewDepartment{MasterDataInput: md("TAX", "Taxes"), DivisionID: closed.ID}, "admin")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "division is inactive", verr.Fields[0].Error)

		require.NoError(t, svc.DeleteDivision(ctx, closed.ID))
	})

	t.Run("deletes are blocked by dependants", func(t *testing.T) {
		assert.True(t, core.IsConflict(svc.DeleteBusinessUnit(ctx, bu.ID)))
		assert.True(t, core.IsConflict(svc.DeleteDivision(ctx, div.ID)))

		mappings[dept.ID] = 2
		assert.True(t, core.IsConflict(svc.DeleteDepartment(ctx, dept.ID)))
		delete(mappings, dept.ID)
	})

	t.Run("hierarchy", func(t *testing.T) {
		tree, err := svc.Hierarchy(ctx, true)
		require.NoError(t, err)
		require.Len(t, tree, 1)
		assert.Equal(t, "CORP", tree[0].Code)
		require.Len(t, tree[0].Divisions, 1)
		assert.Equal(t, "FIN", tree[0].Divisions[0].Code)
		require.Len(t, tree[0].Divisions[0].Departments, 1)
		assert.Equal(t, "ACC", tree[0].Divisions[0].Departments[0].Code)
	})

	t.Run("delete bottom-up", func(t *testing.T) {
		require.NoError(t, svc.DeleteDepartment(ctx, dept.ID))
		require.NoError(t, svc.DeleteDivision(ctx, div.ID))
		require.NoError(t, svc.DeleteBusinessUnit(ctx, bu.ID))

		tree, err := svc.Hierarchy(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, tree)
	})
}

func TestBuildTree(t *testing.T) {
	rows := []orgunit.HierarchyRow{
		{BusinessUnitID: "b1", BusinessUnitCode: "CORP", DivisionID: "d1", DivisionCode: "FIN", DepartmentID: "p1", DepartmentCode: "ACC"},
		{BusinessUnitID: "b1", BusinessUnitCode: "CORP", DivisionID: "d1", DivisionCode: "FIN", DepartmentID: "p2", DepartmentCode: "TAX"},
		{BusinessUnitID: "b2", BusinessUnitCode: "RETAIL", DivisionID: "d2", DivisionCode: "OPS", DepartmentID: "p3", DepartmentCode: "LOG"},
	}
	tree := orgunit.BuildTree(rows)
	require.Len(t, tree, 2)
	assert.Equal(t, "CORP", tree[0].Code)
	require.Len(t, tree[0].Divisions, 1)
	assert.Len(t, tree[0].Divisions[0].Departments, 2)
	assert.Equal(t, "LOG", tree[1].Divisions[0].Departments[0].Code)

	assert.Empty(t, orgunit.BuildTree(nil))
}
