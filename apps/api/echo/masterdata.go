package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

// masterDataApi serves the CRUD endpoints of one kind of master-data record.
// Reads are open to every signed-in user, writes to admins.
type masterDataApi[T, N, U any] struct {
	name   string
	create func(ctx context.Context, in N, actor string) (T, error)
	get    func(ctx context.Context, id string) (T, error)
	list   func(ctx context.Context, filter core.MasterDataFilter) ([]T, error)
	update func(ctx context.Context, id string, in U, actor string) (T, error)
	delete func(ctx context.Context, id string) error
}

func (api masterDataApi[T, N, U]) register(g *echo.Group, path string, authed echo.MiddlewareFunc) {
	admin := roleMiddleware(user.AdminRoles...)

	mg := g.Group(path, authed)
	mg.GET("", api.query)
	mg.POST("", api.createOne, admin)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.updateOne, admin)
	mg.DELETE("/:id", api.destroy, admin)
}

func (api masterDataApi[T, N, U]) query(ctx echo.Context) error {
	var filter core.MasterDataFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	items, err := api.list(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrapf(err, "listing %s", api.name)
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api masterDataApi[T, N, U]) createOne(ctx echo.Context) error {
	var in N
	if err := bindBody(ctx, &in, api.name); err != nil {
		return err
	}
	item, err := api.create(ctx.Request().Context(), in, actor(ctx))
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.name)
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api masterDataApi[T, N, U]) retrieve(ctx echo.Context) error {
	item, err := api.get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting %s", api.name)
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api masterDataApi[T, N, U]) updateOne(ctx echo.Context) error {
	var in U
	if err := bindBody(ctx, &in, api.name); err != nil {
		return err
	}
	item, err := api.update(ctx.Request().Context(), ctx.Param("id"), in, actor(ctx))
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.name)
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api masterDataApi[T, N, U]) destroy(ctx echo.Context) error {
	if err := api.delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", api.name)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func registerOrgUnitAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *orgunit.Service) {
	masterDataApi[orgunit.BusinessUnit, orgunit.NewBusinessUnit, orgunit.UpdateBusinessUnit]{
		name:   "business unit",
		create: svc.CreateBusinessUnit,
		get:    svc.GetBusinessUnit,
		list:   svc.ListBusinessUnits,
		update: svc.UpdateBusinessUnit,
		delete: svc.DeleteBusinessUnit,
	}.register(g, "/business-units", authed)

	masterDataApi[orgunit.Division, orgunit.NewDivision, orgunit.UpdateDivision]{
		name:   "division",
		create: svc.CreateDivision,
		get:    svc.GetDivision,
		list:   svc.ListDivisions,
		update: svc.UpdateDivision,
		delete: svc.DeleteDivision,
	}.register(g, "/divisions", authed)

	masterDataApi[orgunit.Department, orgunit.NewDepartment, orgunit.UpdateDepartment]{
		name:   "department",
		create: svc.CreateDepartment,
		get:    svc.GetDepartment,
		list:   svc.ListDepartments,
		update: svc.UpdateDepartment,
		delete: svc.DeleteDepartment,
	}.register(g, "/departments", authed)

	g.GET("/hierarchy", func(ctx echo.Context) error {
		activeOnly := true
		if raw := ctx.QueryParam("active_only"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return core.NewValidationError(nil, core.FieldError{Field: "active_only", Error: "must be a boolean"})
			}
			activeOnly = v
		}
		tree, err := svc.Hierarchy(ctx.Request().Context(), activeOnly)
		if err != nil {
			return errors.Wrap(err, "building hierarchy")
		}
		return ctx.JSON(http.StatusOK, tree)
	}, authed)
}

func registerFunctionAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *function.Service) {
	masterDataApi[function.Function, function.NewFunction, function.UpdateFunction]{
		name:   "function",
		create: svc.Create,
		get:    svc.Get,
		list:   svc.List,
		update: svc.Update,
		delete: svc.Delete,
	}.register(g, "/functions", authed)
}

func registerApplicationAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *application.Service) {
	masterDataApi[application.Application, application.NewApplication, application.UpdateApplication]{
		name:   "application",
		create: svc.Create,
		get:    svc.Get,
		list:   svc.List,
		update: svc.Update,
		delete: svc.Delete,
	}.register(g, "/applications", authed)
}
