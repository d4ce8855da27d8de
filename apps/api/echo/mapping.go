package echoapi

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

const csvContentType = "text/csv; charset=utf-8"

type mappingApi struct {
	svc *mapping.Service
}

func registerMappingAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *mapping.Service) {
	api := mappingApi{svc: svc}
	admin := roleMiddleware(user.AdminRoles...)

	fg := g.Group("/mappings/function-applications", authed)
	fg.GET("", api.queryFunctionApps)
	fg.POST("", api.createFunctionApp, admin)
	fg.GET("/tree", api.functionTree)
	fg.GET("/export", api.exportFunctionApps)
	fg.GET("/functions/:id", api.applicationsByFunction)
	fg.PUT("/functions/:id", api.bulkSetFunctionApps, admin)
	fg.GET("/applications/:id", api.functionsByApplication)
	fg.DELETE("/:id", api.destroyFunctionApp, admin)

	dg := g.Group("/mappings/application-departments", authed)
	dg.GET("", api.queryAppDepts)
	dg.POST("", api.createAppDept, admin)
	dg.GET("/export", api.exportAppDepts)
	dg.GET("/applications/:id", api.departmentHierarchy)
	dg.PUT("/applications/:id", api.bulkSetAppDepts, admin)
	dg.GET("/departments/:id", api.applicationsByDepartment)
	dg.DELETE("/:id", api.destroyAppDept, admin)
}

// Function <-> Application

func (api *mappingApi) queryFunctionApps(ctx echo.Context) error {
	var filter mapping.Filter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	views, err := api.svc.ListFunctionApps(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing function-application mappings")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *mappingApi) createFunctionApp(ctx echo.Context) error {
	var in mapping.NewFunctionApp
	if err := bindBody(ctx, &in, "mapping"); err != nil {
		return err
	}
	m, err := api.svc.CreateFunctionApp(ctx.Request().Context(), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating function-application mapping")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *mappingApi) destroyFunctionApp(ctx echo.Context) error {
	if err := api.svc.DeleteFunctionApp(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting function-application mapping")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *mappingApi) bulkSetFunctionApps(ctx echo.Context) error {
	var in mapping.BulkSet
	if err := bindBody(ctx, &in, "mapping"); err != nil {
		return err
	}
	views, err := api.svc.BulkSetFunctionApps(ctx.Request().Context(), ctx.Param("id"), in.IDs, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "setting function applications")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *mappingApi) applicationsByFunction(ctx echo.Context) error {
	refs, err := api.svc.ApplicationsByFunction(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing applications by function")
	}
	return ctx.JSON(http.StatusOK, refs)
}

func (api *mappingApi) functionsByApplication(ctx echo.Context) error {
	refs, err := api.svc.FunctionsByApplication(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing functions by application")
	}
	return ctx.JSON(http.StatusOK, refs)
}

func (api *mappingApi) functionTree(ctx echo.Context) error {
	tree, err := api.svc.FunctionApplicationTree(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building function tree")
	}
	return ctx.JSON(http.StatusOK, tree)
}

func (api *mappingApi) exportFunctionApps(ctx echo.Context) error {
	return sendCSV(ctx, "function-applications.csv", api.svc.ExportFunctionAppsCSV)
}

// Application <-> Department

func (api *mappingApi) queryAppDepts(ctx echo.Context) error {
	var filter mapping.Filter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	views, err := api.svc.ListAppDepts(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing application-department mappings")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *mappingApi) createAppDept(ctx echo.Context) error {
	var in mapping.NewAppDept
	if err := bindBody(ctx, &in, "mapping"); err != nil {
		return err
	}
	m, err := api.svc.CreateAppDept(ctx.Request().Context(), in, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating application-department mapping")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *mappingApi) destroyAppDept(ctx echo.Context) error {
	if err := api.svc.DeleteAppDept(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting application-department mapping")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *mappingApi) bulkSetAppDepts(ctx echo.Context) error {
	var in mapping.BulkSet
	if err := bindBody(ctx, &in, "mapping"); err != nil {
		return err
	}
	views, err := api.svc.BulkSetAppDepts(ctx.Request().Context(), ctx.Param("id"), in.IDs, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "setting application departments")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *mappingApi) applicationsByDepartment(ctx echo.Context) error {
	refs, err := api.svc.ApplicationsByDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing applications by department")
	}
	return ctx.JSON(http.StatusOK, refs)
}

func (api *mappingApi) departmentHierarchy(ctx echo.Context) error {
	tree, err := api.svc.DepartmentHierarchy(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building department hierarchy")
	}
	return ctx.JSON(http.StatusOK, tree)
}

func (api *mappingApi) exportAppDepts(ctx echo.Context) error {
	return sendCSV(ctx, "application-departments.csv", api.svc.ExportAppDeptsCSV)
}

// sendCSV renders the export in memory so that failures still get a proper error response.
func sendCSV(ctx echo.Context, filename string, export func(context.Context, io.Writer) error) error {
	var buf bytes.Buffer
	if err := export(ctx.Request().Context(), &buf); err != nil {
		return errors.Wrapf(err, "exporting %s", filename)
	}
	return attachment(ctx, filename, csvContentType, buf.Bytes())
}

func attachment(ctx echo.Context, filename, contentType string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, contentType, data)
}
