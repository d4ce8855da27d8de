package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/bulkimport"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

const importFileField = "file"

type importApi struct {
	svc *bulkimport.Service
}

func registerImportAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *bulkimport.Service) {
	api := importApi{svc: svc}
	admin := roleMiddleware(user.AdminRoles...)

	g.POST("/import/:entity", api.importFile, authed, admin)
	g.GET("/import/:entity/template", api.template, authed, admin)
	g.GET("/export/:entity", api.export, authed)
}

// importFile answers 400 with the row errors when the workbook was rejected.
func (api *importApi) importFile(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: importFileField, Error: "an .xlsx file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	entity := ctx.Param("entity")
	res, err := api.svc.Import(ctx.Request().Context(), entity, f, fh.Filename, actor(ctx))
	if err != nil {
		return errors.Wrapf(err, "importing %s", entity)
	}
	if len(res.Errors) > 0 {
		return ctx.JSON(http.StatusBadRequest, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *importApi) template(ctx echo.Context) error {
	entity := ctx.Param("entity")
	data, err := api.svc.Template(entity)
	if err != nil {
		return errors.Wrapf(err, "building %s template", entity)
	}
	return attachment(ctx, bulkimport.Filename(entity, "template"), bulkimport.ContentType, data)
}

func (api *importApi) export(ctx echo.Context) error {
	entity := ctx.Param("entity")
	data, err := api.svc.Export(ctx.Request().Context(), entity)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", entity)
	}
	return attachment(ctx, bulkimport.Filename(entity, "export"), bulkimport.ContentType, data)
}
