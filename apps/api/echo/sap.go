package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

const defaultHistoryLimit = 20

type sapApi struct {
	svc *sapsync.Service
}

func registerSAPAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *sapsync.Service) {
	api := sapApi{svc: svc}

	sg := g.Group("/sap", authed, roleMiddleware(user.RoleSuperAdmin))
	sg.POST("/sync", api.sync)
	sg.GET("/history", api.history)
}

func (api *sapApi) sync(ctx echo.Context) error {
	res, err := api.svc.Sync(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "synchronising with SAP")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sapApi) history(ctx echo.Context) error {
	limit, err := intQuery(ctx, "limit", defaultHistoryLimit)
	if err != nil {
		return err
	}
	logs, err := api.svc.History(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "listing SAP sync history")
	}
	return ctx.JSON(http.StatusOK, logs)
}
