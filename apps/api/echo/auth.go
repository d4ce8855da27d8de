package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
)

type authApi struct {
	svc *auth.Service
}

func registerAuthAPI(g *echo.Group, authed, loginLimiter echo.MiddlewareFunc, svc *auth.Service) {
	api := authApi{svc: svc}

	ag := g.Group("/auth")
	var loginMw []echo.MiddlewareFunc
	if loginLimiter != nil {
		loginMw = append(loginMw, loginLimiter)
	}
	ag.POST("/login", api.login, loginMw...)
	ag.POST("/refresh", api.refresh)
	ag.POST("/logout", api.logout, authed)
	ag.GET("/me", api.me, authed)
}

func (api *authApi) login(ctx echo.Context) error {
	var creds auth.Credentials
	if err := bindBody(ctx, &creds, "credentials"); err != nil {
		return err
	}
	res, err := api.svc.Login(ctx.Request().Context(), creds, ctx.RealIP(), ctx.Request().UserAgent())
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, res)
}

// refresh takes the current token from the Authorization header.
func (api *authApi) refresh(ctx echo.Context) error {
	token, err := bearerToken(ctx.Request())
	if err != nil {
		return err
	}
	res, err := api.svc.Refresh(ctx.Request().Context(), token)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Logout(ctx.Request().Context(), claims.SessionID); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Me(ctx.Request().Context(), claims)
	if err != nil {
		return errors.Wrap(err, "getting current user")
	}
	return ctx.JSON(http.StatusOK, usr)
}
