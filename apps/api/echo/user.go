package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

type userApi struct {
	svc     *user.Service
	authSvc *auth.Service
}

type passwordChange struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func registerUserAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *user.Service, authSvc *auth.Service) {
	api := userApi{svc: svc, authSvc: authSvc}

	ug := g.Group("/users", authed, roleMiddleware(user.RoleSuperAdmin))
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.GET("/roles", api.queryRoles)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
	ug.PUT("/:id/password", api.setPassword)
	ug.DELETE("/:id", api.destroy)
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	users, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bindBody(ctx, &data, "user"); err != nil {
		return err
	}
	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// update ends the sessions of users getting deactivated or changing role.
func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := bindBody(ctx, &data, "user"); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	before, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving user")
	}
	usr, err := api.svc.Update(reqCtx, before.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	if !usr.IsActive || usr.Role != before.Role {
		if err = api.authSvc.EndUserSessions(reqCtx, usr.ID); err != nil {
			return errors.Wrap(err, "ending user sessions")
		}
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setPassword(ctx echo.Context) error {
	var data passwordChange
	if err := bindBody(ctx, &data, "password"); err != nil {
		return err
	}
	if err := api.svc.SetPassword(ctx.Request().Context(), ctx.Param("id"), data.Password, data.PasswordConfirm); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if claims, err := getContextClaims(ctx); err == nil && claims.UserID() == id {
		return errors.Wrap(errCannotDeleteSelf, "deleting user")
	}
	if err := api.authSvc.EndUserSessions(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "ending user sessions")
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}
