package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
)

// publicApi serves respondents; no session is required.
type publicApi struct {
	svc *survey.Service
}

func registerPublicAPI(g *echo.Group, svc *survey.Service) {
	api := publicApi{svc: svc}

	pg := g.Group("/public")
	pg.GET("/surveys/:id", api.preview)
	pg.POST("/surveys/:id/responses", api.submit)
	pg.GET("/s/:code", api.redirect)
}

func (api *publicApi) preview(ctx echo.Context) error {
	p, err := api.svc.PublicPreview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "previewing survey")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *publicApi) submit(ctx echo.Context) error {
	var in survey.NewResponse
	if err := bindBody(ctx, &in, "response"); err != nil {
		return err
	}
	r, err := api.svc.SubmitResponse(ctx.Request().Context(), ctx.Param("id"), in, ctx.RealIP())
	if err != nil {
		return errors.Wrap(err, "submitting response")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *publicApi) redirect(ctx echo.Context) error {
	link, err := api.svc.ResolveShortCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "resolving short code")
	}
	return ctx.Redirect(http.StatusFound, link)
}
