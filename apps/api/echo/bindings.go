package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

// bindQuery binds the query string only; the request body is left untouched.
func bindQuery(ctx echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, dst); err != nil {
		return core.NewValidationError(errors.Wrap(err, "invalid query parameters"))
	}
	return nil
}

// bindBody binds the JSON body; malformed payloads are reported as validation errors.
func bindBody(ctx echo.Context, dst interface{}, name string) error {
	if err := (&echo.DefaultBinder{}).BindBody(ctx, dst); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) && herr.Code == 413 {
			return herr
		}
		return core.NewValidationError(errors.Errorf("invalid %s payload", name))
	}
	return nil
}

// intQuery reads a positive integer query parameter, falling back to def.
func intQuery(ctx echo.Context, name string, def int) (int, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return n, nil
}
