package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "
)

// sessionMiddleware authenticates the bearer token against its server-side session.
func sessionMiddleware(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, err := bearerToken(ctx.Request())
			if err != nil {
				return err
			}
			claims, err := svc.ValidateSession(ctx.Request().Context(), token)
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

// roleMiddleware lets through callers holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.HasRole(roles...) {
				return core.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", core.ErrUnauthorized
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), nil
}

func getContextClaims(ctx echo.Context) (*auth.Claims, error) {
	claims, ok := ctx.Get(contextClaimsKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, core.ErrUnauthorized
	}
	return claims, nil
}

// actor is the username recorded in CreatedBy/UpdatedBy columns.
func actor(ctx echo.Context) string {
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.Username
	}
	return ""
}
