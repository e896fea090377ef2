package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/present/rest/presenter"
	"github.com/totegamma/lostfound/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth          *service.AuthService
	defaultOffice string
}

func NewAuthMiddleware(
	auth *service.AuthService,
	defaultOffice string,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth:          auth,
		defaultOffice: defaultOffice,
	}
}

// IdentifyOffice resolves the office a request addresses: the "office" query
// parameter, then the X-Office header, then the configured default.
func (s *AuthMiddleware) IdentifyOffice(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		office := c.QueryParam("office")
		if office == "" {
			office = c.Request().Header.Get(domain.OfficeHeader)
		}
		if office == "" {
			office = s.defaultOffice
		}
		if office == "" {
			return presenter.BadRequestMessage(c, "office is required")
		}

		ctx := context.WithValue(c.Request().Context(), domain.OfficeCtxKey, office)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireClerk rejects mutating requests without a valid office api key.
func (s *AuthMiddleware) RequireClerk(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireClerk")
		defer span.End()

		office, _ := ctx.Value(domain.OfficeCtxKey).(string)
		key := c.Request().Header.Get(domain.APIKeyHeader)

		result, err := s.auth.AuthAPIKey(ctx, office, key)
		if err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.RequireClerk: s.auth.AuthAPIKey failed"))
			return presenter.Unauthorized(c)
		}

		span.SetAttributes(attribute.String("office", result.Office))
		ctx = context.WithValue(ctx, domain.ClerkCtxKey, result.Office)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Office returns the office resolved by IdentifyOffice.
func Office(c echo.Context) string {
	office, _ := c.Request().Context().Value(domain.OfficeCtxKey).(string)
	return office
}
