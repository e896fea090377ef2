package presenter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/lostfound/internal/domain"
)

type errorResponse struct {
	Error     string              `json:"error"`
	Fields    []domain.FieldError `json:"fields,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func ValidationFailed(c echo.Context, err *domain.ValidationError) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: err.Fields})
}

func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid or missing api key"})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

// Unavailable reports a storage or pointer failure the caller may retry.
func Unavailable(c echo.Context, err error) error {
	slog.ErrorContext(
		c.Request().Context(), "service unavailable",
		slog.String("error", err.Error()),
		slog.String("trace", traceID(c)),
		slog.String("module", "rest"),
	)
	c.Response().Header().Set("Retry-After", "1")
	return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable, retry later", Retryable: true})
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(
		c.Request().Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("trace", traceID(c)),
		slog.String("module", "rest"),
	)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error maps a usecase error onto its response.
func Error(c echo.Context, err error) error {
	var (
		verr *domain.ValidationError
		werr *domain.StorageWriteError
		perr *domain.PointerEmissionError
		nf   domain.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return ValidationFailed(c, verr)
	case errors.As(err, &nf):
		return NotFound(c, nf.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return Unauthorized(c)
	case errors.As(err, &werr),
		errors.As(err, &perr),
		errors.Is(err, domain.ErrCorruptStore),
		errors.Is(err, context.DeadlineExceeded):
		return Unavailable(c, err)
	default:
		return InternalError(c, err)
	}
}

func traceID(c echo.Context) string {
	sc := trace.SpanFromContext(c.Request().Context()).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
