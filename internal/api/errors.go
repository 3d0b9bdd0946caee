package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getkayan/warden/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// statusByCode maps domain error codes onto HTTP statuses.
var statusByCode = map[string]int{
	domain.CodeConflict:     http.StatusBadRequest,
	domain.CodeUnauthorized: http.StatusUnauthorized,
	domain.CodeNotFound:     http.StatusNotFound,
	domain.CodeBadRequest:   http.StatusBadRequest,
	domain.CodeValidation:   http.StatusUnprocessableEntity,
	domain.CodeRateLimited:  http.StatusTooManyRequests,
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  any    `json:"errors"`
}

// ErrorHandler renders err as an ErrorResponse. Errors without a known
// code become a 500 whose cause is logged, never returned.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := toResponse(err)
		if resp.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		if secs, ok := retryAfter(err); ok {
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(resp.Code)
		} else {
			err = c.JSON(resp.Code, resp)
		}
		if err != nil {
			logger.Warn("writing error response failed", zap.Error(err))
		}
	}
}

func toResponse(err error) ErrorResponse {
	resp := ErrorResponse{Code: http.StatusInternalServerError, Message: "Internal server error"}

	var verr *ValidationError
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		resp.Code = http.StatusUnprocessableEntity
		resp.Message = "Validation error"
		resp.Errors = verr.Fields
	case errors.As(err, &herr):
		resp.Code = herr.Code
		if msg, ok := herr.Message.(string); ok {
			resp.Message = msg
		} else {
			resp.Message = http.StatusText(herr.Code)
		}
	default:
		if status, ok := statusByCode[domain.Code(err)]; ok {
			resp.Code = status
			resp.Message = publicMessage(err)
		}
	}
	return resp
}

// publicMessage is the innermost message of a coded error, which is the
// text the domain constructors were given.
func publicMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func retryAfter(err error) (int, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0, false
	}
	secs, ok := oopsErr.Context()["retry_after_seconds"].(int)
	return secs, ok && secs > 0
}
