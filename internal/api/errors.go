package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"popdash/internal/logging"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeLoading    = "LOADING"
	CodeDataLoad   = "DATA_LOAD_ERROR"
	CodeExport     = "EXPORT_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// APIError is returned by handlers and rendered by ErrorHandler.
type APIError struct {
	Status int
	ErrorResponse
}

func NewAPIError(status int, code, message string, details interface{}) *APIError {
	return &APIError{Status: status, ErrorResponse: ErrorResponse{Code: code, Message: message, Details: details}}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// ErrorHandler renders APIError and echo.HTTPError values as ErrorResponse JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		code := CodeInternal
		if httpErr.Code == http.StatusNotFound {
			code = CodeNotFound
		}
		apiErr = NewAPIError(httpErr.Code, code, fmt.Sprint(httpErr.Message), nil)
	default:
		logging.Err(err).Str("path", c.Path()).Msg("unhandled error")
		apiErr = NewAPIError(http.StatusInternalServerError, CodeInternal, http.StatusText(http.StatusInternalServerError), nil)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(apiErr.Status)
	} else {
		err = c.JSON(apiErr.Status, apiErr.ErrorResponse)
	}
	if err != nil {
		logging.Err(err).Msg("failed to write error response")
	}
}
