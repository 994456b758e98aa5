package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/visitor-analytics/internal/analytics"
)

// ErrorModel is the body of every error response: {"error": "..."}.
type ErrorModel struct {
	Status  int    `json:"-"`
	Message string `json:"error" doc:"Human readable error message"`
}

func (e *ErrorModel) Error() string {
	return e.Message
}

func (e *ErrorModel) GetStatus() int {
	return e.Status
}

// NewError replaces huma.NewError so framework-generated errors share the
// {"error"} shape. Details are appended for client errors only.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status < http.StatusInternalServerError && len(errs) > 0 {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}

		if len(details) > 0 {
			msg += ": " + strings.Join(details, "; ")
		}
	}

	return &ErrorModel{Status: status, Message: msg}
}

// toHTTPError maps domain errors to status errors at the handler boundary.
func toHTTPError(err error, storageMsg string) error {
	switch {
	case errors.Is(err, analytics.ErrValidation):
		return &ErrorModel{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, analytics.ErrNotFound):
		return &ErrorModel{Status: http.StatusNotFound, Message: err.Error()}
	default:
		return &ErrorModel{Status: http.StatusInternalServerError, Message: storageMsg}
	}
}

var _ huma.StatusError = (*ErrorModel)(nil)
