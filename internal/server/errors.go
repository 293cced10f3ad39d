package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
	orientdomain "github.com/careops/valuemed/internal/orientation/domain"
	wfdomain "github.com/careops/valuemed/internal/workflow/domain"
	pkgdb "github.com/careops/valuemed/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, calcdomain.ErrInvalidPeriod),
		errors.Is(err, calcdomain.ErrNoDepartments),
		errors.Is(err, wfdomain.ErrInvalidName),
		errors.Is(err, wfdomain.ErrEmptyContent),
		errors.Is(err, orientdomain.ErrInvalidName),
		errors.Is(err, orientdomain.ErrInvalidCategory),
		errors.Is(err, orientdomain.ErrInvalidLadder),
		errors.Is(err, orientdomain.ErrInvalidPeriod),
		errors.Is(err, treedomain.ErrDuplicateNode),
		errors.Is(err, treedomain.ErrDanglingParent),
		errors.Is(err, treedomain.ErrCycle),
		errors.Is(err, treedomain.ErrRootNotSequence):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, calcdomain.ErrTaskNotPending),
		errors.Is(err, calcdomain.ErrTaskTerminal),
		errors.Is(err, calcdomain.ErrTaskCancelled):
		return true
	}
	// Unique-index races surface as conflicts rather than opaque 500s.
	return pkgdb.IsDuplicateKeyErr(err)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, calcdomain.ErrTaskNotFound),
		errors.Is(err, calcdomain.ErrResultsNotFound),
		errors.Is(err, deptdomain.ErrHospitalNotFound),
		errors.Is(err, deptdomain.ErrDepartmentNotFound),
		errors.Is(err, wfdomain.ErrWorkflowNotFound),
		errors.Is(err, orientdomain.ErrRuleNotFound),
		errors.Is(err, treedomain.ErrVersionNotFound),
		errors.Is(err, treedomain.ErrNoActiveVersion):
		return true
	}
	return false
}
