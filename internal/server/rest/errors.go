package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error codes carried in the "code" field of the error envelope.
const (
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeTokenInvalid   = "TOKEN_INVALID"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeBadRequest     = "BAD_REQUEST"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

const (
	msgInternal     = "An unexpected error occurred"
	msgTokenExpired = "Token has expired"
	msgTokenInvalid = "Invalid token"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Path    string `json:"path"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// classify maps an error onto an HTTP status, an envelope code and a
// caller-safe message. Token errors are checked before the generic
// unauthorized kind they are wrapped in.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrConfiguration):
		return http.StatusInternalServerError, CodeConfiguration, detailOr(err, common.ErrConfiguration, "Service is not configured")
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired, msgTokenExpired
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, CodeTokenInvalid, msgTokenInvalid
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, CodeAuthentication, detailOr(err, common.ErrorUnauthorized, "Authentication required")
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, CodeForbidden, detailOr(err, common.ErrorForbidden, "Access forbidden")
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, CodeNotFound, detailOr(err, common.ErrorNotFound, "Resource not found")
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, CodeConflict, detailOr(err, common.ErrorConflict, "Resource already exists")
	case errors.Is(err, common.ErrorValidation):
		return http.StatusUnprocessableEntity, CodeValidation, detailOr(err, common.ErrorValidation, "Validation error")
	case errors.Is(err, common.ErrorBadRequest):
		return http.StatusBadRequest, CodeBadRequest, detailOr(err, common.ErrorBadRequest, "Bad request")
	}
	return http.StatusInternalServerError, CodeInternal, msgInternal
}

// detailOr returns the detail of a *common.Error of the given kind, or
// fallback when err carries none.
func detailOr(err, kind error, fallback string) string {
	var e *common.Error
	if errors.As(err, &e) && errors.Is(e.Kind, kind) && e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// writeError aborts the request with the error envelope.
func writeError(c *gin.Context, status int, code, message string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Status:  status,
		Path:    c.Request.URL.Path,
	}})
}

// bindingError turns a gin binding failure into a validation error with a
// readable message.
func bindingError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldMessage(fe))
		}
		return common.NewError(common.ErrorValidation, strings.Join(msgs, "; "))
	}

	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.As(err, &te), errors.Is(err, io.ErrUnexpectedEOF):
		return common.NewError(common.ErrorValidation, "Malformed request body")
	case errors.Is(err, io.EOF):
		return common.NewError(common.ErrorValidation, "Request body is required")
	}
	return common.NewError(common.ErrorValidation, "Invalid request: "+err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must have %s %s characters", name, bound, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must have %s %s items", name, bound, fe.Param())
		}
		return fmt.Sprintf("%s must be %s %s", name, bound, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", name, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
}
