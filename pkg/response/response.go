package response

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

const CodeValidationError = "VALIDATION_ERROR"

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
}

// SuccessWithMessage is used where the caller wants a human readable outcome,
// e.g. a confirmation that was already recorded.
func SuccessWithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: timestamp(),
	})
}

func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	})
}

func Paginated(c echo.Context, items interface{}, total int64, page, pageSize int) error {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}

	return c.JSON(http.StatusOK, Response{
		Success:   true,
		Timestamp: timestamp(),
		Data: PaginatedResponse{
			Items:      items,
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	})
}

func Error(c echo.Context, err error) error {
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		return handleValidationError(c, validationErr)
	}

	return ErrorWithData(c, err, nil)
}

// ErrorWithData writes the error envelope and still carries data, for
// failures whose partial result is useful to the caller.
func ErrorWithData(c echo.Context, err error, data interface{}) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("%s %s failed: %v", c.Request().Method, c.Path(), err)
		}
		return c.JSON(appErr.Status, Response{
			Success:   false,
			Data:      data,
			Timestamp: timestamp(),
			Error: &ErrorInfo{
				Code:    appErr.Code,
				Message: appErr.Message,
			},
		})
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		return c.JSON(httpErr.Code, Response{
			Success:   false,
			Timestamp: timestamp(),
			Error: &ErrorInfo{
				Code:    codeForStatus(httpErr.Code),
				Message: message,
			},
		})
	}

	logger.Error("%s %s failed: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, Response{
		Success:   false,
		Timestamp: timestamp(),
		Error: &ErrorInfo{
			Code:    apperrors.CodeInternal,
			Message: "An unexpected error occurred",
		},
	})
}

// ErrorHandler lets echo route its own errors (404 routes, bind failures)
// through the same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if writeErr := Error(c, err); writeErr != nil {
		logger.Error("failed to write error response: %v", writeErr)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperrors.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodePermissionDenied
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusTooManyRequests:
		return apperrors.CodeTooManyRequests
	default:
		return apperrors.CodeInternal
	}
}

func handleValidationError(c echo.Context, validationErr validator.ValidationErrors) error {
	details := make([]string, 0, len(validationErr))
	for _, err := range validationErr {
		details = append(details, validationMessage(err))
	}

	message := "Invalid input data"
	if len(details) > 0 {
		message = details[0]
	}

	return c.JSON(http.StatusBadRequest, Response{
		Success:   false,
		Timestamp: timestamp(),
		Error: &ErrorInfo{
			Code:    CodeValidationError,
			Message: message,
			Details: details,
		},
	})
}

func validationMessage(err validator.FieldError) string {
	field := strings.ToLower(err.Field())
	param := err.Param()

	switch err.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + param
	case "max":
		return field + " must be at most " + param
	case "oneof":
		return field + " must be one of: " + param
	default:
		return field + " is invalid"
	}
}
