package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/console-api/internal/errors"
)

// statusByCode maps application error codes to HTTP statuses.
//
//nolint:gochecknoglobals // static read-only lookup
var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation:     http.StatusBadRequest,
	apperrors.ErrCodeNotFound:       http.StatusNotFound,
	apperrors.ErrCodePrecondition:   http.StatusUnprocessableEntity,
	apperrors.ErrCodeDispatch:       http.StatusBadGateway,
	apperrors.ErrCodePostProcessing: http.StatusInternalServerError,
	apperrors.ErrCodeUnauthorized:   http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:      http.StatusForbidden,
	apperrors.ErrCodeConflict:       http.StatusConflict,
	apperrors.ErrCodeTimeout:        http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:       http.StatusServiceUnavailable,
	apperrors.ErrCodeInternal:       http.StatusInternalServerError,
}

// DetermineErrorStatus returns the HTTP status for err. Errors that carry no
// application code are server errors.
func DetermineErrorStatus(err error) int {
	if status, ok := statusByCode[apperrors.GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RenderError writes err as {"error": code, "message": text}. Server errors
// are logged and their detail is withheld from the client.
func RenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := DetermineErrorStatus(err)
	code := string(apperrors.GetCode(err))
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
		}
		if code == "" {
			code = string(apperrors.ErrCodeInternal)
		}
		WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(http.StatusText(status))})
		return
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(msg)})
}
