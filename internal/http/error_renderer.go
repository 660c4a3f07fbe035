package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/target/taskflow/internal/errors"
)

// errorBody is the wire form of an error inside the envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// errorEnvelope wraps every error response as {"error": {...}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// statusForCode maps stable application error codes to HTTP statuses.
// Unknown codes surface as 500.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeJobAlreadyExists:
		return http.StatusConflict
	case apperrors.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError writes err as the standard error envelope. Errors that do
// not unwrap to an AppError become an internal_error; their message is not
// exposed to the client.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal server error")
	}

	body := errorBody{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	}
	if appErr.Field != "" {
		body.Details = map[string]string{"field": appErr.Field}
	}

	WriteJSON(w, statusForCode(appErr.Code), errorEnvelope{Error: body})
}
