package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Unmapped
// errors are logged and hidden behind a generic 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrInsufficientReserved),
		errors.Is(err, shared.ErrInsufficientOnHand):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidQuantity),
		errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrExceedsRemaining),
		errors.Is(err, shared.ErrInvalidTransfer):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if logger != nil {
			logger.Error("unhandled request error", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
