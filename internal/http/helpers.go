package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"masjid/internal/auth"
	"masjid/internal/core"
	"masjid/internal/ledger"
	"masjid/internal/media"
)

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// validationMessages maps input errors to the text shown to operators.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrInvalidAmount, "Enter a valid amount greater than zero"},
	{core.ErrNegativeAmount, "Amount cannot be negative"},
	{core.ErrInvalidDate, "Enter a valid date"},
	{core.ErrEmptyDescription, "Description is required"},
	{core.ErrEmptyName, "Expense name is required"},
	{core.ErrDescriptionTooLong, "Text is too long (max 200 characters)"},
	{core.ErrInvalidBillBook, "Bill book range is invalid: 'from' must not exceed 'to'"},
	{core.ErrInvalidRole, "Unknown salary role"},
	{core.ErrInvalidMonthKey, "Month must look like 2024-03"},
	{errBadBillNumber, "Bill numbers must be whole numbers"},
	{ledger.ErrInvalidID, "Invalid entry id"},
	{auth.ErrInvalidPhone, "Enter a valid phone number"},
	{auth.ErrWeakPassword, "Password must be at least 6 characters"},
	{auth.ErrEmptyName, "Name is required"},
	{auth.ErrPhoneInUse, "This phone number is already registered"},
}

// classifyError returns the status code and operator-facing message for err.
func classifyError(err error) (int, string) {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return http.StatusUnprocessableEntity, v.msg
		}
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "File is too large"
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "Only jpg, jpeg, png, gif and webp images are accepted"
	case errors.Is(err, media.ErrEmptyFile):
		return http.StatusBadRequest, "No file uploaded"
	case errors.Is(err, ledger.ErrEntryNotFound), errors.Is(err, auth.ErrAccountNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.Is(err, ledger.ErrStore):
		return http.StatusServiceUnavailable, "Could not reach the ledger. Please try again."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type jsonError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
