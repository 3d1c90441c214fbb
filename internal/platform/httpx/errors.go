package httpx

import "net/http"

// Error kinds surfaced in the result envelope. Callers decide on these, not
// on HTTP status codes, so the set is part of the API contract.
const (
	KindInvalidCredentials  = "INVALID_CREDENTIALS"
	KindNotAuthorized       = "NOT_AUTHORIZED"
	KindInvalidState        = "INVALID_STATE_TRANSITION"
	KindInvalidDateRange    = "INVALID_DATE_RANGE"
	KindDuplicateCode       = "DUPLICATE_CODE"
	KindUnknownRole         = "UNKNOWN_ROLE"
	KindAlreadyGranted      = "ALREADY_GRANTED"
	KindOpenConflict        = "ALREADY_OPEN_CONFLICT"
	KindInsufficientBalance = "INSUFFICIENT_BALANCE"
	KindNotFound            = "NOT_FOUND"
	KindValidation          = "VALIDATION"
	KindInternal            = "INTERNAL"
)

// StatusForKind maps an error kind to its HTTP status code.
func StatusForKind(kind string) int {
	switch kind {
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindInvalidState, KindDuplicateCode, KindAlreadyGranted, KindOpenConflict:
		return http.StatusConflict
	case KindInvalidDateRange, KindUnknownRole, KindValidation:
		return http.StatusBadRequest
	case KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FailKind sends a failed envelope with the status derived from the kind.
func FailKind(w http.ResponseWriter, kind, message string) {
	Fail(w, StatusForKind(kind), kind, message)
}
