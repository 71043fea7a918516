package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrOperatorOnly     ErrCode = "OPERATOR_ACCESS_ONLY"
	ErrOperatorDisabled ErrCode = "OPERATOR_DISABLED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionLimit     ErrCode = "SESSION_LIMIT_REACHED"
	ErrIntentIgnored    ErrCode = "INTENT_IGNORED"
	ErrOptionOutOfRange ErrCode = "OPTION_OUT_OF_RANGE"
	ErrUnknownAction    ErrCode = "UNKNOWN_ACTION"
	ErrNotFound         ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Diagnostics ───────────────────────────────────────────────────
	ErrAuditDisabled ErrCode = "AUDIT_DISABLED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid operator passphrase."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrOperatorOnly:
		return "This action is restricted to the operator."
	case ErrOperatorDisabled:
		return "Operator override is not configured on this server."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Game session not found or expired."
	case ErrSessionLimit:
		return "Too many active game sessions. Please try again later."
	case ErrIntentIgnored:
		return "This action has no effect in the current game state."
	case ErrOptionOutOfRange:
		return "The selected option does not exist."
	case ErrUnknownAction:
		return "Unknown action."
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Diagnostics ───────────────────────────────────────────────────
	case ErrAuditDisabled:
		return "The acquisition audit log is not configured."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
