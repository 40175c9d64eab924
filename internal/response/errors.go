package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"
	ErrActionForbidden  ErrCode = "ACTION_FORBIDDEN"

	// ─── Test-taking ───────────────────────────────────────────────────
	ErrTestNotAvailable     ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotAssigned      ErrCode = "TEST_NOT_ASSIGNED"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrAlreadySubmitted     ErrCode = "ALREADY_SUBMITTED"
	ErrNoActiveAttempt      ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrUnknownQuestion      ErrCode = "UNKNOWN_QUESTION"
	ErrOptionOutOfRange     ErrCode = "OPTION_OUT_OF_RANGE"
	ErrConfirmationRequired ErrCode = "CONFIRMATION_REQUIRED"
	ErrResultPersistFailed  ErrCode = "RESULT_PERSIST_FAILED"
	ErrNotTestAuthor        ErrCode = "NOT_TEST_AUTHOR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "This record cannot be deleted because other records depend on it."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Test-taking ───────────────────────────────────────────────────
	case ErrTestNotAvailable:
		return "This test is not currently available."
	case ErrTestNotAssigned:
		return "This test is not assigned to your group."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrAlreadySubmitted:
		return "You have already submitted this test."
	case ErrNoActiveAttempt:
		return "You have no active attempt for this test."
	case ErrUnknownQuestion:
		return "The question does not belong to this test."
	case ErrOptionOutOfRange:
		return "The selected option does not exist for this question."
	case ErrConfirmationRequired:
		return "Some questions are unanswered. Confirm to submit anyway."
	case ErrResultPersistFailed:
		return "Your result could not be saved. Please try submitting again."
	case ErrNotTestAuthor:
		return "You are not the author of this test."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
