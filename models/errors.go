package models

// Error codes carried in ErrorResponse.Code.
const (
	CodeJWTExpired       = "JWT_EXPIRED"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeTokenMissing     = "TOKEN_MISSING"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeCSRFMissing      = "CSRF_TOKEN_MISSING"
	CodeCSRFInvalid      = "CSRF_TOKEN_INVALID"
	CodeAccountSuspended = "ACCOUNT_SUSPENDED"
	CodeValidation       = "VALIDATION_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
