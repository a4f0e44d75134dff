package httputil

// Machine-readable error codes returned alongside error messages so that
// clients can branch on the failure kind without parsing message text.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidOldPassword  = "INVALID_OLD_PASSWORD"
	CodeInvalidOrExpiredOTP = "INVALID_OR_EXPIRED_OTP"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeDeliveryFailed      = "DELIVERY_FAILED"
	CodeStoreError          = "STORE_ERROR"
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
)
