package errors

// ErrorCode represents a standardized error code used throughout the client
type ErrorCode string

// Authentication error codes (AUTH_*)
const (
	AuthMissingToken ErrorCode = "AUTH_001"
	AuthExpiredToken ErrorCode = "AUTH_002"
	AuthInvalidToken ErrorCode = "AUTH_003"
	AuthSignInFailed ErrorCode = "AUTH_004"
)

// Network error codes (NETWORK_*)
const (
	NetworkRequestFailed ErrorCode = "NETWORK_001"
	NetworkBadStatus     ErrorCode = "NETWORK_002"
	NetworkUnavailable   ErrorCode = "NETWORK_003"
	NetworkRateLimited   ErrorCode = "NETWORK_004"
)

// Validation error codes (VALIDATION_*)
const (
	ValidationGeneral       ErrorCode = "VALIDATION_001"
	ValidationRequiredField ErrorCode = "VALIDATION_002"
	ValidationInvalidFormat ErrorCode = "VALIDATION_003"
	ValidationOutOfRange    ErrorCode = "VALIDATION_004"
)

// Transaction error codes (TRANSACTION_*)
const (
	TransactionNotFound      ErrorCode = "TRANSACTION_001"
	TransactionInvalidAmount ErrorCode = "TRANSACTION_002"
	TransactionInvalidType   ErrorCode = "TRANSACTION_003"
	TransactionLoadFailed    ErrorCode = "TRANSACTION_004"
	TransactionNotOwned      ErrorCode = "TRANSACTION_005"
	TransactionProcessFailed ErrorCode = "TRANSACTION_006"
)

// Account error codes (ACCOUNT_*)
const (
	AccountNotFound        ErrorCode = "ACCOUNT_001"
	AccountInactive        ErrorCode = "ACCOUNT_002"
	AccountNumberExhausted ErrorCode = "ACCOUNT_003"
	AccountInvalidType     ErrorCode = "ACCOUNT_004"
)

// Storage error codes (STORAGE_*)
const (
	StorageUploadFailed ErrorCode = "STORAGE_001"
	StorageDeleteFailed ErrorCode = "STORAGE_002"
	StorageFileTooLarge ErrorCode = "STORAGE_003"
	StorageFileType     ErrorCode = "STORAGE_004"
	StorageInvalidURL   ErrorCode = "STORAGE_005"
)

// errorMessages maps error codes to their default human-readable messages
var errorMessages = map[ErrorCode]string{
	AuthMissingToken: "Authentication token not found",
	AuthExpiredToken: "Authentication token has expired",
	AuthInvalidToken: "Authentication token is malformed",
	AuthSignInFailed: "Sign in failed",

	NetworkRequestFailed: "Request to backend failed",
	NetworkBadStatus:     "Backend returned an error status",
	NetworkUnavailable:   "Backend temporarily unavailable",
	NetworkRateLimited:   "Too many requests",

	ValidationGeneral:       "Validation failed",
	ValidationRequiredField: "Required field is missing",
	ValidationInvalidFormat: "Invalid field format",
	ValidationOutOfRange:    "Field value is out of allowed range",

	TransactionNotFound:      "Transaction not found",
	TransactionInvalidAmount: "Invalid transaction amount",
	TransactionInvalidType:   "Invalid transaction type",
	TransactionLoadFailed:    "Failed to load transactions",
	TransactionNotOwned:      "Transaction does not belong to the current user",
	TransactionProcessFailed: "Failed to process transaction",

	AccountNotFound:        "Bank account not found",
	AccountInactive:        "Bank account is inactive",
	AccountNumberExhausted: "Could not generate a unique account number",
	AccountInvalidType:     "Invalid account type",

	StorageUploadFailed: "Receipt upload failed",
	StorageDeleteFailed: "Receipt removal failed",
	StorageFileTooLarge: "File too large, maximum size is 5MB",
	StorageFileType:     "File type not allowed, accepted types are JPG, PNG and PDF",
	StorageInvalidURL:   "Receipt URL is not recognized",
}

// GetErrorMessage returns the default message for a given error code.
// Unknown codes fall back to a generic message.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An error occurred"
}

// IsValidErrorCode checks if the provided error code is a valid registered code
func IsValidErrorCode(code ErrorCode) bool {
	_, ok := errorMessages[code]
	return ok
}
