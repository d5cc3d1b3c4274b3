package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Journal Errors
	ErrTradeNotFound      = errors.New("trade not found")
	ErrLevelNotFound      = errors.New("exit level not found")
	ErrStrategyNotFound   = errors.New("strategy not found")
	ErrStrategyNameExists = errors.New("strategy name already exists")
	ErrStrategyInUse      = errors.New("strategy is referenced by existing trades")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrInvalidTransition  = errors.New("invalid trade status transition")
	ErrTradeClosed        = errors.New("closed trades cannot be modified")

	// Quote Provider Errors
	ErrQuoteUnavailable     = errors.New("quote provider is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the provider")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("provider authentication failed (check API keys)")
	ErrInvalidResponse      = errors.New("provider returned a malformed response")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)
