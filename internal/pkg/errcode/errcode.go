package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrConfig
	ErrAuthInvalid
	ErrQuotaExceeded
	ErrRateLimited
	ErrModelNotFound
	ErrContextTooLong
	ErrInvalidRequest
	ErrDimensionMismatch
	ErrStore
	ErrExternalSource
	ErrAIUnavailable
)
