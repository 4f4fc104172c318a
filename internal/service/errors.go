package service

import "errors"

// Sentinel errors forming the failure taxonomy of the entitlement core.
// Handlers branch on these with errors.Is to pick status codes and
// user-facing messages.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserBlocked       = errors.New("account blocked")
	ErrIPBlocked         = errors.New("ip address blocked")
	ErrQuotaExhausted    = errors.New("question quota exhausted")
	ErrPremiumExpired    = errors.New("premium subscription expired")
	ErrPaymentNotFound   = errors.New("payment request not found")
	ErrPaymentNotPending = errors.New("payment request is not pending")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNotDownloadable   = errors.New("document is not downloadable")
	ErrPlanRequired      = errors.New("a paid plan is required for this feature")
	ErrInvalidPlan       = errors.New("unknown plan")
)
