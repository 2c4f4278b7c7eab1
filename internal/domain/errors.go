package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")

	// ErrNoChange is returned by a PoolStore update function to abort the
	// write without signalling a failure.
	ErrNoChange = errors.New("no change")
)

// ErrorKind classifies business-rule failures. Every kind is recoverable and
// is reported to callers as a structured result.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindInvalidTransition
	KindPreconditionFailed
	KindUpstreamUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	}
	return "unknown"
}

// DuelError is a coded, user-facing rejection. Code is stable and machine
// checkable; Message is the human-readable reason.
type DuelError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DuelError) Error() string { return e.Message }

func newDuelError(kind ErrorKind, code, msg string) *DuelError {
	return &DuelError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrPoolNotFound        = newDuelError(KindNotFound, "pool_not_found", "Pool not found")
	ErrPriceNotFound       = newDuelError(KindNotFound, "price_not_found", "Price not available")
	ErrWalletRequired      = newDuelError(KindValidation, "wallet_required", "wallet required")
	ErrJoinInputRequired   = newDuelError(KindValidation, "wallet_and_prediction_required", "wallet and prediction required")
	ErrInvalidWallet       = newDuelError(KindValidation, "invalid_wallet", "wallet must be a hex address")
	ErrInvalidPrediction   = newDuelError(KindPreconditionFailed, "invalid_prediction", "prediction must be a positive finite number")
	ErrPoolCompleted       = newDuelError(KindInvalidTransition, "pool_completed", "Pool already completed")
	ErrPoolFull            = newDuelError(KindInvalidTransition, "pool_full", "Pool is full or already joined by this wallet")
	ErrCannotLeave         = newDuelError(KindInvalidTransition, "cannot_leave", "Cannot leave pool at this stage")
	ErrNotReady            = newDuelError(KindPreconditionFailed, "not_ready", "Pool not ready to settle")
	ErrPriceUnavailable    = newDuelError(KindPreconditionFailed, "price_unavailable", "Final price not available")
	ErrUpstreamUnavailable = newDuelError(KindUpstreamUnavailable, "upstream_unavailable", "price feed unavailable")
)

// AsDuelError unwraps err into a *DuelError when it carries one.
func AsDuelError(err error) (*DuelError, bool) {
	var de *DuelError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
