package sale

import "errors"

// Kind groups rejection reasons so transports can map them to status codes.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindTemporalGate        Kind = "temporal_gate"
	KindAdmissionDenied     Kind = "admission_denied"
	KindCapacityExceeded    Kind = "capacity_exceeded"
	KindLifecycleViolation  Kind = "lifecycle_violation"
	KindInsufficientFunding Kind = "insufficient_funding"
	KindEntitlementError    Kind = "entitlement_error"
	KindAuthorizationError  Kind = "authorization_error"
	KindInvalidArgument     Kind = "invalid_argument"
)

// Error is a synchronous rejection. The sale state is untouched when one is returned.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Temporal gate.
var (
	ErrNotStarted   = newError(KindTemporalGate, "not started")
	ErrAlreadyEnded = newError(KindTemporalGate, "already ended")
)

// Admission.
var (
	ErrPaused              = newError(KindAdmissionDenied, "paused")
	ErrNotAuthorized       = newError(KindAdmissionDenied, "not authorized")
	ErrBeneficiaryConflict = newError(KindAdmissionDenied, "can't vote for multiple beneficiaries")
)

// Capacity.
var ErrLimitExceeded = newError(KindCapacityExceeded, "total amount exceeded")

// Lifecycle.
var (
	ErrAlreadyInitialized = newError(KindLifecycleViolation, "already initialized")
	ErrNotInitialized     = newError(KindLifecycleViolation, "not initialized")
	ErrNotFinished        = newError(KindLifecycleViolation, "not finished")
	ErrAlreadyFinalized   = newError(KindLifecycleViolation, "already finalized")
	ErrNotFinalized       = newError(KindLifecycleViolation, "sale not finalized")
	ErrNotPaused          = newError(KindLifecycleViolation, "not paused")
)

// Funding.
var ErrNotEnoughBalance = newError(KindInsufficientFunding, "not enough balance")

// Entitlement.
var (
	ErrZeroAmount     = newError(KindEntitlementError, "amount in should be > 0")
	ErrAlreadyClaimed = newError(KindEntitlementError, "already claimed")
	ErrNothingToClaim = newError(KindEntitlementError, "nothing to claim")
)

// Authorization.
var ErrNotOwner = newError(KindAuthorizationError, "caller is not the owner")

// Invalid arguments to initialize and the setters.
var (
	ErrZeroPrice     = newError(KindInvalidArgument, "token out price should be > 0")
	ErrZeroDuration  = newError(KindInvalidArgument, "sale duration should be > 0")
	ErrZeroRecipient = newError(KindInvalidArgument, "sale recipient is the zero address")
	ErrNegativeLimit = newError(KindInvalidArgument, "token in limit should be >= 0")
	ErrZeroOwner     = newError(KindInvalidArgument, "new owner is the zero address")
	ErrTokenMismatch = newError(KindInvalidArgument, "state does not match the configured tokens")
	ErrMissingAsset  = newError(KindInvalidArgument, "token in and token out are required")
	ErrSameAsset     = newError(KindInvalidArgument, "token in and token out must differ")
)

// KindOf returns the kind of a sale rejection, or KindUnknown for collaborator failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
