package service

import "errors"

// The closed set of webhook failure kinds. The HTTP handler makes its
// retry-vs-terminate decision from these types alone, never from error
// message text.
var (
	// ErrMissingSignature: no signature header was sent. Rejected before any
	// verification attempt or bookkeeping.
	ErrMissingSignature = errors.New("missing signature header")

	// ErrInvalidSignature: verification failed. The reason is deliberately
	// not exposed to the caller.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrEmptyBody: request carried no payload.
	ErrEmptyBody = errors.New("empty request body")

	// ErrMalformedPayload: the envelope could not be parsed after the
	// signature checked out.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// DataQualityError is a terminal failure caused by the payload's content, not
// by this system: a retry would deliver the same bad data. The event is
// acknowledged with a warning and the idempotency record is kept.
type DataQualityError struct {
	Reason string
}

func (e *DataQualityError) Error() string {
	return e.Reason
}

func dataQuality(reason string) error {
	return &DataQualityError{Reason: reason}
}

// IsTerminal reports whether err will not be resolved by the provider
// retrying the delivery. Anything outside the closed set above is treated as
// transient: the idempotency record is removed and a 5xx asks for a retry.
func IsTerminal(err error) bool {
	var dq *DataQualityError
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrEmptyBody) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.As(err, &dq)
}
