package model

// Program identifies which Stripe account an event came from. Each program
// has its own webhook endpoint and signing secret.
type Program string

const (
	ProgramDugsi Program = "dugsi"
	ProgramMahad Program = "mahad"
)

// EnrollmentStatus is the internal membership state derived from the
// subscription status. It is never set independently of the subscription
// status coming off a webhook.
type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentRegistered EnrollmentStatus = "registered"
	EnrollmentWithdrawn  EnrollmentStatus = "withdrawn"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPaused            SubscriptionStatus = "paused"
)

// enrollmentFor is total over every recognized subscription status.
// past_due keeps the student enrolled: families get a grace period while a
// payment retries, access is not suspended.
var enrollmentFor = map[SubscriptionStatus]EnrollmentStatus{
	SubscriptionActive:            EnrollmentEnrolled,
	SubscriptionPastDue:           EnrollmentEnrolled,
	SubscriptionTrialing:          EnrollmentRegistered,
	SubscriptionIncomplete:        EnrollmentRegistered,
	SubscriptionUnpaid:            EnrollmentWithdrawn,
	SubscriptionCanceled:          EnrollmentWithdrawn,
	SubscriptionIncompleteExpired: EnrollmentWithdrawn,
	SubscriptionPaused:            EnrollmentWithdrawn,
}

// EnrollmentStatus maps a subscription status to the membership state it
// implies. ok is false for unrecognized values, which callers must reject
// rather than store.
func (s SubscriptionStatus) EnrollmentStatus() (EnrollmentStatus, bool) {
	e, ok := enrollmentFor[s]
	return e, ok
}

// Valid reports whether s is a recognized subscription status.
func (s SubscriptionStatus) Valid() bool {
	_, ok := enrollmentFor[s]
	return ok
}
