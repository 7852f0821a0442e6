package model

import (
	"time"

	"gorm.io/datatypes"
)

// Student is the billing subject: every payment-related field lives on the
// student row, and siblings in one family share a family_id and therefore a
// Stripe customer. All students for one customer must transition together.
type Student struct {
	ID       string  `gorm:"primaryKey;size:36;not null"` // uuid
	FamilyID string  `gorm:"size:36;index;not null"`
	Name     string  `gorm:"size:128;not null"`
	Program  Program `gorm:"size:16;index;not null"`

	EnrollmentStatus EnrollmentStatus `gorm:"size:32;index;not null"`

	StripeCustomerID     string                      `gorm:"size:64;index"`
	StripeSubscriptionID *string                     `gorm:"size:64;index"`
	SubscriptionStatus   *SubscriptionStatus         `gorm:"size:32"`
	SubscriptionHistory  datatypes.JSONSlice[string] // prior subscription ids, oldest first

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	PaidUntil          *time.Time

	PaymentMethodCaptured   bool `gorm:"not null;default:false"`
	PaymentMethodCapturedAt *time.Time

	StatusUpdatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WebhookEvent is the idempotency record. A row existing for
// (event_id, source) means processing has started or completed; the row is
// deleted only when handling failed for a reason a provider retry can fix.
type WebhookEvent struct {
	ID        uint           `gorm:"primaryKey"`
	EventID   string         `gorm:"size:128;not null;uniqueIndex:idx_webhook_event_source"`
	Source    Program        `gorm:"size:16;not null;uniqueIndex:idx_webhook_event_source"`
	EventType string         `gorm:"size:64;index"`
	Payload   datatypes.JSON // raw event body, kept for audit/replay
	CreatedAt time.Time
}
