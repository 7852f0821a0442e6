package model

import (
	"encoding/json"
	"time"
)

// Event types handled by the webhook service. Anything else is acknowledged
// and ignored so new provider event types never break delivery.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// StripeEvent is the webhook envelope, parsed only after the signature over
// the raw body has been verified.
type StripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    StripeEventData `json:"data"`
}

type StripeEventData struct {
	Raw json.RawMessage `json:"object"`
}

// CustomerRef tolerates both shapes Stripe sends for a customer field: a bare
// id string, or an expanded customer object when the event was fetched with
// expansion.
type CustomerRef struct {
	ID string
}

func (c *CustomerRef) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		c.ID = ""
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &c.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.ID = obj.ID
	return nil
}

func (c CustomerRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ID)
}

// CheckoutSession is the subset of checkout.session.completed we act on.
type CheckoutSession struct {
	ID                string      `json:"id"`
	Mode              string      `json:"mode"`
	ClientReferenceID string      `json:"client_reference_id"`
	Customer          CustomerRef `json:"customer"`
}

// Subscription is the subset of a customer.subscription.* payload we act on.
// The payload is an absolute snapshot of subscription state, never a delta.
type Subscription struct {
	ID                 string      `json:"id"`
	Status             string      `json:"status"`
	Customer           CustomerRef `json:"customer"`
	CurrentPeriodStart int64       `json:"current_period_start"`
	CurrentPeriodEnd   int64       `json:"current_period_end"`
	CanceledAt         int64       `json:"canceled_at"`
}

// PeriodStart returns the billing period start, or nil when the payload
// carries none (a trialing subscription commonly has no period bounds yet).
func (s *Subscription) PeriodStart() *time.Time {
	return unixTime(s.CurrentPeriodStart)
}

func (s *Subscription) PeriodEnd() *time.Time {
	return unixTime(s.CurrentPeriodEnd)
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
