package dto

import (
	"encoding/json"
	"time"
)

// WebhookAck is the body of every 2xx webhook response. Stripe only looks at
// the status code; skipped/warning exist for delivery-log debugging.
type WebhookAck struct {
	Received bool   `json:"received"`
	Skipped  bool   `json:"skipped,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

type WebhookEventRecord struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
