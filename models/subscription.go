package models

// Subscription represents a row of the subscriptions table, written by the
// payment-provider webhooks. Amount is in cents; StartedAt and CanceledAt
// are unix-second epochs as delivered by the provider.
type Subscription struct {
	ID         string  `json:"id,omitempty"`
	UserID     string  `json:"user_id"`
	CustomerID string  `json:"customer_id,omitempty"`
	Status     string  `json:"status"`
	Amount     *int64  `json:"amount,omitempty"`
	Currency   *string `json:"currency,omitempty"`
	Interval   *string `json:"interval,omitempty"`
	StartedAt  *int64  `json:"started_at,omitempty"`
	CanceledAt *int64  `json:"canceled_at,omitempty"`
	CreatedAt  *string `json:"created_at,omitempty"`
}

// WebhookEvent represents a row of the webhook_events table, used for the
// admin activity feed.
type WebhookEvent struct {
	ID        string      `json:"id"`
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data,omitempty"`
	CreatedAt string      `json:"created_at"`
}
