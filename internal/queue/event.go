// Package queue defines the notification payloads exchanged over the
// message broker and the background consumer that delivers them. The
// publisher side implements the checkout service's Notifier port, keeping
// email strictly off the request path: a broker or mailer outage can never
// roll back a committed order.
package queue

// Notification kinds mirroring the order status transitions that are
// worth telling the buyer about.
const (
	NotificationOrderCreated   = "order.created"
	NotificationOrderPaid      = "order.paid"
	NotificationOrderCancelled = "order.cancelled"
)

// NotificationItem is one order line carried inside a notification, with
// the snapshotted name and price so consumers never query the database.
type NotificationItem struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Currency       string `json:"currency"`
}

// OrderNotificationEvent is published once per notable order transition.
// It contains enough information for the consumer to render and send the
// email without touching the primary database.
type OrderNotificationEvent struct {
	Kind        string             `json:"kind"`
	OrderID     string             `json:"order_id"`
	UserEmail   string             `json:"user_email"`
	Status      string             `json:"status"`
	TotalMinor  int64              `json:"total_minor"`
	Currency    string             `json:"currency"`
	ApprovalURL string             `json:"approval_url,omitempty"`
	CaptureID   string             `json:"capture_id,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Items       []NotificationItem `json:"items"`
	OccurredAt  string             `json:"occurred_at"`
}
