package queue

type TaskType string

const (
	// TaskTypeWebhookDelivery asks a worker to deliver one webhook event row.
	TaskTypeWebhookDelivery TaskType = "webhook_delivery"
)

type DeliveryMessage struct {
	WebhookEventID int64
	OrganizationID int64
	EventType      string
	TraceID        *string
	Attempt        int
}
