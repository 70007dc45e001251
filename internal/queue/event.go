// Package queue moves notifications and receipt jobs through RabbitMQ.
// The API publishes; the chat gateway consumes notifications.outbound
// and this process consumes storage.receipts itself.
package queue

const (
	// NotificationsQueue carries model.Notification messages for the
	// chat gateway.
	NotificationsQueue = "notifications.outbound"
	// ReceiptsQueue carries model.ReceiptJob messages for the receipt
	// worker.
	ReceiptsQueue = "storage.receipts"
)

// Queues lists every queue declared by the publisher and the consumer.
var Queues = []string{NotificationsQueue, ReceiptsQueue}
