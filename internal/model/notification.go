package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationKind tells the chat gateway how to render a message.
type NotificationKind string

const (
	NotifyBalanceChanged   NotificationKind = "balance_changed"
	NotifyHandoverPrompt   NotificationKind = "handover_prompt"
	NotifyHandoverResult   NotificationKind = "handover_result"
	NotifyStorageExtended  NotificationKind = "storage_extended"
	NotifyPickupPrompt     NotificationKind = "pickup_prompt"
	NotifyPickupResult     NotificationKind = "pickup_result"
	NotifyReceiptDelivered NotificationKind = "receipt_delivered"
)

// NotificationAction is a button offered together with a prompt.  Action
// is the API path the gateway calls when the button is pressed.
type NotificationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Notification is an outbound chat message addressed to one platform
// user.  Delivery is best-effort.
type Notification struct {
	ID         string               `json:"id"`
	Recipient  string               `json:"recipient"`
	Kind       NotificationKind     `json:"kind"`
	Text       string               `json:"text"`
	CellID     int64                `json:"cell_id,omitempty"`
	Actions    []NotificationAction `json:"actions,omitempty"`
	Attachment string               `json:"attachment,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ReceiptParty identifies one side of a storage agreement on a receipt.
type ReceiptParty struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
}

// ReceiptJob asks the receipt worker to render the storage receipt of a
// freshly confirmed handover and deliver it to both parties.
type ReceiptJob struct {
	ID             string          `json:"id"`
	CellID         int64           `json:"cell_id"`
	CellLabel      int             `json:"cell_label"`
	Customer       ReceiptParty    `json:"customer"`
	Employee       ReceiptParty    `json:"employee"`
	StorageType    StorageType     `json:"storage_type"`
	Price          decimal.Decimal `json:"price"`
	Description    string          `json:"description"`
	ScheduledMonth string          `json:"scheduled_month"`
	Photos         []string        `json:"photos,omitempty"`
	ConfirmedAt    time.Time       `json:"confirmed_at"`
}
