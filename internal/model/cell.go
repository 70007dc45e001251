package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentState is the lifecycle position of a storage cell.  A cell
// without an assignment row is StateEmpty; assignment rows only ever
// hold one of the other three values.
type AssignmentState string

const (
	StateEmpty           AssignmentState = "EMPTY"
	StatePendingHandover AssignmentState = "PENDING_HANDOVER"
	StateConfirmed       AssignmentState = "CONFIRMED"
	StatePendingPickup   AssignmentState = "PENDING_PICKUP"
)

// StateOf returns the state of a cell whose live assignment is a.
func StateOf(a *CellAssignment) AssignmentState {
	if a == nil {
		return StateEmpty
	}
	return a.State
}

// StorageType is the category of goods placed in a cell.  It selects the
// price at intake time.
type StorageType string

const (
	StorageTires         StorageType = "tires"
	StorageTiresWithRims StorageType = "tires-with-rims"
)

// StorageCell represents a physical slot (`storage_cells`).  Label is
// the number painted on the slot; it is unique and kept dense.
//
// Fields:
//
//	ID         – surrogate key used by the API.
//	Label      – visible slot number.
//	CreatedAt  – when the slot was registered.
//	Assignment – live assignment, nil when the cell is empty.
type StorageCell struct {
	ID         int64           `db:"id" json:"id"`
	Label      int             `db:"label" json:"label"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	Assignment *CellAssignment `db:"-" json:"assignment,omitempty"`
}

// State returns the lifecycle state of the cell.
func (c StorageCell) State() AssignmentState { return StateOf(c.Assignment) }

// AssignmentMetadata holds the photo references and any extra free-form
// attributes collected at intake.  It is persisted as a JSON column.
type AssignmentMetadata struct {
	Photos []string          `json:"photos,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Value implements driver.Valuer.
func (m AssignmentMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *AssignmentMetadata) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = AssignmentMetadata{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	if len(b) == 0 {
		*m = AssignmentMetadata{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// CellAssignment is the single live assignment of a cell
// (`cell_assignments`, keyed by cell_id).
//
// Fields:
//
//	CellID            – the occupied cell.
//	CustomerID        – owner of the stored goods.
//	EmployeeID        – employee who filed the intake.
//	StorageType       – category that determined the price.
//	Price             – price fixed at intake, never recomputed.
//	Description       – free text about the goods.
//	ScheduledMonth    – storage paid until this month, "YYYY-MM".
//	Metadata          – photos and extra attributes.
//	State             – PENDING_HANDOVER, CONFIRMED or PENDING_PICKUP.
//	PickupRequestedBy – who asked for the pickup while PENDING_PICKUP.
type CellAssignment struct {
	CellID            int64              `db:"cell_id" json:"cell_id"`
	CustomerID        string             `db:"customer_id" json:"customer_id"`
	EmployeeID        string             `db:"employee_id" json:"employee_id"`
	StorageType       StorageType        `db:"storage_type" json:"storage_type"`
	Price             decimal.Decimal    `db:"price" json:"price"`
	Description       string             `db:"description" json:"description"`
	ScheduledMonth    string             `db:"scheduled_month" json:"scheduled_month"`
	Metadata          AssignmentMetadata `db:"metadata" json:"metadata"`
	State             AssignmentState    `db:"state" json:"state"`
	PickupRequestedBy string             `db:"pickup_requested_by" json:"pickup_requested_by,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// AssignmentEventKind labels an entry of the assignment audit log.
type AssignmentEventKind string

const (
	EventHandoverRequested AssignmentEventKind = "handover_requested"
	EventHandoverConfirmed AssignmentEventKind = "handover_confirmed"
	EventHandoverRejected  AssignmentEventKind = "handover_rejected"
	EventStorageExtended   AssignmentEventKind = "storage_extended"
	EventPickupRequested   AssignmentEventKind = "pickup_requested"
	EventPickupConfirmed   AssignmentEventKind = "pickup_confirmed"
	EventPickupRejected    AssignmentEventKind = "pickup_rejected"
	EventCellDeleted       AssignmentEventKind = "cell_deleted"
)

// AssignmentEvent is an append-only record of one state transition.
// Rows survive deletion of the cell they describe.
type AssignmentEvent struct {
	ID         uint64              `db:"id" json:"id"`
	CellID     int64               `db:"cell_id" json:"cell_id"`
	CellLabel  int                 `db:"cell_label" json:"cell_label"`
	CustomerID string              `db:"customer_id" json:"customer_id"`
	EmployeeID string              `db:"employee_id" json:"employee_id"`
	ActorID    string              `db:"actor_id" json:"actor_id"`
	Kind       AssignmentEventKind `db:"kind" json:"kind"`
	Reason     string              `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}

// AssignmentChange is what a transition decides to do with the live
// assignment of a cell.  Next == nil removes the assignment.  Unchanged
// leaves the row untouched and writes no event.
type AssignmentChange struct {
	Next      *CellAssignment
	Event     *AssignmentEvent
	Unchanged bool
}
