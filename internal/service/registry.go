package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

const (
	maxCellsPerCall     = 500
	defaultEventsLimit  = 20
	maxEventsLimit      = 200
	scheduledMonthStyle = "2006-01"
)

// CellStore is the persistence behind CellRegistry.  MutateAssignment
// must call fn while both the cell and its assignment are locked and
// apply the returned change atomically.
type CellStore interface {
	CreateCells(ctx context.Context, plan func(existing []int) ([]int, error)) ([]model.StorageCell, error)
	List(ctx context.Context) ([]model.StorageCell, error)
	Get(ctx context.Context, cellID int64) (model.StorageCell, error)
	MutateAssignment(ctx context.Context, cellID int64, fn func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error)) (*model.CellAssignment, error)
	Delete(ctx context.Context, cellID int64, audit func(cell model.StorageCell, cur *model.CellAssignment) model.AssignmentEvent) error
	Events(ctx context.Context, cellID int64, limit int) ([]model.AssignmentEvent, error)
}

// PriceTable maps a storage type to its fixed price.
type PriceTable map[model.StorageType]decimal.Decimal

// Actor is the identity performing a pickup step.
type Actor struct {
	ID   string
	Role model.Role
}

// HandoverRequest is filed by an employee when a customer brings goods.
type HandoverRequest struct {
	CellID         int64             `json:"-"`
	CustomerID     string            `json:"customer_id"`
	EmployeeID     string            `json:"-"`
	StorageType    model.StorageType `json:"storage_type"`
	Description    string            `json:"description"`
	ScheduledMonth string            `json:"scheduled_month"`
	Photos         []string          `json:"photos"`
	Extra          map[string]string `json:"extra"`
}

// CellRegistry manages storage cells and the handover/pickup lifecycle
// of their assignments.  Each transition checks the current state under
// the cell lock and either applies or fails with ErrAssignmentConflict.
type CellRegistry struct {
	store    CellStore
	users    UserLookup
	prices   PriceTable
	notifier Notifier
	receipts ReceiptRequester
	log      *zap.Logger
	now      func() time.Time
}

// NewCellRegistry wires a registry.  users, notifier and receipts may be
// nil.
func NewCellRegistry(store CellStore, users UserLookup, prices PriceTable, notifier Notifier, receipts ReceiptRequester, log *zap.Logger) *CellRegistry {
	return &CellRegistry{
		store:    store,
		users:    users,
		prices:   prices,
		notifier: notifier,
		receipts: receipts,
		log:      orNop(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateCells adds count cells with gap-filled labels.
func (r *CellRegistry) CreateCells(ctx context.Context, count int) ([]model.StorageCell, error) {
	if count < 1 || count > maxCellsPerCall {
		return nil, fmt.Errorf("%w: cell count %d", ErrInvalidAmount, count)
	}
	cells, err := r.store.CreateCells(ctx, func(existing []int) ([]int, error) {
		return NextLabels(existing, count), nil
	})
	if err != nil {
		return nil, fmt.Errorf("create cells: %w", err)
	}
	r.log.Info("cells created", zap.Int("count", len(cells)))
	return cells, nil
}

// Cells lists every cell ordered by label.
func (r *CellRegistry) Cells(ctx context.Context) ([]model.StorageCell, error) {
	return r.store.List(ctx)
}

// Cell returns the cell or nil when it does not exist.
func (r *CellRegistry) Cell(ctx context.Context, cellID int64) (*model.StorageCell, error) {
	c, err := r.store.Get(ctx, cellID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Assignment returns the live assignment of cellID or nil.
func (r *CellRegistry) Assignment(ctx context.Context, cellID int64) (*model.CellAssignment, error) {
	c, err := r.Cell(ctx, cellID)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Assignment, nil
}

// Events lists the audit trail of cellID, newest first.  Events of
// deleted cells stay readable.
func (r *CellRegistry) Events(ctx context.Context, cellID int64, limit int) ([]model.AssignmentEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultEventsLimit
	case limit > maxEventsLimit:
		limit = maxEventsLimit
	}
	return r.store.Events(ctx, cellID, limit)
}

// AssignHandover files a new intake: Empty becomes PendingHandover.  A
// pending intake on the same cell is replaced in place.
func (r *CellRegistry) AssignHandover(ctx context.Context, req HandoverRequest) (*model.CellAssignment, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" || req.EmployeeID == "" {
		return nil, fmt.Errorf("%w: customer and employee are required", ErrInvalidInput)
	}
	price, ok := r.prices[req.StorageType]
	if !ok {
		return nil, fmt.Errorf("%w: storage type %q", ErrInvalidSetting, req.StorageType)
	}
	if err := validMonth(req.ScheduledMonth); err != nil {
		return nil, err
	}
	if r.users != nil {
		if _, err := r.users.GetByID(ctx, req.CustomerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.CustomerID)
			}
			return nil, err
		}
	}

	now := r.now()
	var label int
	out, err := r.store.MutateAssignment(ctx, req.CellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		next := model.CellAssignment{CreatedAt: now}
		switch model.StateOf(cur) {
		case model.StateEmpty:
		case model.StatePendingHandover:
			next.CreatedAt = cur.CreatedAt
		default:
			return model.AssignmentChange{}, conflict(cell, cur, "file a handover")
		}
		next.CellID = cell.ID
		next.CustomerID = req.CustomerID
		next.EmployeeID = req.EmployeeID
		next.StorageType = req.StorageType
		next.Price = price
		next.Description = strings.TrimSpace(req.Description)
		next.ScheduledMonth = req.ScheduledMonth
		next.Metadata = model.AssignmentMetadata{Photos: req.Photos, Extra: req.Extra}
		next.State = model.StatePendingHandover
		next.UpdatedAt = now
		return model.AssignmentChange{
			Next:  &next,
			Event: newEvent(cell, &next, req.EmployeeID, model.EventHandoverRequested, "", now),
		}, nil
	})
	if err != nil {
		return nil, cellErr(req.CellID, err)
	}
	r.log.Info("handover requested", zap.Int64("cell_id", req.CellID), zap.String("customer_id", req.CustomerID))
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: out.CustomerID,
		Kind:      model.NotifyHandoverPrompt,
		Text: fmt.Sprintf("Cell %d: %s stored until %s, price %s. Please confirm the handover.",
			label, out.StorageType, out.ScheduledMonth, out.Price.StringFixed(2)),
		CellID: out.CellID,
		Actions: []model.NotificationAction{
			{Label: "Confirm", Action: fmt.Sprintf("/v1/cells/%d/handover/confirm", out.CellID)},
			{Label: "Reject", Action: fmt.Sprintf("/v1/cells/%d/handover/reject", out.CellID)},
		},
		CreatedAt: now,
	})
	return out, nil
}

// ConfirmHandover is the customer's acceptance: PendingHandover becomes
// Confirmed and a receipt is queued.  Confirming twice is a no-op.
func (r *CellRegistry) ConfirmHandover(ctx context.Context, cellID int64, customerID string) (*model.CellAssignment, error) {
	now := r.now()
	var (
		label     int
		confirmed bool
	)
	out, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		switch model.StateOf(cur) {
		case model.StatePendingHandover, model.StateConfirmed:
		default:
			return model.AssignmentChange{}, conflict(cell, cur, "confirm a handover")
		}
		if cur.CustomerID != customerID {
			return model.AssignmentChange{}, fmt.Errorf("%w: cell %d is assigned to another customer", ErrForbidden, cell.ID)
		}
		if cur.State == model.StateConfirmed {
			return model.AssignmentChange{Unchanged: true}, nil
		}
		next := *cur
		next.State = model.StateConfirmed
		next.UpdatedAt = now
		confirmed = true
		return model.AssignmentChange{
			Next:  &next,
			Event: newEvent(cell, &next, customerID, model.EventHandoverConfirmed, "", now),
		}, nil
	})
	if err != nil {
		return nil, cellErr(cellID, err)
	}
	if !confirmed {
		return out, nil
	}
	r.log.Info("handover confirmed", zap.Int64("cell_id", cellID), zap.String("customer_id", customerID))
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: out.EmployeeID,
		Kind:      model.NotifyHandoverResult,
		Text:      fmt.Sprintf("Cell %d: the customer confirmed the handover.", label),
		CellID:    cellID,
		CreatedAt: now,
	})
	r.requestReceipt(ctx, label, *out, now)
	return out, nil
}

// RejectHandover is the customer's refusal.  The pending assignment is
// removed and the cell is empty again; the audit event keeps reason.
func (r *CellRegistry) RejectHandover(ctx context.Context, cellID int64, customerID, reason string) error {
	now := r.now()
	var (
		label  int
		before model.CellAssignment
	)
	_, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		if model.StateOf(cur) != model.StatePendingHandover {
			return model.AssignmentChange{}, conflict(cell, cur, "reject a handover")
		}
		if cur.CustomerID != customerID {
			return model.AssignmentChange{}, fmt.Errorf("%w: cell %d is assigned to another customer", ErrForbidden, cell.ID)
		}
		before = *cur
		return model.AssignmentChange{
			Event: newEvent(cell, cur, customerID, model.EventHandoverRejected, reason, now),
		}, nil
	})
	if err != nil {
		return cellErr(cellID, err)
	}
	r.log.Info("handover rejected", zap.Int64("cell_id", cellID), zap.String("customer_id", customerID))
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: before.EmployeeID,
		Kind:      model.NotifyHandoverResult,
		Text:      withReason(fmt.Sprintf("Cell %d: the customer rejected the handover.", label), reason),
		CellID:    cellID,
		CreatedAt: now,
	})
	return nil
}

// ExtendStorage moves the paid-until month of a confirmed assignment.
// Nothing else changes.
func (r *CellRegistry) ExtendStorage(ctx context.Context, cellID int64, month, actorID string) (*model.CellAssignment, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}
	now := r.now()
	var label int
	out, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		if err := requireState(cell, cur, model.StateConfirmed, "extend storage"); err != nil {
			return model.AssignmentChange{}, err
		}
		next := *cur
		next.ScheduledMonth = month
		next.UpdatedAt = now
		return model.AssignmentChange{
			Next:  &next,
			Event: newEvent(cell, &next, actorID, model.EventStorageExtended, "until "+month, now),
		}, nil
	})
	if err != nil {
		return nil, cellErr(cellID, err)
	}
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: out.CustomerID,
		Kind:      model.NotifyStorageExtended,
		Text:      fmt.Sprintf("Cell %d: storage extended until %s.", label, month),
		CellID:    cellID,
		CreatedAt: now,
	})
	return out, nil
}

// RequestPickup starts the return of the goods: Confirmed becomes
// PendingPickup.  Staff or the owning customer may ask; the other side
// confirms.
func (r *CellRegistry) RequestPickup(ctx context.Context, cellID int64, actor Actor) (*model.CellAssignment, error) {
	now := r.now()
	var label int
	out, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		if err := requireState(cell, cur, model.StateConfirmed, "request a pickup"); err != nil {
			return model.AssignmentChange{}, err
		}
		if !actor.Role.Staff() && actor.ID != cur.CustomerID {
			return model.AssignmentChange{}, fmt.Errorf("%w: cell %d is assigned to another customer", ErrForbidden, cell.ID)
		}
		next := *cur
		next.State = model.StatePendingPickup
		next.PickupRequestedBy = actor.ID
		next.UpdatedAt = now
		return model.AssignmentChange{
			Next:  &next,
			Event: newEvent(cell, &next, actor.ID, model.EventPickupRequested, "", now),
		}, nil
	})
	if err != nil {
		return nil, cellErr(cellID, err)
	}
	r.log.Info("pickup requested", zap.Int64("cell_id", cellID), zap.String("actor_id", actor.ID))
	recipient := out.CustomerID
	if actor.ID == out.CustomerID {
		recipient = out.EmployeeID
	}
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: recipient,
		Kind:      model.NotifyPickupPrompt,
		Text:      fmt.Sprintf("Cell %d: pickup requested. Please confirm.", label),
		CellID:    cellID,
		Actions: []model.NotificationAction{
			{Label: "Confirm", Action: fmt.Sprintf("/v1/cells/%d/pickup/confirm", cellID)},
			{Label: "Reject", Action: fmt.Sprintf("/v1/cells/%d/pickup/reject", cellID)},
		},
		CreatedAt: now,
	})
	return out, nil
}

// ConfirmPickup completes the return: the assignment is removed and the
// cell is empty.  Only the counter-party of the request may confirm.
func (r *CellRegistry) ConfirmPickup(ctx context.Context, cellID int64, actor Actor) error {
	now := r.now()
	var (
		label     int
		requester string
	)
	_, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		if err := requirePickupCounterParty(cell, cur, actor); err != nil {
			return model.AssignmentChange{}, err
		}
		requester = cur.PickupRequestedBy
		return model.AssignmentChange{
			Event: newEvent(cell, cur, actor.ID, model.EventPickupConfirmed, "", now),
		}, nil
	})
	if err != nil {
		return cellErr(cellID, err)
	}
	r.log.Info("pickup confirmed", zap.Int64("cell_id", cellID), zap.String("actor_id", actor.ID))
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: requester,
		Kind:      model.NotifyPickupResult,
		Text:      fmt.Sprintf("Cell %d: pickup confirmed, the cell is free.", label),
		CellID:    cellID,
		CreatedAt: now,
	})
	return nil
}

// RejectPickup cancels a pickup request; the assignment is Confirmed
// again.
func (r *CellRegistry) RejectPickup(ctx context.Context, cellID int64, actor Actor, reason string) (*model.CellAssignment, error) {
	now := r.now()
	var (
		label     int
		requester string
	)
	out, err := r.store.MutateAssignment(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		label = cell.Label
		if err := requirePickupCounterParty(cell, cur, actor); err != nil {
			return model.AssignmentChange{}, err
		}
		requester = cur.PickupRequestedBy
		next := *cur
		next.State = model.StateConfirmed
		next.PickupRequestedBy = ""
		next.UpdatedAt = now
		return model.AssignmentChange{
			Next:  &next,
			Event: newEvent(cell, &next, actor.ID, model.EventPickupRejected, reason, now),
		}, nil
	})
	if err != nil {
		return nil, cellErr(cellID, err)
	}
	deliver(ctx, r.notifier, r.log, model.Notification{
		Recipient: requester,
		Kind:      model.NotifyPickupResult,
		Text:      withReason(fmt.Sprintf("Cell %d: pickup rejected.", label), reason),
		CellID:    cellID,
		CreatedAt: now,
	})
	return out, nil
}

// DeleteCell removes the cell and whatever it holds, bypassing the
// confirmation workflow.
func (r *CellRegistry) DeleteCell(ctx context.Context, cellID int64, actorID string) error {
	now := r.now()
	err := r.store.Delete(ctx, cellID, func(cell model.StorageCell, cur *model.CellAssignment) model.AssignmentEvent {
		return *newEvent(cell, cur, actorID, model.EventCellDeleted, string(model.StateOf(cur)), now)
	})
	if err != nil {
		return cellErr(cellID, err)
	}
	r.log.Info("cell deleted", zap.Int64("cell_id", cellID), zap.String("actor_id", actorID))
	return nil
}

func (r *CellRegistry) requestReceipt(ctx context.Context, label int, a model.CellAssignment, at time.Time) {
	if r.receipts == nil {
		return
	}
	job := model.ReceiptJob{
		CellID:         a.CellID,
		CellLabel:      label,
		Customer:       r.party(ctx, a.CustomerID),
		Employee:       r.party(ctx, a.EmployeeID),
		StorageType:    a.StorageType,
		Price:          a.Price,
		Description:    a.Description,
		ScheduledMonth: a.ScheduledMonth,
		Photos:         a.Metadata.Photos,
		ConfirmedAt:    at,
	}
	if err := r.receipts.RequestReceipt(ctx, job); err != nil {
		r.log.Warn("receipt not queued", zap.Int64("cell_id", a.CellID), zap.Error(err))
	}
}

func (r *CellRegistry) party(ctx context.Context, userID string) model.ReceiptParty {
	p := model.ReceiptParty{UserID: userID, Name: userID}
	if r.users == nil {
		return p
	}
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return p
	}
	p.Name = u.Name
	p.Phone = u.PhoneOrEmpty()
	return p
}

func newEvent(cell model.StorageCell, a *model.CellAssignment, actorID string, kind model.AssignmentEventKind, reason string, at time.Time) *model.AssignmentEvent {
	ev := &model.AssignmentEvent{
		CellID:    cell.ID,
		CellLabel: cell.Label,
		ActorID:   actorID,
		Kind:      kind,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: at,
	}
	if a != nil {
		ev.CustomerID = a.CustomerID
		ev.EmployeeID = a.EmployeeID
	}
	return ev
}

func conflict(cell model.StorageCell, cur *model.CellAssignment, op string) error {
	return fmt.Errorf("%w: cannot %s on cell %d in state %s", ErrAssignmentConflict, op, cell.Label, model.StateOf(cur))
}

// requireState fails with ErrAssignmentNotFound on an empty cell and
// with ErrAssignmentConflict on any other wrong state.
func requireState(cell model.StorageCell, cur *model.CellAssignment, want model.AssignmentState, op string) error {
	if cur == nil {
		return fmt.Errorf("%w: cell %d is empty", ErrAssignmentNotFound, cell.Label)
	}
	if cur.State != want {
		return conflict(cell, cur, op)
	}
	return nil
}

// requirePickupCounterParty checks that actor is the other side of the
// pending pickup: staff answers a customer's request, the customer
// answers a staff request.
func requirePickupCounterParty(cell model.StorageCell, cur *model.CellAssignment, actor Actor) error {
	if err := requireState(cell, cur, model.StatePendingPickup, "answer a pickup"); err != nil {
		return err
	}
	if actor.ID == cur.PickupRequestedBy {
		return fmt.Errorf("%w: the requester cannot answer their own pickup", ErrForbidden)
	}
	if cur.PickupRequestedBy == cur.CustomerID {
		if !actor.Role.Staff() {
			return fmt.Errorf("%w: pickup must be answered by staff", ErrForbidden)
		}
		return nil
	}
	if actor.ID != cur.CustomerID {
		return fmt.Errorf("%w: pickup must be answered by the customer", ErrForbidden)
	}
	return nil
}

func validMonth(m string) error {
	if _, err := time.Parse(scheduledMonthStyle, m); err != nil {
		return fmt.Errorf("%w: month %q is not YYYY-MM", ErrInvalidInput, m)
	}
	return nil
}

func withReason(text, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return text + " Reason: " + reason
	}
	return text
}

func cellErr(cellID int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrCellNotFound, cellID)
	}
	return err
}
