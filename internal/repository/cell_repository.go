package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tire-storage-bonus/internal/database"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

const cellColumns = `id, label, created_at`

const assignmentColumns = `cell_id, customer_id, employee_id, storage_type, price, description,
	scheduled_month, metadata, state, pickup_requested_by, created_at, updated_at`

const eventColumns = `id, cell_id, cell_label, customer_id, employee_id, actor_id, kind, reason, created_at`

// CellRepo provides access to storage_cells, cell_assignments and the
// assignment_events audit log.  Every state transition locks the cell
// row first and then its assignment, so concurrent transitions on the
// same cell are serialised by MySQL.
type CellRepo struct {
	db *sqlx.DB
}

// NewCellRepo returns a CellRepo bound to db.
func NewCellRepo(db *sqlx.DB) *CellRepo { return &CellRepo{db: db} }

// CreateCells allocates new cells.  The label lock row is held for the
// whole transaction; plan receives the existing labels in ascending
// order and returns the labels to insert.
func (r *CellRepo) CreateCells(ctx context.Context, plan func(existing []int) ([]int, error)) ([]model.StorageCell, error) {
	var created []model.StorageCell
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var lock string
		err := tx.GetContext(ctx, &lock, `SELECT name FROM registry_locks WHERE name = ? FOR UPDATE`, database.LabelLockName)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("registry lock %q is missing; run schema setup", database.LabelLockName)
		}
		if err != nil {
			return err
		}

		existing := []int{}
		if err := tx.SelectContext(ctx, &existing, `SELECT label FROM storage_cells ORDER BY label`); err != nil {
			return err
		}
		labels, err := plan(existing)
		if err != nil {
			return err
		}
		if len(labels) == 0 {
			return nil
		}

		now := time.Now().UTC()
		query := `INSERT INTO storage_cells (label, created_at) VALUES `
		args := make([]any, 0, len(labels)*2)
		for i, l := range labels {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, l, now)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}

		q, qargs, err := sqlx.In(`SELECT `+cellColumns+` FROM storage_cells WHERE label IN (?) ORDER BY label`, labels)
		if err != nil {
			return err
		}
		return tx.SelectContext(ctx, &created, tx.Rebind(q), qargs...)
	})
	return created, err
}

// List returns every cell ordered by label with its live assignment.
func (r *CellRepo) List(ctx context.Context) ([]model.StorageCell, error) {
	cells := []model.StorageCell{}
	if err := r.db.SelectContext(ctx, &cells, `SELECT `+cellColumns+` FROM storage_cells ORDER BY label`); err != nil {
		return nil, err
	}
	var assignments []model.CellAssignment
	if err := r.db.SelectContext(ctx, &assignments, `SELECT `+assignmentColumns+` FROM cell_assignments`); err != nil {
		return nil, err
	}
	byCell := make(map[int64]*model.CellAssignment, len(assignments))
	for i := range assignments {
		byCell[assignments[i].CellID] = &assignments[i]
	}
	for i := range cells {
		cells[i].Assignment = byCell[cells[i].ID]
	}
	return cells, nil
}

// Get returns one cell with its assignment or ErrNotFound.
func (r *CellRepo) Get(ctx context.Context, cellID int64) (model.StorageCell, error) {
	var c model.StorageCell
	err := r.db.GetContext(ctx, &c, `SELECT `+cellColumns+` FROM storage_cells WHERE id = ?`, cellID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	var a model.CellAssignment
	err = r.db.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM cell_assignments WHERE cell_id = ?`, cellID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return c, err
	default:
		c.Assignment = &a
	}
	return c, nil
}

func lockCellTx(ctx context.Context, tx *sqlx.Tx, cellID int64) (model.StorageCell, *model.CellAssignment, error) {
	var c model.StorageCell
	err := tx.GetContext(ctx, &c, `SELECT `+cellColumns+` FROM storage_cells WHERE id = ? FOR UPDATE`, cellID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil, ErrNotFound
	}
	if err != nil {
		return c, nil, err
	}
	var a model.CellAssignment
	err = tx.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM cell_assignments WHERE cell_id = ? FOR UPDATE`, cellID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil, nil
	}
	if err != nil {
		return c, nil, err
	}
	return c, &a, nil
}

// MutateAssignment locks cellID and its assignment, asks fn what to do
// and applies the answer: insert, update or delete the assignment and
// append the audit event.  It returns the assignment as it is after the
// change (nil when the cell ended up empty).  A missing cell yields
// ErrNotFound before fn is called.
func (r *CellRepo) MutateAssignment(ctx context.Context, cellID int64, fn func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error)) (*model.CellAssignment, error) {
	var out *model.CellAssignment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		cell, cur, err := lockCellTx(ctx, tx, cellID)
		if err != nil {
			return err
		}
		change, err := fn(cell, cur)
		if err != nil {
			return err
		}
		if change.Unchanged {
			out = cur
			return nil
		}

		switch {
		case change.Next == nil && cur != nil:
			if _, err := tx.ExecContext(ctx, `DELETE FROM cell_assignments WHERE cell_id = ?`, cellID); err != nil {
				return err
			}
		case change.Next != nil && cur == nil:
			next := *change.Next
			next.CellID = cellID
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO cell_assignments (`+assignmentColumns+`)
				 VALUES (:cell_id, :customer_id, :employee_id, :storage_type, :price, :description,
				 :scheduled_month, :metadata, :state, :pickup_requested_by, :created_at, :updated_at)`, next); err != nil {
				return err
			}
		case change.Next != nil:
			next := *change.Next
			next.CellID = cellID
			if _, err := tx.NamedExecContext(ctx,
				`UPDATE cell_assignments SET customer_id = :customer_id, employee_id = :employee_id,
				 storage_type = :storage_type, price = :price, description = :description,
				 scheduled_month = :scheduled_month, metadata = :metadata, state = :state,
				 pickup_requested_by = :pickup_requested_by, updated_at = :updated_at
				 WHERE cell_id = :cell_id`, next); err != nil {
				return err
			}
		}

		if change.Event != nil {
			if err := insertEventTx(ctx, tx, *change.Event); err != nil {
				return err
			}
		}
		if change.Next != nil {
			next := *change.Next
			next.CellID = cellID
			out = &next
		}
		return nil
	})
	return out, err
}

// Delete removes the cell and its assignment regardless of state and
// records the event built by audit.
func (r *CellRepo) Delete(ctx context.Context, cellID int64, audit func(cell model.StorageCell, cur *model.CellAssignment) model.AssignmentEvent) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		cell, cur, err := lockCellTx(ctx, tx, cellID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cell_assignments WHERE cell_id = ?`, cellID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM storage_cells WHERE id = ?`, cellID); err != nil {
			return err
		}
		return insertEventTx(ctx, tx, audit(cell, cur))
	})
}

func insertEventTx(ctx context.Context, tx *sqlx.Tx, ev model.AssignmentEvent) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO assignment_events (cell_id, cell_label, customer_id, employee_id, actor_id, kind, reason, created_at)
		 VALUES (:cell_id, :cell_label, :customer_id, :employee_id, :actor_id, :kind, :reason, :created_at)`, ev)
	return err
}

// Events returns the audit trail of cellID, newest first.
func (r *CellRepo) Events(ctx context.Context, cellID int64, limit int) ([]model.AssignmentEvent, error) {
	out := []model.AssignmentEvent{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+eventColumns+` FROM assignment_events WHERE cell_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		cellID, limit)
	return out, err
}
