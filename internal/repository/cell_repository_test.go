package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

var assignmentRowColumns = []string{
	"cell_id", "customer_id", "employee_id", "storage_type", "price", "description",
	"scheduled_month", "metadata", "state", "pickup_requested_by", "created_at", "updated_at",
}

func TestCreateCellsHoldsLabelLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCellRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM registry_locks WHERE name = ? FOR UPDATE`)).
		WithArgs("storage_cell_labels").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("storage_cell_labels"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT label FROM storage_cells ORDER BY label`)).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow(1).AddRow(3).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO storage_cells (label, created_at) VALUES (?, ?),(?, ?),(?, ?)`)).
		WillReturnResult(sqlmock.NewResult(10, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storage_cells WHERE label IN (?, ?, ?) ORDER BY label`)).
		WithArgs(2, 4, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "created_at"}).
			AddRow(10, 2, now).AddRow(11, 4, now).AddRow(12, 6, now))
	mock.ExpectCommit()

	var seen []int
	cells, err := repo.CreateCells(context.Background(), func(existing []int) ([]int, error) {
		seen = existing
		return []int{2, 4, 6}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 5}, seen)
	require.Len(t, cells, 3)
	require.Equal(t, 6, cells[2].Label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateAssignmentDeletesAndAudits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCellRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storage_cells WHERE id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "created_at"}).AddRow(7, 3, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM cell_assignments WHERE cell_id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(assignmentRowColumns).
			AddRow(7, "c1", "e1", "tires", "3000.00", "winter set", "2025-12", []byte(`{"photos":["p1","p2"]}`),
				"PENDING_HANDOVER", "", now, now))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cell_assignments WHERE cell_id = ?`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assignment_events`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := repo.MutateAssignment(context.Background(), 7, func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error) {
		require.Equal(t, 3, cell.Label)
		require.NotNil(t, cur)
		require.Equal(t, []string{"p1", "p2"}, cur.Metadata.Photos)
		require.Equal(t, model.StatePendingHandover, cur.State)
		return model.AssignmentChange{Event: &model.AssignmentEvent{
			CellID: cell.ID, CellLabel: cell.Label, CustomerID: cur.CustomerID, EmployeeID: cur.EmployeeID,
			ActorID: "c1", Kind: model.EventHandoverRejected, CreatedAt: now,
		}}, nil
	})
	require.NoError(t, err)
	require.Nil(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateAssignmentUnknownCell(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCellRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storage_cells WHERE id = ? FOR UPDATE`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "created_at"}))
	mock.ExpectRollback()

	_, err := repo.MutateAssignment(context.Background(), 99, func(model.StorageCell, *model.CellAssignment) (model.AssignmentChange, error) {
		t.Fatal("transition must not run for a missing cell")
		return model.AssignmentChange{}, nil
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
