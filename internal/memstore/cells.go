package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

func copyAssignment(a model.CellAssignment) *model.CellAssignment {
	if a.Metadata.Photos != nil {
		a.Metadata.Photos = append([]string(nil), a.Metadata.Photos...)
	}
	if a.Metadata.Extra != nil {
		extra := make(map[string]string, len(a.Metadata.Extra))
		for k, v := range a.Metadata.Extra {
			extra[k] = v
		}
		a.Metadata.Extra = extra
	}
	return &a
}

func (s *Store) withAssignment(c model.StorageCell) model.StorageCell {
	if a, ok := s.assignments[c.ID]; ok {
		c.Assignment = copyAssignment(a)
	}
	return c
}

// CreateCells allocates cells under the store lock; plan receives the
// existing labels in ascending order.
func (s *Store) CreateCells(_ context.Context, plan func(existing []int) ([]int, error)) ([]model.StorageCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make([]int, 0, len(s.cells))
	used := make(map[int]bool, len(s.cells))
	for _, c := range s.cells {
		existing = append(existing, c.Label)
		used[c.Label] = true
	}
	sort.Ints(existing)
	labels, err := plan(existing)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if used[l] {
			return nil, repository.ErrConflict
		}
	}
	now := s.now()
	out := make([]model.StorageCell, 0, len(labels))
	for _, l := range labels {
		s.nextCellID++
		c := model.StorageCell{ID: s.nextCellID, Label: l, CreatedAt: now}
		s.cells[c.ID] = c
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// List returns every cell ordered by label with its live assignment.
func (s *Store) List(_ context.Context) ([]model.StorageCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.StorageCell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, s.withAssignment(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Get returns one cell with its assignment or repository.ErrNotFound.
func (s *Store) Get(_ context.Context, cellID int64) (model.StorageCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[cellID]
	if !ok {
		return c, repository.ErrNotFound
	}
	return s.withAssignment(c), nil
}

// MutateAssignment applies the change fn decides on atomically, the same
// contract as the MySQL CellRepo.
func (s *Store) MutateAssignment(_ context.Context, cellID int64, fn func(cell model.StorageCell, cur *model.CellAssignment) (model.AssignmentChange, error)) (*model.CellAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[cellID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var cur *model.CellAssignment
	if a, ok := s.assignments[cellID]; ok {
		cur = copyAssignment(a)
	}
	change, err := fn(cell, cur)
	if err != nil {
		return nil, err
	}
	if change.Unchanged {
		return cur, nil
	}
	if change.Next == nil {
		delete(s.assignments, cellID)
	} else {
		next := *copyAssignment(*change.Next)
		next.CellID = cellID
		s.assignments[cellID] = next
	}
	if change.Event != nil {
		s.appendEvent(*change.Event)
	}
	if change.Next == nil {
		return nil, nil
	}
	return copyAssignment(s.assignments[cellID]), nil
}

// Delete removes the cell and its assignment and records the event
// built by audit.
func (s *Store) Delete(_ context.Context, cellID int64, audit func(cell model.StorageCell, cur *model.CellAssignment) model.AssignmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[cellID]
	if !ok {
		return repository.ErrNotFound
	}
	var cur *model.CellAssignment
	if a, ok := s.assignments[cellID]; ok {
		cur = copyAssignment(a)
	}
	delete(s.assignments, cellID)
	delete(s.cells, cellID)
	s.appendEvent(audit(cell, cur))
	return nil
}

func (s *Store) appendEvent(ev model.AssignmentEvent) {
	ev.ID = uint64(len(s.events) + 1)
	s.events = append(s.events, ev)
}

// Events returns the audit trail of cellID, newest first.
func (s *Store) Events(_ context.Context, cellID int64, limit int) ([]model.AssignmentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AssignmentEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CellID == cellID {
			out = append(out, s.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
