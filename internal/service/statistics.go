package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

// StatsStore runs the reporting aggregates.
type StatsStore interface {
	Overview(ctx context.Context, since *time.Time) (model.Statistics, error)
	Worker(ctx context.Context, workerID string, since *time.Time) (model.WorkerStatistics, error)
	Monthly(ctx context.Context, from, to time.Time) (model.MonthlyReport, error)
}

// StatisticsService backs the administrator reports.
type StatisticsService struct {
	store StatsStore
	now   func() time.Time
}

// NewStatisticsService returns a StatisticsService over store.
func NewStatisticsService(store StatsStore) *StatisticsService {
	return &StatisticsService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func parsePeriod(s string) (model.Period, error) {
	p, ok := model.ParsePeriod(s)
	if !ok {
		return "", fmt.Errorf("%w: period %q", ErrInvalidSetting, s)
	}
	return p, nil
}

// Overview aggregates the whole shop for period (day, week, month, all).
func (s *StatisticsService) Overview(ctx context.Context, period string) (model.Statistics, error) {
	p, err := parsePeriod(period)
	if err != nil {
		return model.Statistics{}, err
	}
	st, err := s.store.Overview(ctx, p.Since(s.now()))
	if err != nil {
		return st, fmt.Errorf("statistics: %w", err)
	}
	st.Period = p
	return st, nil
}

// Worker aggregates the operations of one employee.  It returns nil
// when workerID is unknown.
func (s *StatisticsService) Worker(ctx context.Context, workerID, period string) (*model.WorkerStatistics, error) {
	p, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	ws, err := s.store.Worker(ctx, workerID, p.Since(s.now()))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("worker statistics: %w", err)
	}
	ws.Period = p
	return &ws, nil
}

// Monthly reports one calendar month (UTC).
func (s *StatisticsService) Monthly(ctx context.Context, year, month int) (model.MonthlyReport, error) {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return model.MonthlyReport{}, fmt.Errorf("%w: month %d-%02d", ErrInvalidSetting, year, month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	m, err := s.store.Monthly(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return m, fmt.Errorf("monthly report: %w", err)
	}
	m.Year, m.Month = year, month
	return m, nil
}
