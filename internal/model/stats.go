package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period selects the reporting window of the statistics screens.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod accepts day, week, month or all.  An empty string means all.
func ParsePeriod(s string) (Period, bool) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PeriodAll, true
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return p, true
	}
	return "", false
}

// Since returns the start of the window ending at now, or nil for all.
// A month is a rolling 30 days.
func (p Period) Since(now time.Time) *time.Time {
	var t time.Time
	switch p {
	case PeriodDay:
		t = now.AddDate(0, 0, -1)
	case PeriodWeek:
		t = now.AddDate(0, 0, -7)
	case PeriodMonth:
		t = now.AddDate(0, 0, -30)
	default:
		return nil
	}
	return &t
}

// Statistics is the shop-wide overview for a period.  TotalUsers and
// TotalBonusBalance are always computed over all time.
type Statistics struct {
	Period                Period          `db:"-" json:"period"`
	TotalUsers            int64           `db:"total_users" json:"total_users"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalBonusAmount      decimal.Decimal `db:"total_bonus_amount" json:"total_bonus_amount"`
	TotalTransactions     int64           `db:"total_transactions" json:"total_transactions"`
	AveragePurchaseAmount decimal.Decimal `db:"average_purchase_amount" json:"average_purchase_amount"`
	ActiveUsers           int64           `db:"active_users" json:"active_users"`
	TotalBonusBalance     decimal.Decimal `db:"total_bonus_balance" json:"total_bonus_balance"`
}

// WorkerStatistics summarises the ledger activity of one employee.
type WorkerStatistics struct {
	Period            Period          `db:"-" json:"period"`
	UserID            string          `db:"-" json:"user_id"`
	Name              string          `db:"-" json:"name"`
	RoleAssignedDate  *time.Time      `db:"-" json:"role_assigned_date,omitempty"`
	TotalTransactions int64           `db:"total_transactions" json:"total_transactions"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalAdd          decimal.Decimal `db:"total_add" json:"total_add"`
	TotalRemove       decimal.Decimal `db:"total_remove" json:"total_remove"`
}

// MonthlyReport aggregates one calendar month.
type MonthlyReport struct {
	Year         int             `db:"-" json:"year"`
	Month        int             `db:"-" json:"month"`
	NewUsers     int64           `db:"new_users" json:"new_users"`
	SalesCount   int64           `db:"sales_count" json:"sales_count"`
	SalesAmount  decimal.Decimal `db:"sales_amount" json:"sales_amount"`
	BonusesAdded decimal.Decimal `db:"bonuses_added" json:"bonuses_added"`
	BonusesSpent decimal.Decimal `db:"bonuses_spent" json:"bonuses_spent"`
}

// QRCode is a short-lived identification code shown by a customer at
// the counter.  It lives only in Redis.
type QRCode struct {
	Code      string    `json:"code"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
