package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tells whether a ledger entry added or removed bonuses.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// ParseTransactionType accepts "credit"/"debit" in any case.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t == TransactionCredit || t == TransactionDebit
}

// BonusBalance mirrors the `bonus_balances` table.  There is exactly one
// row per user and the balance never drops below zero.
type BonusBalance struct {
	UserID    string          `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an append-only ledger entry (`bonus_transactions`).
//
// Fields:
//
//	ID           – auto-increment id.
//	UserID       – customer whose balance changed.
//	WorkerID     – employee who performed the operation.
//	Date         – when the operation was applied (UTC).
//	Type         – CREDIT or DEBIT.
//	Amount       – purchase amount in money, kept for reporting.
//	BonusAmount  – bonuses actually added or removed.
//	BalanceAfter – balance right after the operation.
type Transaction struct {
	ID           uint64          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	WorkerID     string          `db:"worker_id" json:"worker_id"`
	Date         time.Time       `db:"transaction_date" json:"date"`
	Type         TransactionType `db:"transaction_type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BonusAmount  decimal.Decimal `db:"bonus_amount" json:"bonus_amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
}

// TransactionFilter narrows a transaction listing.  Zero values mean
// "no filter".
type TransactionFilter struct {
	UserID   string
	WorkerID string
	Type     TransactionType
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// BonusSettings is the singleton row of `bonus_settings`.  Rates are
// whole percentages, bonuses are whole bonus units.
type BonusSettings struct {
	Cashback          int `db:"cashback" json:"cashback"`
	MaxDebit          int `db:"max_debit" json:"max_debit"`
	StartBonusBalance int `db:"start_bonus_balance" json:"start_bonus_balance"`
	VotingBonus       int `db:"voting_bonus" json:"voting_bonus"`
	VipCashback       int `db:"vip_cashback" json:"vip_cashback"`
}

// DefaultBonusSettings returns the values used when the singleton row
// does not exist yet.
func DefaultBonusSettings() BonusSettings {
	return BonusSettings{
		Cashback:          5,
		MaxDebit:          30,
		StartBonusBalance: 500,
		VotingBonus:       100,
		VipCashback:       10,
	}
}

// SettingField names one column of BonusSettings.
type SettingField string

const (
	SettingCashback          SettingField = "cashback"
	SettingMaxDebit          SettingField = "max_debit"
	SettingStartBonusBalance SettingField = "start_bonus_balance"
	SettingVotingBonus       SettingField = "voting_bonus"
	SettingVipCashback       SettingField = "vip_cashback"
)

// ParseSettingField returns the field named s.
func ParseSettingField(s string) (SettingField, bool) {
	f := SettingField(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case SettingCashback, SettingMaxDebit, SettingStartBonusBalance, SettingVotingBonus, SettingVipCashback:
		return f, true
	}
	return "", false
}

// Percentage reports whether the field holds a rate in percent.
func (f SettingField) Percentage() bool {
	return f == SettingCashback || f == SettingMaxDebit || f == SettingVipCashback
}

// With returns a copy of s with field f set to v.
func (s BonusSettings) With(f SettingField, v int) BonusSettings {
	switch f {
	case SettingCashback:
		s.Cashback = v
	case SettingMaxDebit:
		s.MaxDebit = v
	case SettingStartBonusBalance:
		s.StartBonusBalance = v
	case SettingVotingBonus:
		s.VotingBonus = v
	case SettingVipCashback:
		s.VipCashback = v
	}
	return s
}
