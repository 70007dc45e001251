package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

const userColumns = `user_id, name, registration_date, mobile_phone, birthday_date, role`

// UserRepo provides access to users, role_history and vip_clients.
type UserRepo struct{ db *sqlx.DB }

// NewUserRepo returns a UserRepo bound to db.
func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u together with its bonus balance seeded with welcome.
// A duplicate id or phone yields ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u model.User, welcome decimal.Decimal) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES (:user_id, :name, :registration_date, :mobile_phone, :birthday_date, :role)`, u)
		if err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bonus_balances (user_id, balance, updated_at) VALUES (?, ?, ?)`,
			u.ID, welcome, u.RegistrationDate)
		return err
	})
}

// GetByID fetches a user by platform id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByPhone fetches a user by mobile phone.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE mobile_phone = ? LIMIT 1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// ChangeRole sets the role of userID and appends the matching
// role_history row in the same transaction.
func (r *UserRepo) ChangeRole(ctx context.Context, adminID, userID string, role model.Role, at time.Time) (model.RoleHistory, error) {
	h := model.RoleHistory{AdminID: adminID, UserID: userID, Role: role, AssignedDate: at}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current model.Role
		err := tx.GetContext(ctx, &current, `SELECT role FROM users WHERE user_id = ? FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET role = ? WHERE user_id = ?`, role, userID); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO role_history (admin_id, user_id, role, assigned_date)
			 VALUES (:admin_id, :user_id, :role, :assigned_date)`, h)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		h.ID = uint64(id)
		return nil
	})
	return h, err
}

// SetVIP adds or removes userID from vip_clients.
func (r *UserRepo) SetVIP(ctx context.Context, userID string, vip bool) error {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if vip {
		_, err := r.db.ExecContext(ctx,
			`INSERT IGNORE INTO vip_clients (user_id, created_at) VALUES (?, ?)`, userID, time.Now().UTC())
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM vip_clients WHERE user_id = ?`, userID)
	return err
}

// IsVIP reports whether userID is listed in vip_clients.
func (r *UserRepo) IsVIP(ctx context.Context, userID string) (bool, error) {
	var vip bool
	err := r.db.GetContext(ctx, &vip, `SELECT EXISTS(SELECT 1 FROM vip_clients WHERE user_id = ?)`, userID)
	return vip, err
}
