package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// LabelLockName is the registry_locks row taken while storage cell
// labels are allocated.
const LabelLockName = "storage_cell_labels"

// schema lists the DDL applied at start-up.  Every statement is
// idempotent so EnsureSchema can run on each boot.  Requires MySQL 8.0.29+
// for CHECK constraints and CREATE TRIGGER IF NOT EXISTS.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id           VARCHAR(64)  NOT NULL PRIMARY KEY,
		name              VARCHAR(255) NOT NULL,
		registration_date DATETIME     NOT NULL,
		mobile_phone      VARCHAR(32)  NULL,
		birthday_date     DATE         NULL,
		role              VARCHAR(16)  NOT NULL DEFAULT 'CUSTOMER',
		UNIQUE KEY uq_users_phone (mobile_phone)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bonus_balances (
		user_id    VARCHAR(64)   NOT NULL PRIMARY KEY,
		balance    DECIMAL(12,2) NOT NULL DEFAULT 0,
		updated_at DATETIME      NOT NULL,
		CONSTRAINT chk_bonus_balance_non_negative CHECK (balance >= 0),
		CONSTRAINT fk_bonus_balances_user FOREIGN KEY (user_id) REFERENCES users (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bonus_transactions (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id          VARCHAR(64)     NOT NULL,
		worker_id        VARCHAR(64)     NOT NULL,
		transaction_date DATETIME(3)     NOT NULL,
		transaction_type VARCHAR(8)      NOT NULL,
		amount           DECIMAL(12,2)   NOT NULL,
		bonus_amount     DECIMAL(12,2)   NOT NULL,
		balance_after    DECIMAL(12,2)   NOT NULL,
		KEY idx_bonus_tx_user_date (user_id, transaction_date),
		KEY idx_bonus_tx_worker_date (worker_id, transaction_date),
		KEY idx_bonus_tx_date (transaction_date),
		CONSTRAINT fk_bonus_tx_user FOREIGN KEY (user_id) REFERENCES users (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS role_history (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		admin_id      VARCHAR(64)     NOT NULL,
		user_id       VARCHAR(64)     NOT NULL,
		role          VARCHAR(16)     NOT NULL,
		assigned_date DATETIME(3)     NOT NULL,
		KEY idx_role_history_user (user_id, assigned_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bonus_settings (
		id                  TINYINT UNSIGNED NOT NULL PRIMARY KEY,
		cashback            INT NOT NULL,
		max_debit           INT NOT NULL,
		start_bonus_balance INT NOT NULL,
		voting_bonus        INT NOT NULL,
		vip_cashback        INT NOT NULL,
		CONSTRAINT chk_bonus_settings_singleton CHECK (id = 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS vip_clients (
		user_id    VARCHAR(64) NOT NULL PRIMARY KEY,
		created_at DATETIME    NOT NULL,
		CONSTRAINT fk_vip_clients_user FOREIGN KEY (user_id) REFERENCES users (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS storage_cells (
		id         BIGINT   NOT NULL AUTO_INCREMENT PRIMARY KEY,
		label      INT      NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_storage_cells_label (label),
		CONSTRAINT chk_storage_cells_label CHECK (label > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS cell_assignments (
		cell_id             BIGINT        NOT NULL PRIMARY KEY,
		customer_id         VARCHAR(64)   NOT NULL,
		employee_id         VARCHAR(64)   NOT NULL,
		storage_type        VARCHAR(32)   NOT NULL,
		price               DECIMAL(12,2) NOT NULL,
		description         TEXT          NOT NULL,
		scheduled_month     CHAR(7)       NOT NULL,
		metadata            JSON          NULL,
		state               VARCHAR(20)   NOT NULL,
		pickup_requested_by VARCHAR(64)   NOT NULL DEFAULT '',
		created_at          DATETIME      NOT NULL,
		updated_at          DATETIME      NOT NULL,
		KEY idx_cell_assignments_customer (customer_id),
		CONSTRAINT fk_cell_assignments_cell FOREIGN KEY (cell_id) REFERENCES storage_cells (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS assignment_events (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		cell_id     BIGINT          NOT NULL,
		cell_label  INT             NOT NULL,
		customer_id VARCHAR(64)     NOT NULL,
		employee_id VARCHAR(64)     NOT NULL,
		actor_id    VARCHAR(64)     NOT NULL,
		kind        VARCHAR(32)     NOT NULL,
		reason      VARCHAR(512)    NOT NULL DEFAULT '',
		created_at  DATETIME(3)     NOT NULL,
		KEY idx_assignment_events_cell (cell_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS registry_locks (
		name VARCHAR(64) NOT NULL PRIMARY KEY
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`INSERT IGNORE INTO registry_locks (name) VALUES ('` + LabelLockName + `')`,
}

// appendOnly are the audit tables that reject UPDATE and DELETE.
var appendOnly = []string{"bonus_transactions", "role_history", "assignment_events"}

func auditTriggers() []string {
	out := make([]string, 0, len(appendOnly)*2)
	for _, table := range appendOnly {
		for _, op := range []string{"UPDATE", "DELETE"} {
			out = append(out, fmt.Sprintf(
				"CREATE TRIGGER IF NOT EXISTS trg_%s_no_%s BEFORE %s ON %s FOR EACH ROW "+
					"SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s is append-only'",
				table, strings.ToLower(op), op, table, table))
		}
	}
	return out
}

// Statements returns the full DDL in execution order.
func Statements() []string {
	return append(append([]string{}, schema...), auditTriggers()...)
}

// EnsureSchema creates missing tables, seeds the label lock row and
// installs the append-only triggers.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
