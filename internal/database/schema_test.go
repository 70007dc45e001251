package database

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaRunsEveryStatement(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "mysql")

	stmts := Statements()
	for range stmts {
		mock.ExpectExec(".+").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditTriggersCoverAppendOnlyTables(t *testing.T) {
	triggers := auditTriggers()
	require.Len(t, triggers, 6)
	joined := strings.Join(triggers, "\n")
	require.Contains(t, joined, "trg_bonus_transactions_no_update BEFORE UPDATE ON bonus_transactions")
	require.Contains(t, joined, "trg_role_history_no_delete BEFORE DELETE ON role_history")
	require.Contains(t, joined, "SIGNAL SQLSTATE '45000'")
}

func TestDSN(t *testing.T) {
	dsn := Options{User: "shop", Pass: "pw", Host: "db", Port: "3306", Name: "bonus"}.DSN()
	require.True(t, strings.HasPrefix(dsn, "shop:pw@tcp(db:3306)/bonus?"), dsn)
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "charset=utf8mb4")
}
