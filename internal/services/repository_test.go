package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/recebimentosmart/billing-backend/internal/models"
)

type capturedSQL struct {
	sql  string
	vars []interface{}
}

// newDryRunRepo returns a repository that builds postgres SQL without a server.
func newDryRunRepo(t *testing.T) (*GormRepository, *capturedSQL) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=billing dbname=billing sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	captured := &capturedSQL{}
	err = db.Callback().Update().After("gorm:update").Register("test:capture_sql", func(tx *gorm.DB) {
		captured.sql = tx.Statement.SQL.String()
		captured.vars = append([]interface{}(nil), tx.Statement.Vars...)
	})
	require.NoError(t, err)
	return NewGormRepository(db), captured
}

func TestUpdateTransaction_PendingIsGuardedInSQL(t *testing.T) {
	repo, captured := newDryRunRepo(t)

	// Dry run never touches a row.
	err := repo.UpdateTransaction(context.Background(), "ref-1", TransactionUpdate{
		Status:         models.TransactionPending,
		ProviderStatus: "in_process",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Regexp(t, `"status"=CASE WHEN status = \$\d+ THEN status ELSE \$\d+ END`, captured.sql)
	assert.Contains(t, captured.vars, models.TransactionCompleted)
	assert.Contains(t, captured.vars, models.TransactionPending)
	assert.Contains(t, captured.vars, "ref-1")
}

func TestUpdateTransaction_TerminalStatusIsAssigned(t *testing.T) {
	repo, captured := newDryRunRepo(t)

	err := repo.UpdateTransaction(context.Background(), "ref-1", TransactionUpdate{
		Status:         models.TransactionCompleted,
		ProviderStatus: "approved",
		ChargeID:       "pay_1",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NotContains(t, captured.sql, "CASE")
	assert.Regexp(t, `"status"=\$\d+`, captured.sql)
	assert.Regexp(t, `"charge_id"=\$\d+`, captured.sql)
	assert.Contains(t, captured.vars, models.TransactionCompleted)
}

func TestUpdateTransaction_EmptyStatusLeavesColumnAlone(t *testing.T) {
	repo, captured := newDryRunRepo(t)

	_ = repo.UpdateTransaction(context.Background(), "ref-1", TransactionUpdate{ProviderStatus: "pending"})

	assert.Contains(t, captured.sql, `"provider_status"=`)
	assert.NotContains(t, captured.sql, `"status"=`)
}
