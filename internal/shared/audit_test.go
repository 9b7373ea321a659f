package shared

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExec struct {
	sql  string
	args []any
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &recordingExec{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{Action: ActionClientCreate, Entity: "client", EntityID: "c1"})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO audit_logs")
	require.Equal(t, "", db.args[0])
	require.Equal(t, []byte(`{}`), db.args[4])
	require.Nil(t, db.args[5])
}

func TestAuditLoggerRejectsIncompleteEntry(t *testing.T) {
	err := NewAuditLogger(&recordingExec{}).Record(context.Background(), AuditLog{Action: ActionPolicyUpdate})
	require.ErrorIs(t, err, ErrValidation)

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{}))
}
