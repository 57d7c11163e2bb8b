package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQuerier records statements in order and answers every QueryRow
// with an empty result.
type recordingQuerier struct {
	statements []string
	insertErr  error
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, strings.TrimSpace(sql))
	if strings.Contains(sql, "INSERT INTO audit_entries") && q.insertErr != nil {
		return pgconn.CommandTag{}, q.insertErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	q.statements = append(q.statements, strings.TrimSpace(sql))
	return nil, errors.New("not supported")
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	q.statements = append(q.statements, strings.TrimSpace(sql))
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(dest ...interface{}) error { return pgx.ErrNoRows }

func newEntry() *approval.AuditEntry {
	return approval.NewAuditEntry("a1", "r1", "lec", approval.ActionSubmit, "draft", "submitted", "", time.Now())
}

func TestAuditLog_RecordLocksChainBeforeReadingHead(t *testing.T) {
	q := &recordingQuerier{}
	log := &auditLog{q: q}

	entry := newEntry()
	require.NoError(t, log.Record(context.Background(), entry))

	require.Len(t, q.statements, 3)
	assert.Contains(t, q.statements[0], "pg_advisory_xact_lock($1::int4, hashtext($2))")
	assert.Contains(t, q.statements[1], "ORDER BY seq DESC")
	assert.Contains(t, q.statements[2], "INSERT INTO audit_entries")

	// Пустая цепочка начинается с seq 1.
	assert.Equal(t, int64(1), int64(entry.Seq))
	assert.Empty(t, entry.PrevHash)
	assert.NotEmpty(t, entry.Hash)
}

func TestAuditLog_SeqCollisionIsRetryable(t *testing.T) {
	q := &recordingQuerier{insertErr: &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintAuditSeq}}
	log := &auditLog{q: q}

	err := log.Record(context.Background(), newEntry())
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
	assert.True(t, errors.Is(err, shared.ErrLockTimeout))
}

func TestAuditLog_OtherUniqueViolationsAreNotRetryable(t *testing.T) {
	q := &recordingQuerier{insertErr: &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "audit_entries_pkey"}}
	log := &auditLog{q: q}

	err := log.Record(context.Background(), newEntry())
	require.Error(t, err)
	assert.False(t, shared.IsRetryable(err))
	assert.True(t, IsUniqueViolation(err))
}
