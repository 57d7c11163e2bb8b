package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []*AuditEntry {
	t.Helper()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var entries []*AuditEntry
	var prev *AuditEntry
	for i := 0; i < n; i++ {
		e := NewAuditEntry("e"+string(rune('a'+i)), "r1", "u1", ActionSubmit, "draft", "submitted", "", at.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			e.Fail(errors.New("forbidden"))
		}
		Seal(e, prev)
		entries = append(entries, e)
		prev = e
	}
	return entries
}

func TestSeal_LinksEntries(t *testing.T) {
	entries := buildChain(t, 3)

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Empty(t, entries[0].PrevHash)
	assert.Equal(t, entries[0].Hash, entries[1].PrevHash)
	assert.Equal(t, entries[1].Hash, entries[2].PrevHash)
	assert.Len(t, entries[2].Hash, 64)
	assert.True(t, entries[1].IsFailure())
	assert.Equal(t, "forbidden", entries[1].Error)

	require.NoError(t, VerifyChain(entries))
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	entries := buildChain(t, 3)
	entries[1].Notes = "rewritten"

	err := VerifyChain(entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAuditChainBroken)
	assert.Equal(t, shared.CategoryIntegrity, shared.Category(err))
}

func TestVerifyChain_DetectsRemoval(t *testing.T) {
	entries := buildChain(t, 3)

	err := VerifyChain([]*AuditEntry{entries[0], entries[2]})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAuditChainBroken)
}

func TestVerifyChain_Empty(t *testing.T) {
	assert.NoError(t, VerifyChain(nil))
}
