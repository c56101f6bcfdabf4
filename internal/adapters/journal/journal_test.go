package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const (
	txA = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	txB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestRecordLoadResolve(t *testing.T) {
	j := New(t.TempDir())

	loaded, err := j.Load(txA)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, j.Record(domain.PendingMint{TxHash: txA, Signer: "0x1", TokenURI: "https://gw/ipfs/Qm"}))

	loaded, err = j.Load(txA)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "https://gw/ipfs/Qm", loaded.TokenURI)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.Equal(t, loaded.CreatedAt, loaded.UpdatedAt)

	require.NoError(t, j.Resolve(txA))
	require.NoError(t, j.Resolve(txA))
	loaded, err = j.Load(txA)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRecordRejectsBadHash(t *testing.T) {
	j := New(t.TempDir())
	assert.Error(t, j.Record(domain.PendingMint{TxHash: "../../etc/passwd"}))
	assert.Error(t, j.Resolve("0x12"))
	assert.Error(t, j.Record(domain.PendingMint{TxHash: "0x" + strings.Repeat("zz", 32)}))
	assert.Error(t, j.Record(domain.PendingMint{TxHash: strings.Repeat("ab", 33)}))

	entries, err := j.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordNormalizesHashCase(t *testing.T) {
	j := New(t.TempDir())
	require.NoError(t, j.Record(domain.PendingMint{TxHash: txA}))

	loaded, err := j.Load(strings.ToLower(txA))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, txA, loaded.TxHash)
}

func TestListSkipsJunkAndSorts(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	j.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, j.Record(domain.PendingMint{TxHash: txB}))
	j.now = func() time.Time { return base }
	require.NoError(t, j.Record(domain.PendingMint{TxHash: txA}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, txA, entries[0].TxHash)
	assert.Equal(t, txB, entries[1].TxHash)
}

func TestListMissingDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"))
	entries, err := j.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanupOld(t *testing.T) {
	j := New(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	j.now = func() time.Time { return base }
	require.NoError(t, j.Record(domain.PendingMint{TxHash: txA}))
	j.now = func() time.Time { return base.Add(47 * time.Hour) }
	require.NoError(t, j.Record(domain.PendingMint{TxHash: txB}))

	j.now = func() time.Time { return base.Add(48 * time.Hour) }
	n, err := j.CleanupOld(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, txB, entries[0].TxHash)
}
