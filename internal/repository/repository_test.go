package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smalllight01/plc-admin-sub001/internal/cache/lru"
	"github.com/Smalllight01/plc-admin-sub001/pkg/common"
)

func TestSQLiteRepositoryKV(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	_, ok, err := repo.Get(ctx, "auth-storage")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, "auth-storage", `{"version":0}`))
	require.NoError(t, repo.Put(ctx, "auth-storage", `{"version":1}`))

	value, ok, err := repo.Get(ctx, "auth-storage")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"version":1}`, value)

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["keys"])

	require.NoError(t, repo.Delete(ctx, "auth-storage"))
	_, ok, err = repo.Get(ctx, "auth-storage")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepositoryKeepsNewestSequence(t *testing.T) {
	repo := NewMemoryRepository(lru.NewCache(1<<20, 0, nil))
	now := time.Now()

	assert.True(t, repo.Save("devices", common.NewPayload([]byte(`[1]`), 2, now)))
	assert.False(t, repo.Save("devices", common.NewPayload([]byte(`[0]`), 1, now)))
	assert.False(t, repo.Save("devices", common.NewPayload([]byte(`[0]`), 2, now)))

	p, err := repo.Get("devices")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, p.String())
	assert.Equal(t, uint64(2), p.Seq)

	assert.True(t, repo.Save("devices", common.NewPayload([]byte(`[3]`), 3, now)))
	p, err = repo.Get("devices")
	require.NoError(t, err)
	assert.Equal(t, `[3]`, p.String())

	repo.Save("status", common.NewPayload([]byte(`{}`), 1, now))
	assert.Equal(t, []string{"devices", "status"}, repo.Topics())

	repo.Delete("status")
	_, err = repo.Get("status")
	assert.Error(t, err)
}

func TestMemoryRepositoryResetRejectsEarlierSequences(t *testing.T) {
	repo := NewMemoryRepository(lru.NewCache(1<<20, 0, nil))
	now := time.Now()

	require.True(t, repo.Save("devices", common.NewPayload([]byte(`[1]`), 1, now)))
	require.True(t, repo.Save("status", common.NewPayload([]byte(`{}`), 2, now)))

	repo.Reset(map[string]uint64{"devices": 3})
	_, err := repo.Get("devices")
	assert.Error(t, err)
	assert.Empty(t, repo.Topics())

	// 重置前发出的请求晚到
	assert.False(t, repo.Save("devices", common.NewPayload([]byte(`[2]`), 3, now)))
	_, err = repo.Get("devices")
	assert.Error(t, err)

	assert.True(t, repo.Save("devices", common.NewPayload([]byte(`[4]`), 4, now)))
	assert.True(t, repo.Save("status", common.NewPayload([]byte(`{}`), 1, now)))
	assert.Equal(t, []string{"devices", "status"}, repo.Topics())
}
