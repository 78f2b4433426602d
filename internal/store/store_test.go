package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "studio.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", zerolog.Nop())
	require.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.db")
	ctx := context.Background()

	s, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.KV.Put(ctx, BucketPreferences, "theme", "dark"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	var theme string
	require.NoError(t, s.KV.Get(ctx, BucketPreferences, "theme", &theme))
	assert.Equal(t, "dark", theme)
}

type thread struct {
	Title    string   `json:"title"`
	Messages []string `json:"messages"`
}

func TestKV_PutGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.KV.Put(ctx, BucketChatThreads, "t1", thread{Title: "first", Messages: []string{"hi"}}))
	require.NoError(t, s.KV.Put(ctx, BucketChatThreads, "t1", thread{Title: "renamed", Messages: []string{"hi", "there"}}))

	var got thread
	require.NoError(t, s.KV.Get(ctx, BucketChatThreads, "t1", &got))
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, []string{"hi", "there"}, got.Messages)

	require.NoError(t, s.KV.Delete(ctx, BucketChatThreads, "t1"))
	require.NoError(t, s.KV.Delete(ctx, BucketChatThreads, "t1"))
	err := s.KV.Get(ctx, BucketChatThreads, "t1", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKV_KeysPerBucket(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.KV.Put(ctx, BucketChatThreads, "b", 1))
	require.NoError(t, s.KV.Put(ctx, BucketChatThreads, "a", 2))
	require.NoError(t, s.KV.Put(ctx, BucketPreferences, "c", 3))

	keys, err := s.KV.Keys(ctx, BucketChatThreads)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	keys, err = s.KV.Keys(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeployments_RecordAndUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &model.DeploymentRecord{JobID: "abc123", ModelID: "llama", WeightsID: "default", Status: "running"}
	require.NoError(t, s.Deployments.Record(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	require.NoError(t, s.Deployments.UpdateStatus(ctx, "abc123", "completed", "Deployed"))

	got, err := s.Deployments.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "llama", got.ModelID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "Deployed", got.Message)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)

	err = s.Deployments.UpdateStatus(ctx, "missing", "failed", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Deployments.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeployments_Recent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"one", "two", "three"} {
		require.NoError(t, s.Deployments.Record(ctx, &model.DeploymentRecord{
			JobID:     id,
			ModelID:   "m",
			Status:    "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := s.Deployments.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "three", recs[0].JobID)
	assert.Equal(t, "two", recs[1].JobID)
}
