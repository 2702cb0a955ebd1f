package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"LiveRadio/core/radio"
	"LiveRadio/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSetGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "save-data")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, model.KeySongStartData, model.SongStartData{T: 42, Mod: 100000}))

	data, err := os.ReadFile(filepath.Join(dir, model.KeySongStartData+".json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":42,"mod":100000}`, string(data))

	var got model.SongStartData
	require.NoError(t, store.Get(ctx, model.KeySongStartData, &got))
	assert.Equal(t, 42.0, got.T)
}

func TestFileStoreOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Set(ctx, model.KeyBiSi, model.BiSi{BackgroundID: i, SessionID: "s"}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.KeyBiSi+".json", entries[0].Name())

	var got model.BiSi
	require.NoError(t, store.Get(ctx, model.KeyBiSi, &got))
	assert.Equal(t, 3, got.BackgroundID)
}

func TestFileStoreMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	var got model.SongPath
	assert.ErrorIs(t, store.Get(ctx, model.KeySongPath, &got), radio.ErrKeyNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, model.KeySongPath+".json"), []byte("{broken"), 0644))
	err = store.Get(ctx, model.KeySongPath, &got)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, radio.ErrKeyNotFound)
}
