package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads", "images")
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	path, err := s.Save(ctx, "a.png", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.FromSlash(path))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	require.NoError(t, s.Delete(ctx, path))
	_, err = os.Stat(filepath.FromSlash(path))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Delete(ctx, path))
}

func TestLocalStoreRejectsPathsOutsideDir(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(filepath.Join(root, "images"))
	require.NoError(t, err)

	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	assert.Error(t, s.Delete(context.Background(), outside))
	assert.Error(t, s.Delete(context.Background(), filepath.Join(root, "images", "..", "secret.txt")))

	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestNewImageName(t *testing.T) {
	name, err := NewImageName("image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpeg"))

	other, err := NewImageName("image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, name, other)

	_, err = NewImageName("application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, Allowed("text/plain"))
	assert.True(t, Allowed("image/png"))
}
