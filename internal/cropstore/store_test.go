package cropstore

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/pixfmt"
)

func solid(t *testing.T, w, h int) *image.RGBA {
	t.Helper()
	img, err := pixfmt.Solid(w, h, 10, 20, 30)
	require.NoError(t, err)
	return img
}

func TestStore_SavesSequentially(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "faces")
	s, err := New(config.CropsConfig{Dir: dir}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(solid(t, 5+i, 7)))
	}
	assert.Equal(t, 3, s.Count())

	for i := 0; i < 3; i++ {
		f, err := os.Open(filepath.Join(dir, FileName(i)))
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 5+i, img.Bounds().Dx())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files left behind")
}

func TestStore_ResumesNumbering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"faces3.png", "faces12.png", "faces.png", "facesX.png", "other7.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	s, err := New(config.CropsConfig{Dir: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(solid(t, 2, 2)))

	_, err = os.Stat(filepath.Join(dir, "faces13.png"))
	assert.NoError(t, err)
}

func TestStore_Throttles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(config.CropsConfig{Dir: dir, MaxPerSecond: 0.001, Burst: 2}, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.NoError(t, s.Save(solid(t, 2, 2)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, s.Count())
}

func TestStore_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := New(config.CropsConfig{Dir: dir}, nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, s.Save(solid(t, 2, 2)))
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(config.CropsConfig{}, nil)
	assert.ErrorContains(t, err, "dir is required")
}

func TestParseIndex(t *testing.T) {
	n, ok := parseIndex("faces42.png")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	for _, name := range []string{"faces.png", "faces-1.png", "faces1.jpg", "img1.png"} {
		_, ok := parseIndex(name)
		assert.False(t, ok, name)
	}
}
