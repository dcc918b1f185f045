package artifact_manager

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirs(t *testing.T) models.DirsConfig {
	t.Helper()
	root := t.TempDir()
	return models.DirsConfig{
		Images:         filepath.Join(root, "images"),
		CSV:            filepath.Join(root, "csv"),
		Text:           filepath.Join(root, "txt"),
		ImageExtension: "jpg",
	}
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
	}
}

func TestNewManager_CreatesDirs(t *testing.T) {
	dirs := testDirs(t)
	_, err := NewManager(dirs, models.RetentionConfig{})
	require.NoError(t, err)

	for _, d := range []string{dirs.Images, dirs.CSV, dirs.Text} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPaths(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewManager(dirs, models.RetentionConfig{})
	require.NoError(t, err)

	a := m.Paths("abc-123")
	assert.Equal(t, filepath.Join(dirs.Images, "image_abc-123.jpg"), a.Image)
	assert.Equal(t, filepath.Join(dirs.CSV, "results_abc-123.csv"), a.CSV)
	assert.Equal(t, filepath.Join(dirs.Text, "content_abc-123.txt"), a.Text)
	assert.Equal(t, "abc-123", a.RequestID)

	escaped := m.Paths("../../etc/passwd")
	assert.Equal(t, dirs.Images, filepath.Dir(escaped.Image))
}

func TestCleanup_FollowsRetention(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewManager(dirs, models.RetentionConfig{RemoveImages: true, RemoveCSVs: true, RemoveText: false})
	require.NoError(t, err)

	a := m.Paths("r1")
	require.NoError(t, m.SaveImage(a, []byte{0x89, 'P', 'N', 'G'}))
	touch(t, a.CSV, a.Text)

	require.NoError(t, m.Cleanup(slog.New(slog.NewTextHandler(io.Discard, nil)), a))

	_, err = os.Stat(a.Image)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(a.CSV)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(a.Text)
	assert.NoError(t, err)
}

func TestCleanup_MissingFilesIgnored(t *testing.T) {
	m, err := NewManager(testDirs(t), models.RetentionConfig{RemoveImages: true, RemoveCSVs: true, RemoveText: true})
	require.NoError(t, err)

	assert.NoError(t, m.Cleanup(slog.New(slog.NewTextHandler(io.Discard, nil)), m.Paths("never-written")))
}

func TestGetFileStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	stats, err := GetFileStats(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.SizeBytes)

	_, err = GetFileStats(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
