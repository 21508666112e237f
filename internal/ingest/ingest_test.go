// Package ingest_test tests source audio enumeration.
package ingest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audio-localizer/internal/ingest"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestListOrderedAudioFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "lesson2.mp3", []byte("audio-2"))
	writeFile(t, dir, "lesson1.mp3", []byte("audio-1"))
	writeFile(t, dir, "notes.txt", []byte("not audio"))

	ingestor := ingest.New(dir, ".mp3", "en-US", newTestLogger(t))

	files, skipped, err := ingestor.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Empty(t, skipped)

	// Directory order is sorted, so runs are deterministic.
	assert.Equal(t, "lesson1.mp3", files[0].Name)
	assert.Equal(t, "lesson1", files[0].Base)
	assert.Equal(t, []byte("audio-1"), files[0].Data)
	assert.Equal(t, "en-US", files[0].Language)
	assert.Equal(t, "lesson2", files[1].Base)
}

func TestListSkipsEmptyFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.mp3", []byte("audio"))
	writeFile(t, dir, "broken.mp3", nil)

	ingestor := ingest.New(dir, ".mp3", "en-US", newTestLogger(t))

	files, skipped, err := ingestor.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, skipped, 1)

	assert.Equal(t, "good", files[0].Base)
	assert.Equal(t, "broken.mp3", skipped[0].Name)
	require.ErrorIs(t, skipped[0].Err, ingest.ErrEmptyFile)
}

func TestListExtensionIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "LESSON.MP3", []byte("audio"))

	ingestor := ingest.New(dir, ".mp3", "en-US", newTestLogger(t))

	files, skipped, err := ingestor.List()
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, files, 1)
	assert.Equal(t, "LESSON", files[0].Base)
}

func TestListMissingDirectoryFails(t *testing.T) {
	t.Parallel()

	ingestor := ingest.New(filepath.Join(t.TempDir(), "nope"), ".mp3", "en-US", newTestLogger(t))

	_, _, err := ingestor.List()
	require.Error(t, err)
}

func TestListIgnoresSubdirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o750))
	writeFile(t, dir, "real.mp3", []byte("audio"))

	ingestor := ingest.New(dir, ".mp3", "en-US", newTestLogger(t))

	files, skipped, err := ingestor.List()
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, files, 1)
	assert.Equal(t, "real", files[0].Base)
}
