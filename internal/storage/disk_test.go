package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveOpenRoundTrip(t *testing.T) {
	s := newStore(t)
	payload := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	key := GenerateKey("promo.png")
	require.NoError(t, s.Save(key, bytes.NewReader(payload)))

	f, err := s.Open(key)
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSaveRefusesExistingKey(t *testing.T) {
	s := newStore(t)
	key := GenerateKey("a.png")

	require.NoError(t, s.Save(key, strings.NewReader("one")))
	assert.Error(t, s.Save(key, strings.NewReader("two")))
}

func TestRemoveToleratesMissing(t *testing.T) {
	s := newStore(t)

	key := GenerateKey("gone.png")
	assert.NoError(t, s.Remove(key))

	require.NoError(t, s.Save(key, strings.NewReader("data")))
	require.NoError(t, s.Remove(key))
	_, err := os.Stat(s.Path(key))
	assert.True(t, os.IsNotExist(err))
	// Second remove of the same key is still fine.
	assert.NoError(t, s.Remove(key))
}

func TestGenerateKeyUnique(t *testing.T) {
	a := GenerateKey("promo.mp4")
	b := GenerateKey("promo.mp4")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_promo.mp4"))
}

func TestGenerateKeySanitizes(t *testing.T) {
	key := GenerateKey("../../etc/passwd")
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, "..")

	key = GenerateKey("my file (final) ?.png")
	assert.NotContains(t, key, " ")
	assert.NotContains(t, key, "(")

	// Degenerate names still produce a usable key.
	key = GenerateKey("???")
	assert.True(t, strings.HasSuffix(key, "_upload"))
}

func TestPathNeverEscapesDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	p := s.Path("../../outside.txt")
	rel, err := filepath.Rel(dir, p)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."))
}

func TestNewDiskStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewDiskStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
