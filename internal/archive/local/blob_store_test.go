package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "archive")

	_, err := New(Config{BaseDir: base})

	require.NoError(t, err)
	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPutObjectWritesFile(t *testing.T) {
	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "documents/site/a.html", "text/html", []byte("<html/>"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	written, err := os.ReadFile(filepath.Join(base, "documents", "site", "a.html"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<html/>"), written)
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.html", "", []byte("x"))

	assert.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "   ", "", []byte("x"))

	assert.Error(t, err)
}
