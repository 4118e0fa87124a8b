package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutAndGet(t *testing.T) {
	store := NewBlobStore()

	uri, err := store.PutObject(context.Background(), "documents/a.html", "text/html", []byte("<html/>"))

	require.NoError(t, err)
	assert.Equal(t, "memory://documents/a.html", uri)

	data, ok := store.GetObject("documents/a.html")
	require.True(t, ok)
	assert.Equal(t, []byte("<html/>"), data)
	assert.Equal(t, 1, store.Len())
}

func TestBlobStoreCopiesData(t *testing.T) {
	store := NewBlobStore()
	payload := []byte("original")

	_, err := store.PutObject(context.Background(), "p", "", payload)
	require.NoError(t, err)

	payload[0] = 'X'
	data, ok := store.GetObject("p")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), data)
}

func TestBlobStoreMissingObject(t *testing.T) {
	store := NewBlobStore()

	_, ok := store.GetObject("absent")
	assert.False(t, ok)
}
