package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("deals/abc", "Contract.PDF")
	assert.True(t, strings.HasPrefix(key, "deals/abc/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, ObjectKey("deals/abc", "Contract.PDF"))
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	size, err := s.Upload(ctx, "deals/1/a.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	rc, err := s.Download(ctx, "deals/1/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, "deals/1/a.txt"))
	_, err = s.Download(ctx, "deals/1/a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, "deals/1/a.txt"))
}

func TestLocalStorage_KeysStayInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	_, err = s.Upload(ctx, "../../escape.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	rc, err := s.Download(ctx, "escape.txt")
	require.NoError(t, err)
	rc.Close()

	_, err = s.Upload(ctx, "", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}
