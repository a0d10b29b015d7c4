package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/pkg/config"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(&config.StorageConfig{Root: t.TempDir(), PublicBaseURL: "http://localhost:8080/v1/storage/object/"})
	require.NoError(t, err)
	return l
}

func TestUploadAndRead(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	stored, err := l.Upload(ctx, "avatars/u1.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "avatars/u1.png", stored)
	assert.Equal(t, "http://localhost:8080/v1/storage/object/avatars/u1.png", l.PublicURL(stored))

	f, err := l.Open(stored)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
}

func TestUploadNeverOverwrites(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	first, err := l.Upload(ctx, "chat/file.txt", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := l.Upload(ctx, "chat/file.txt", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "chat/file-"))
	assert.True(t, strings.HasSuffix(second, ".txt"))
}

func TestCleanRejectsTraversal(t *testing.T) {
	for _, p := range []string{"", "/etc/passwd", "../secret", "a/../../b", `..\win`, "."} {
		_, err := Clean(p)
		assert.Error(t, err, p)
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err), p)
	}

	got, err := Clean("posts//u1/./img.jpg")
	require.NoError(t, err)
	assert.Equal(t, "posts/u1/img.jpg", got)
}

func TestUploadTooLarge(t *testing.T) {
	l := newLocal(t)
	_, err := l.Upload(context.Background(), "big.bin", bytes.NewReader(make([]byte, MaxObjectSize+1)))
	assert.ErrorIs(t, err, ErrObjectTooLarge)

	_, err = l.Open("big.bin")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err), "partial upload removed")
}

func TestDelete(t *testing.T) {
	l := newLocal(t)
	stored, err := l.Upload(context.Background(), "x.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, l.Delete(stored))
	require.NoError(t, l.Delete(stored), "idempotent")
	_, err = l.Open(stored)
	assert.Error(t, err)
}
