package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SaveReadRemove(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, err := l.Save(ctx, "u1", "abc.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "prescriptions/u1/abc.png", path)

	data, err := l.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, l.Remove(ctx, path))
	_, err = os.Stat(filepath.Join(l.Root, filepath.FromSlash(path)))
	assert.True(t, os.IsNotExist(err))

	// idempotente
	assert.NoError(t, l.Remove(ctx, path))
}

func TestLocal_RejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = l.Read(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)

	path, err := l.Save(ctx, "../u1", "../x.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "prescriptions/u1/x.png", path)
}

func TestNewLocal_EmptyRoot(t *testing.T) {
	_, err := NewLocal(" ")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemory_SaveReadRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p, err := m.Save(ctx, "u1", "../a.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "prescriptions/u1/a.pdf", p)

	data, err := m.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	require.NoError(t, m.Remove(ctx, p))
	_, err = m.Read(ctx, p)
	assert.Error(t, err)
}
