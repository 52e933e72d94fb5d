package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloud.pcx")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpen_ReadAt(t *testing.T) {
	content := []byte("header|table|chunks")
	m, err := Open(writeFile(t, content))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(len(content)), m.Size())
	assert.Equal(t, content, m.Bytes())
	require.NoError(t, m.Advise(AccessRandom))

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "table", string(buf))

	buf = make([]byte, 10)
	n, err = m.ReadAt(buf, int64(len(content))-6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 6, n)

	_, err = m.ReadAt(buf, 100)
	assert.ErrorIs(t, err, io.EOF)
	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestOpen_Empty(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	assert.Zero(t, m.Size())
	assert.NoError(t, m.Advise(AccessSequential))
	assert.NoError(t, m.Close())
}

func TestMapping_Close(t *testing.T) {
	m, err := Open(writeFile(t, []byte("abc")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
}

func TestMap_SurvivesRename(t *testing.T) {
	path := writeFile(t, []byte("old contents"))
	f, err := os.Open(path)
	require.NoError(t, err)
	m, err := Map(f, 12)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	defer m.Close()

	replacement := path + ".new"
	require.NoError(t, os.WriteFile(replacement, []byte("new contents"), 0o644))
	require.NoError(t, os.Rename(replacement, path))

	assert.Equal(t, "old contents", string(m.Bytes()))
}

func TestMap_InvalidSize(t *testing.T) {
	_, err := Map(nil, -1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
