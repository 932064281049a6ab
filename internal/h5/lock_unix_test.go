//go:build unix

package h5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleWriterLock(t *testing.T) {
	f, path := createFile(t, "locked.h5")
	mustGroup(t, f, "/a")
	require.NoError(t, f.Flush())

	_, err := Open(path, ReadWrite)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = Open(path, ReadOnly)
	assert.ErrorIs(t, err, ErrLocked)

	// Without locking the writer is not detected.
	g, err := Open(path, ReadOnly, WithLocking(false))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	require.NoError(t, f.Close())

	r1, err := Open(path, ReadOnly)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := Open(path, ReadOnly)
	require.NoError(t, err)
	defer r2.Close()

	_, err = Open(path, ReadWrite)
	assert.ErrorIs(t, err, ErrLocked)
}
