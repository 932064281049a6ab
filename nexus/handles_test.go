package nexus

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

func TestHandlesReleaseOnce(t *testing.T) {
	f, err := h5.Create(filepath.Join(t.TempDir(), "h.h5"))
	require.NoError(t, err)
	defer f.Close()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	sid, err := f.CreateScalarSpace()
	require.NoError(t, err)
	space := newSpaceHandle(f, sid, log)
	assert.Equal(t, 1, f.OpenCount(h5.CategorySpace))
	require.NoError(t, space.Close())
	require.NoError(t, space.Close())
	assert.Zero(t, f.OpenCount(h5.CategorySpace))
	assert.False(t, space.ID().Valid())
	assert.Empty(t, logs.String())

	// A release the container rejects is logged, not returned.
	oid, err := f.OpenObject("/")
	require.NoError(t, err)
	require.NoError(t, f.CloseObject(oid))
	stale := newObjectHandle(f, oid, log)
	require.NoError(t, stale.Close())
	assert.Contains(t, logs.String(), "releasing handle failed")
	assert.Contains(t, logs.String(), "category=object")

	var nilHandle *handle
	assert.NoError(t, nilHandle.Close())
}
