package h5

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftAndHardLinks(t *testing.T) {
	f, path := createFile(t, "links.h5")
	mustGroup(t, f, "/entry")
	ds := newDataset(t, f, "/entry/data", TypeInt32, []uint64{3}, nil, nil)
	require.NoError(t, f.WriteDataset(ds, nil, []int32{1, 2, 3}))
	require.NoError(t, f.CloseObject(ds))

	require.NoError(t, f.CreateSoftLink("/entry/data", "/soft"))
	require.NoError(t, f.CreateHardLink("/entry/data", "/hard"))
	require.NoError(t, f.CreateSoftLink("/nowhere", "/dangling"))
	assert.ErrorIs(t, f.CreateHardLink("/entry", "/entry"), ErrExists)
	assert.ErrorIs(t, f.CreateHardLink("/missing", "/h2"), ErrNotFound)

	f = reopen(t, f, path)

	for _, p := range []string{"/soft", "/hard"} {
		info, err := f.ObjectInfo(p)
		require.NoError(t, err)
		assert.Equal(t, KindDataset, info.Kind)

		var out []int32
		require.NoError(t, f.ReadDataset(openDataset(t, f, p), nil, &out))
		assert.Equal(t, []int32{1, 2, 3}, out)
	}

	ok, err := f.LinkExists("/dangling")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = f.ObjectInfo("/dangling")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnlinkKeepsOtherLinks(t *testing.T) {
	f, _ := createFile(t, "unlink.h5")
	ds := newDataset(t, f, "/d", TypeInt8, []uint64{2}, nil, nil)
	require.NoError(t, f.WriteDataset(ds, nil, []int8{-1, 1}))
	require.NoError(t, f.CloseObject(ds))
	require.NoError(t, f.CreateHardLink("/d", "/alias"))

	require.NoError(t, f.Unlink("/d"))
	assert.ErrorIs(t, f.Unlink("/d"), ErrNotFound)

	ok, err := f.LinkExists("/d")
	require.NoError(t, err)
	assert.False(t, ok)

	var out []int8
	require.NoError(t, f.ReadDataset(openDataset(t, f, "/alias"), nil, &out))
	assert.Equal(t, []int8{-1, 1}, out)
}

func TestSoftLinkCycle(t *testing.T) {
	f, _ := createFile(t, "cycle.h5")
	require.NoError(t, f.CreateSoftLink("/y", "/x"))
	require.NoError(t, f.CreateSoftLink("/x", "/y"))

	_, err := f.OpenObject("/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestExternalLink(t *testing.T) {
	dir := t.TempDir()

	other, err := Create(filepath.Join(dir, "detector.h5"))
	require.NoError(t, err)
	mustGroup(t, other, "/entry")
	ds := newDataset(t, other, "/entry/counts", TypeUint64, []uint64{2}, nil, nil)
	require.NoError(t, other.WriteDataset(ds, nil, []uint64{40, 2}))
	require.NoError(t, other.CloseObject(ds))
	require.NoError(t, other.Close())

	f, err := Create(filepath.Join(dir, "master.h5"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.CreateExternalLink("detector.h5", "/entry/counts", "/counts"))
	require.NoError(t, f.CreateExternalLink("detector.h5", "/entry", "/det"))

	info, err := f.ObjectInfo("/counts")
	require.NoError(t, err)
	assert.True(t, info.External)
	assert.Equal(t, KindDataset, info.Kind)

	id := openDataset(t, f, "/det/counts")
	var out []uint64
	require.NoError(t, f.ReadDataset(id, nil, &out))
	assert.Equal(t, []uint64{40, 2}, out)

	assert.ErrorIs(t, f.WriteDataset(id, nil, []uint64{1, 1}), ErrReadOnly)
	_, err = f.CreateGroup("/det/new")
	assert.ErrorIs(t, err, ErrReadOnly)
}
