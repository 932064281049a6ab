package superblock

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

// Write encodes sb as a version 2 or 3 superblock at the position of w and
// returns the number of bytes written. An unset extension address is
// written as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int, error) {
	if sb.Version < 2 {
		return 0, fmt.Errorf("%w: cannot write version %d", ErrUnsupportedVersion, sb.Version)
	}
	size := sb.Size()
	bw, buf := w.Scratch(size)

	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}
	steps := []func() error{
		func() error { return bw.WriteBytes(Signature) },
		func() error { return bw.WriteBytes([]byte{sb.Version, sb.OffsetSize, sb.LengthSize, sb.Flags}) },
		func() error { return bw.WriteOffset(sb.BaseAddress) },
		func() error { return bw.WriteOffset(ext) },
		func() error { return bw.WriteOffset(sb.EOFAddress) },
		func() error { return bw.WriteOffset(sb.RootGroupAddress) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return 0, err
		}
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes()[:bw.Pos()])); err != nil {
		return 0, err
	}
	if err := w.WriteBytes(buf.Bytes()[:size]); err != nil {
		return 0, err
	}
	return size, nil
}

// Update stores sb.EOFAddress in the file. Version 0 and 1 superblocks are
// patched in place; later versions are rewritten to keep the checksum
// valid.
func (sb *Superblock) Update(w *binpkg.Writer) error {
	switch sb.Version {
	case 0, 1:
		eof := sb.FileOffset + addressBase(sb.Version) + 2*int64(sb.OffsetSize)
		return w.At(eof).WriteOffset(sb.EOFAddress)
	case 2, 3:
		_, err := sb.Write(w.At(sb.FileOffset))
		return err
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedVersion, sb.Version)
}

// ClearRootCache marks the root symbol table cache of a version 0 or 1
// superblock as empty. It is needed once the root group stops using a
// symbol table.
func (sb *Superblock) ClearRootCache(w *binpkg.Writer) error {
	if sb.Version > 1 {
		return nil
	}
	sb.RootGroupBTreeAddress = 0
	sb.RootGroupLocalHeapAddress = 0
	return w.At(sb.rootEntry() + 2*int64(sb.OffsetSize)).WriteUint32(0)
}
