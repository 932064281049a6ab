package superblock

import (
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

// Version 2 and 3 layout: signature, version, offset size, length size,
// consistency flags, then the base, extension, EOF and root group header
// addresses followed by a lookup3 checksum of everything before it.

func readV2(src io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	r := binpkg.NewReader(src, binpkg.DefaultConfig()).At(off + 9)
	head, err := r.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: head[0], LengthSize: head[1], Flags: head[2]}
	if err := sb.checkWidths(); err != nil {
		return nil, err
	}

	size := sb.Size()
	raw, err := binpkg.NewReader(src, sb.Config()).At(off).ReadBytes(size)
	if err != nil {
		return nil, err
	}
	cfg := sb.Config()
	stored := cfg.ByteOrder.Uint32(raw[size-4:])
	if sum := binpkg.Lookup3Checksum(raw[:size-4]); sum != stored {
		return nil, fmt.Errorf("%w: checksum 0x%08x, stored 0x%08x", ErrInvalidSuperblock, sum, stored)
	}

	r = binpkg.NewReader(src, cfg).At(off + 12)
	for _, field := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *field, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// Size returns the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}
