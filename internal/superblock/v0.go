package superblock

import (
	"io"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

// Version 0 and 1 layout after the 8-byte signature:
//
//	version, free-space version, root entry version, reserved,
//	shared header version, offset size, length size, reserved  (8 bytes)
//	group leaf K (2), group internal K (2), consistency flags (4)
//	version 1 only: indexed storage K (2), reserved (2)
//	base, free-space info, EOF, driver info addresses
//	root group symbol table entry
//
// The root entry is a link name offset, an object header address, a 4-byte
// cache type, 4 reserved bytes and a 16-byte scratch pad. Cache type 1 puts
// the B-tree and local heap addresses in the scratch pad.

func addressBase(version uint8) int64 {
	if version == 1 {
		return 28
	}
	return 24
}

func readV0(src io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	r := binpkg.NewReader(src, binpkg.DefaultConfig()).At(off + 8)
	head, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: head[5], LengthSize: head[6]}
	if err := sb.checkWidths(); err != nil {
		return nil, err
	}

	r = binpkg.NewReader(src, sb.Config()).At(off + addressBase(version))
	fields := make([]uint64, 6)
	for i := range fields {
		if fields[i], err = r.ReadOffset(); err != nil {
			return nil, err
		}
	}
	// base, free-space, EOF, driver, root link name, root header
	sb.BaseAddress = fields[0]
	sb.EOFAddress = fields[2]
	sb.RootGroupAddress = fields[5]

	cacheType, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	r.Skip(4)
	if cacheType == 1 {
		if sb.RootGroupBTreeAddress, err = r.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootGroupLocalHeapAddress, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// rootEntry returns the file position of the root symbol table entry.
func (sb *Superblock) rootEntry() int64 {
	return sb.FileOffset + addressBase(sb.Version) + 4*int64(sb.OffsetSize)
}
