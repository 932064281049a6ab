package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// searchOffsets are the positions probed for a signature, allowing for a
// user block in front of the superblock.
var searchOffsets = []int64{0, 512, 1024, 2048, 4096, 8192}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock")
)

// Superblock holds the fields this module reads or maintains.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Root symbol table cache from a version 0 or 1 root entry, zero when
	// absent.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// New returns a version 3 superblock using the field widths of cfg.
func New(cfg binpkg.Config) *Superblock {
	return &Superblock{
		Version:    3,
		OffsetSize: uint8(cfg.OffsetSize),
		LengthSize: uint8(cfg.LengthSize),
	}
}

// Config returns the field widths declared by the superblock.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Read locates and parses the superblock of src.
func Read(src io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		n, err := src.ReadAt(sig, off)
		if n < len(sig) {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}

		var sb *Superblock
		switch version := sig[len(Signature)]; version {
		case 0, 1:
			sb, err = readV0(src, off, version)
		case 2, 3:
			sb, err = readV2(src, off, version)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func validWidth(n uint8) bool {
	return n == 2 || n == 4 || n == 8
}

func (sb *Superblock) checkWidths() error {
	if !validWidth(sb.OffsetSize) || !validWidth(sb.LengthSize) {
		return fmt.Errorf("%w: field widths %d/%d", ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}
	return nil
}
