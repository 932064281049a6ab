package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
)

// earray holds the creation parameters of an extensible array.
type earray struct {
	r         *binary.Reader
	addr      uint64
	elemSize  int
	sizeWidth int
	maxBits   uint8  // log2 of the maximum element count
	idxElmts  uint64 // elements stored in the index block
	dblkMin   uint64 // elements in the smallest data block
	sblkMin   uint64 // data block pointers in the smallest super block
	pageBits  uint8
	maxIdx    uint64 // one past the highest element ever set
	offsetOf  func(uint64) []uint64
}

// arrOffSize is the width of the block offset field of data and super blocks.
func (ea *earray) arrOffSize() int { return (int(ea.maxBits) + 7) / 8 }

// superBlock returns the data block count and data block element count of
// super block s.
func (ea *earray) superBlock(s int) (ndblks, dblkElmts uint64) {
	return 1 << (s / 2), ea.dblkMin << ((s + 1) / 2)
}

// readExtensibleArray reads an extensible array chunk index. offsetOf maps
// element indexes to chunk offsets.
func readExtensibleArray(r *binary.Reader, addr uint64, offsetOf func(uint64) []uint64) ([]btree.ChunkEntry, error) {
	o, l := r.OffsetSize(), r.LengthSize()
	hdr, err := readBlock(r, addr, 12+6*l+o+4)
	if err != nil {
		return nil, fmt.Errorf("extensible array header: %w", err)
	}
	if err := hdr.header("EAHD"); err != nil {
		return nil, err
	}
	ea := &earray{r: r, addr: addr, offsetOf: offsetOf}
	client := hdr.u8()
	ea.elemSize = int(hdr.u8())
	ea.maxBits = hdr.u8()
	ea.idxElmts = uint64(hdr.u8())
	ea.dblkMin = uint64(hdr.u8())
	ea.sblkMin = uint64(hdr.u8())
	ea.pageBits = hdr.u8()
	hdr.skip(4 * l)
	ea.maxIdx = hdr.length()
	hdr.skip(l)
	iblkAddr := hdr.offset()
	if hdr.err != nil {
		return nil, hdr.err
	}
	if ea.sizeWidth, err = elementSizeWidth(client, ea.elemSize, o); err != nil {
		return nil, fmt.Errorf("extensible array: %w", err)
	}
	if !powerOfTwo(ea.dblkMin) || !powerOfTwo(ea.sblkMin) || ea.maxBits >= 64 || ea.pageBits >= 64 {
		return nil, fmt.Errorf("extensible array parameters %d/%d/%d/%d", ea.maxBits, ea.dblkMin, ea.sblkMin, ea.pageBits)
	}
	if iblkAddr == hdr.undefined() || ea.maxIdx == 0 {
		return nil, nil
	}
	return ea.readIndexBlock(iblkAddr)
}

func powerOfTwo(n uint64) bool { return n != 0 && n&(n-1) == 0 }

func (ea *earray) readIndexBlock(addr uint64) ([]btree.ChunkEntry, error) {
	o := ea.r.OffsetSize()
	nsblks := 1 + int(ea.maxBits) - bits.TrailingZeros64(ea.dblkMin)
	iblkSblks := 2 * bits.TrailingZeros64(ea.sblkMin)
	ndblkAddrs := int(2 * (ea.sblkMin - 1))
	nsblkAddrs := max(nsblks-iblkSblks, 0)

	size := 6 + o + int(ea.idxElmts)*ea.elemSize + (ndblkAddrs+nsblkAddrs)*o + 4
	blk, err := readBlock(ea.r, addr, size)
	if err != nil {
		return nil, fmt.Errorf("extensible array index block: %w", err)
	}
	if err := blk.header("EAIB"); err != nil {
		return nil, err
	}
	blk.skip(1 + o)
	entries := blk.entries(0, min(ea.idxElmts, ea.maxIdx), ea.sizeWidth, ea.offsetOf, nil)
	blk.skip((int(ea.idxElmts) - int(min(ea.idxElmts, ea.maxIdx))) * ea.elemSize)
	dblkAddrs := make([]uint64, ndblkAddrs)
	for i := range dblkAddrs {
		dblkAddrs[i] = blk.offset()
	}
	sblkAddrs := make([]uint64, nsblkAddrs)
	for i := range sblkAddrs {
		sblkAddrs[i] = blk.offset()
	}
	if blk.err != nil {
		return nil, blk.err
	}

	idx := ea.idxElmts
	for s := 0; s < nsblks && idx < ea.maxIdx; s++ {
		ndblks, dblkElmts := ea.superBlock(s)
		var (
			addrs   []uint64
			bitmaps [][]byte
		)
		if s < iblkSblks {
			addrs, dblkAddrs = dblkAddrs[:ndblks], dblkAddrs[ndblks:]
		} else if sblk := sblkAddrs[s-iblkSblks]; sblk != blk.undefined() {
			if addrs, bitmaps, err = ea.readSuperBlock(sblk, s); err != nil {
				return nil, err
			}
		}
		for i := uint64(0); i < ndblks && idx < ea.maxIdx; i++ {
			if i < uint64(len(addrs)) && addrs[i] != blk.undefined() {
				var bitmap []byte
				if bitmaps != nil {
					bitmap = bitmaps[i]
				}
				if entries, err = ea.readDataBlock(addrs[i], idx, dblkElmts, bitmap, entries); err != nil {
					return nil, err
				}
			}
			idx += dblkElmts
		}
	}
	return entries, nil
}

// paged reports whether data blocks of n elements are split into pages.
func (ea *earray) paged(n uint64) bool { return n > 1<<ea.pageBits }

func (ea *earray) readSuperBlock(addr uint64, s int) ([]uint64, [][]byte, error) {
	o := ea.r.OffsetSize()
	ndblks, dblkElmts := ea.superBlock(s)
	bitmapSize := 0
	if ea.paged(dblkElmts) {
		bitmapSize = int(ceilDiv(dblkElmts>>ea.pageBits, 8))
	}
	size := 6 + o + ea.arrOffSize() + int(ndblks)*(bitmapSize+o) + 4
	blk, err := readBlock(ea.r, addr, size)
	if err != nil {
		return nil, nil, fmt.Errorf("extensible array super block %d: %w", s, err)
	}
	if err := blk.header("EASB"); err != nil {
		return nil, nil, err
	}
	blk.skip(1 + o + ea.arrOffSize())
	var bitmaps [][]byte
	if bitmapSize > 0 {
		bitmaps = make([][]byte, ndblks)
		for i := range bitmaps {
			bitmaps[i] = blk.bytes(bitmapSize)
		}
	}
	addrs := make([]uint64, ndblks)
	for i := range addrs {
		addrs[i] = blk.offset()
	}
	return addrs, bitmaps, blk.err
}

// readDataBlock appends the allocated elements of the data block at addr,
// whose first element has index first.
func (ea *earray) readDataBlock(addr, first, n uint64, bitmap []byte, out []btree.ChunkEntry) ([]btree.ChunkEntry, error) {
	o := ea.r.OffsetSize()
	prefix := 6 + o + ea.arrOffSize()
	used := min(n, ea.maxIdx-first)

	if !ea.paged(n) {
		blk, err := readBlock(ea.r, addr, prefix+int(n)*ea.elemSize+4)
		if err != nil {
			return nil, fmt.Errorf("extensible array data block: %w", err)
		}
		if err := blk.header("EADB"); err != nil {
			return nil, err
		}
		blk.skip(1 + o + ea.arrOffSize())
		out = blk.entries(first, used, ea.sizeWidth, ea.offsetOf, out)
		return out, blk.err
	}

	if bitmap == nil {
		return nil, fmt.Errorf("paged extensible array data block at %#x outside a super block", addr)
	}
	pageN := uint64(1) << ea.pageBits
	pageSize := int(pageN)*ea.elemSize + 4
	pageAddr := addr + uint64(prefix+4)
	for p := uint64(0); p*pageN < used; p++ {
		if pageInit(bitmap, p) {
			page, err := readBlock(ea.r, pageAddr, pageSize)
			if err != nil {
				return nil, fmt.Errorf("extensible array page %d: %w", p, err)
			}
			out = page.entries(first+p*pageN, min(pageN, used-p*pageN), ea.sizeWidth, ea.offsetOf, out)
			if page.err != nil {
				return nil, page.err
			}
		}
		pageAddr += uint64(pageSize)
	}
	return out, nil
}
