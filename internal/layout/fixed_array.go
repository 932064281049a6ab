package layout

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
)

// minPageBits is the smallest page-bits value written for fixed array
// indexes, the HDF5 library default.
const minPageBits = 10

// readFixedArray reads a fixed array chunk index. offsetOf maps element
// indexes to chunk offsets.
func readFixedArray(r *binary.Reader, addr uint64, offsetOf func(uint64) []uint64) ([]btree.ChunkEntry, error) {
	o, l := r.OffsetSize(), r.LengthSize()
	hdr, err := readBlock(r, addr, 8+l+o+4)
	if err != nil {
		return nil, fmt.Errorf("fixed array header: %w", err)
	}
	if err := hdr.header("FAHD"); err != nil {
		return nil, err
	}
	client := hdr.u8()
	elemSize := int(hdr.u8())
	pageBits := hdr.u8()
	nelmts := hdr.length()
	dblkAddr := hdr.offset()
	if hdr.err != nil {
		return nil, hdr.err
	}
	sizeWidth, err := elementSizeWidth(client, elemSize, o)
	if err != nil {
		return nil, fmt.Errorf("fixed array: %w", err)
	}
	if nelmts == 0 || dblkAddr == hdr.undefined() {
		return nil, nil
	}
	if pageBits >= 64 {
		return nil, fmt.Errorf("fixed array page bits %d", pageBits)
	}

	prefix := 6 + o
	pageN := uint64(1) << pageBits
	if nelmts <= pageN {
		blk, err := readBlock(r, dblkAddr, prefix+int(nelmts)*elemSize+4)
		if err != nil {
			return nil, fmt.Errorf("fixed array data block: %w", err)
		}
		if err := blk.header("FADB"); err != nil {
			return nil, err
		}
		blk.skip(1 + o)
		entries := blk.entries(0, nelmts, sizeWidth, offsetOf, nil)
		return entries, blk.err
	}

	// Paged data block: a prefix with the page bitmap, then each page
	// followed by its own checksum.
	npages := ceilDiv(nelmts, pageN)
	bitmapSize := int(ceilDiv(npages, 8))
	blk, err := readBlock(r, dblkAddr, prefix+bitmapSize+4)
	if err != nil {
		return nil, fmt.Errorf("fixed array data block: %w", err)
	}
	if err := blk.header("FADB"); err != nil {
		return nil, err
	}
	blk.skip(1 + o)
	bitmap := blk.bytes(bitmapSize)
	if blk.err != nil {
		return nil, blk.err
	}

	var entries []btree.ChunkEntry
	pageAddr := dblkAddr + uint64(prefix+bitmapSize+4)
	for p := uint64(0); p < npages; p++ {
		n := min(pageN, nelmts-p*pageN)
		size := int(n)*elemSize + 4
		if pageInit(bitmap, p) {
			page, err := readBlock(r, pageAddr, size)
			if err != nil {
				return nil, fmt.Errorf("fixed array page %d: %w", p, err)
			}
			entries = page.entries(p*pageN, n, sizeWidth, offsetOf, entries)
			if page.err != nil {
				return nil, page.err
			}
		}
		pageAddr += uint64(size)
	}
	return entries, nil
}

// chunkSizeWidth is the width of the chunk size field of a filtered fixed
// array entry for chunks of chunkBytes unfiltered bytes.
func chunkSizeWidth(chunkBytes uint64) int {
	return min(1+(bits.Len64(chunkBytes)+7)/8, 8)
}

// fixedArrayPageBits returns a page size large enough that n entries fit
// in a single unpaged data block.
func fixedArrayPageBits(n int) uint8 {
	return uint8(max(bits.Len(uint(n-1)), minPageBits))
}

// WriteFixedArrayIndex writes a fixed array chunk index with one entry per
// chunk in row-major chunk order. Entries with a zero address are written
// as unallocated. It returns the header address and the page-bits value
// the layout message must carry.
func (cw *ChunkWriter) WriteFixedArrayIndex(entries []btree.ChunkEntry, chunkBytes uint64) (uint64, uint8, error) {
	n := len(entries)
	if n == 0 {
		return 0, 0, errors.New("fixed array index needs at least one entry")
	}
	o, l := cw.w.OffsetSize(), cw.w.LengthSize()
	pageBits := fixedArrayPageBits(n)

	var client uint8
	elemSize, sizeWidth := o, 0
	if cw.Filtered() {
		client = 1
		sizeWidth = chunkSizeWidth(chunkBytes)
		elemSize += sizeWidth + 4
	}

	hdrSize := 8 + l + o + 4
	hdrAddr, err := cw.alloc(uint64(hdrSize))
	if err != nil {
		return 0, 0, err
	}
	blkSize := 6 + o + n*elemSize + 4
	blkAddr, err := cw.alloc(uint64(blkSize))
	if err != nil {
		return 0, 0, err
	}

	undefined := cw.w.UndefinedOffset()
	sw, buf := cw.w.Scratch(blkSize)
	errs := []error{sw.WriteBytes([]byte("FADB")), sw.WriteUint8(0), sw.WriteUint8(client), sw.WriteOffset(hdrAddr)}
	for _, e := range entries {
		if e.Address == 0 {
			errs = append(errs, sw.WriteOffset(undefined), sw.WriteZeros(elemSize-o))
			continue
		}
		errs = append(errs, sw.WriteOffset(e.Address))
		if sizeWidth > 0 {
			errs = append(errs, sw.WriteUintN(uint64(e.Size), sizeWidth), sw.WriteUint32(e.FilterMask))
		}
	}
	if err := sealBlock(cw.w, blkAddr, sw, buf, errs); err != nil {
		return 0, 0, fmt.Errorf("writing fixed array data block: %w", err)
	}

	sw, buf = cw.w.Scratch(hdrSize)
	errs = []error{
		sw.WriteBytes([]byte("FAHD")), sw.WriteUint8(0), sw.WriteUint8(client),
		sw.WriteUint8(uint8(elemSize)), sw.WriteUint8(pageBits),
		sw.WriteLength(uint64(n)), sw.WriteOffset(blkAddr),
	}
	if err := sealBlock(cw.w, hdrAddr, sw, buf, errs); err != nil {
		return 0, 0, fmt.Errorf("writing fixed array header: %w", err)
	}
	return hdrAddr, pageBits, nil
}

// sealBlock appends the checksum to a block encoded in buf and stores it
// at addr.
func sealBlock(w *binary.Writer, addr uint64, sw *binary.Writer, buf *binary.Buffer, errs []error) error {
	data := buf.Bytes()
	errs = append(errs, sw.WriteUint32(binary.Lookup3Checksum(data[:len(data)-4])))
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return w.At(int64(addr)).WriteBytes(buf.Bytes())
}
