package object

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Allocator reserves size bytes and returns their address.
type Allocator func(size uint64) (uint64, error)

// continuationSlack is spare room in a new continuation chunk for later
// additions.
const continuationSlack = 256

// Rewrite replaces the message list of hdr with msgs without moving the
// header. Messages are packed into chunk 0; overflow goes to the existing
// continuation chunk when it is large enough and to a new one reserved
// with alloc otherwise. hdr is stale afterwards.
func Rewrite(w *binary.Writer, alloc Allocator, hdr *Header, msgs []message.Message) error {
	if len(hdr.Chunks) == 0 {
		return fmt.Errorf("%w: header at %d has no chunks", ErrInvalidHeader, hdr.Address)
	}

	var next uint16
	for _, r := range hdr.Raw {
		next = max(next, r.CreationOrder+1)
	}
	enc, err := encode(w, msgs, next)
	if err != nil {
		return err
	}

	v, co := hdr.Version, hdr.creationOrder()
	chunk0 := hdr.Chunks[0]
	head, tail := enc, []encoded(nil)
	if totalSize(enc, v, co) > chunk0.Size {
		contSize := encoded{data: make([]byte, w.OffsetSize()+w.LengthSize())}.size(v, co)
		if contSize > chunk0.Size {
			return fmt.Errorf("%w: first chunk of %d bytes", ErrHeaderFull, chunk0.Size)
		}
		var used uint64
		n := 0
		for ; n < len(enc); n++ {
			sz := enc[n].size(v, co)
			if used+sz+contSize > chunk0.Size {
				break
			}
			used += sz
		}
		head, tail = enc[:n], enc[n:]
	}

	if len(tail) > 0 {
		area, err := continuation(hdr, alloc, totalSize(tail, v, co))
		if err != nil {
			return err
		}
		if err := writeChunk(w, v, co, area, tail, nil); err != nil {
			return err
		}
		head = append(head[:len(head):len(head)], encoded{
			typ:  message.TypeObjectHeaderContinuation,
			data: continuationMessage(w, v, area),
		})
	}

	if err := writeChunk(w, v, co, chunk0, head, hdr.prefix); err != nil {
		return err
	}
	if v == 1 {
		return w.At(int64(hdr.Address + 2)).WriteUint16(uint16(len(head) + len(tail)))
	}
	return nil
}

// continuation returns a message area of at least size bytes, reusing the
// header's current continuation chunk when it fits.
func continuation(hdr *Header, alloc Allocator, size uint64) (Chunk, error) {
	if len(hdr.Chunks) == 2 && hdr.Chunks[1].Size >= size {
		return hdr.Chunks[1], nil
	}
	c := Chunk{Size: size + continuationSlack}
	block := c.Size
	if hdr.Version == 2 {
		block += 8
	}
	addr, err := alloc(block)
	if err != nil {
		return Chunk{}, err
	}
	c.Address = addr
	if hdr.Version == 2 {
		c.Address += 4
	}
	return c, nil
}

// continuationMessage encodes the address and length of c. Version 2
// blocks include their signature and checksum.
func continuationMessage(w *binary.Writer, version uint8, c Chunk) []byte {
	addr, length := c.Address, c.Size
	if version == 2 {
		addr -= 4
		length += 8
	}
	bw, buf := w.Scratch(w.OffsetSize() + w.LengthSize())
	_ = bw.WriteOffset(addr)
	_ = bw.WriteLength(length)
	return buf.Bytes()
}
