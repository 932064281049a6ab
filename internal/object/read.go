package object

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Version 1 prefix: version, reserved, message count (2), reference count
// (4), chunk 0 size (4), padding to 16 bytes. Each message has a type (2),
// size (2), flags, 3 reserved bytes and 8-byte aligned data.
const v1PrefixSize = 16

func readV1(r *binary.Reader, address uint64) (*Header, error) {
	r.Skip(8)
	size, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	h := &Header{Version: 1, Address: address}
	h.readChunk(r, Chunk{Address: address + v1PrefixSize, Size: uint64(size)}, 0)
	return h, nil
}

// Version 2 prefix: "OHDR", version, flags, optional times (16 bytes) and
// attribute phase values (4 bytes), then the chunk 0 size in 1 << (flags &
// 3) bytes. Messages have a 1-byte type, 2-byte size, flags and an optional
// 2-byte creation order. Each chunk ends in a lookup3 checksum;
// continuation chunks start with "OCHK".
func readV2(r *binary.Reader, address uint64) (*Header, error) {
	r.Skip(4)
	vf, err := r.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	if vf[0] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, vf[0])
	}
	h := &Header{Version: 2, Address: address, Flags: vf[1]}
	if h.Flags&flagTimes != 0 {
		r.Skip(16)
	}
	if h.Flags&flagAttrPhase != 0 {
		r.Skip(4)
	}
	size, err := r.ReadUintN(1 << (h.Flags & 0x03))
	if err != nil {
		return nil, err
	}

	start := r.Pos()
	if h.prefix, err = r.At(int64(address)).ReadBytes(int(start - int64(address))); err != nil {
		return nil, err
	}
	h.readChunk(r, Chunk{Address: uint64(start), Size: size}, 0)
	return h, nil
}

// readChunk parses the messages of one chunk and follows continuations.
// Parsing stops quietly at the first malformed message.
func (h *Header) readChunk(r *binary.Reader, c Chunk, depth int) {
	h.Chunks = append(h.Chunks, c)
	cr := r.At(int64(c.Address))
	end := int64(c.Address + c.Size)
	minHeader := int64(8)
	if h.Version == 2 {
		minHeader = 4
		if h.creationOrder() {
			minHeader = 6
		}
	}

	for cr.Pos()+minHeader <= end {
		var raw *message.Raw
		var err error
		if h.Version == 1 {
			raw, err = readV1Message(cr)
		} else {
			raw, err = readV2Message(cr, h.creationOrder())
		}
		if err != nil {
			return
		}

		switch raw.MsgType {
		case message.TypeNIL:
			continue
		case message.TypeObjectHeaderContinuation:
			cont, err := message.ParseContinuation(raw.Data, cr)
			if err != nil || depth >= maxContinuationDepth {
				continue
			}
			next := Chunk{Address: cont.Offset, Size: cont.Length}
			if h.Version == 2 {
				sig, err := r.At(int64(cont.Offset)).ReadBytes(4)
				if err != nil || string(sig) != signatureContinuation || cont.Length < 8 {
					continue
				}
				next = Chunk{Address: cont.Offset + 4, Size: cont.Length - 8}
			}
			h.readChunk(r, next, depth+1)
			continue
		}

		if msg, err := message.Parse(raw.MsgType, raw.Data, raw.Flags, cr); err == nil {
			raw.Parsed = msg
		}
		h.keep(raw)
	}
}

func readV1Message(r *binary.Reader) (*message.Raw, error) {
	head, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	order := r.ByteOrder()
	raw := &message.Raw{MsgType: message.Type(order.Uint16(head)), Flags: head[4]}
	raw.Data, err = r.ReadBytes(int(order.Uint16(head[2:])))
	return raw, err
}

func readV2Message(r *binary.Reader, creationOrder bool) (*message.Raw, error) {
	typ, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	size, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	raw := &message.Raw{MsgType: message.Type(typ), Flags: flags}
	if creationOrder {
		if raw.CreationOrder, err = r.ReadUint16(); err != nil {
			return nil, err
		}
	}
	raw.Data, err = r.ReadBytes(int(size))
	return raw, err
}
