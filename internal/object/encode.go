package object

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// encoded is one message ready to be placed into a chunk.
type encoded struct {
	typ   message.Type
	flags uint8
	order uint16
	data  []byte
}

// encode serializes msgs. Stored messages keep their bytes and creation
// order; new messages are numbered from next.
func encode(w *binary.Writer, msgs []message.Message, next uint16) ([]encoded, error) {
	out := make([]encoded, 0, len(msgs))
	for _, msg := range msgs {
		if raw, ok := msg.(*message.Raw); ok {
			out = append(out, encoded{typ: raw.MsgType, flags: raw.Flags, order: raw.CreationOrder, data: raw.Data})
			continue
		}
		s, ok := msg.(message.Serializable)
		if !ok {
			return nil, fmt.Errorf("message type %d cannot be serialized", msg.Type())
		}
		sw, buf := w.Scratch(s.SerializedSize(w))
		if err := s.Serialize(sw); err != nil {
			return nil, err
		}
		if len(buf.Bytes()) > 0xFFFF {
			return nil, fmt.Errorf("%w: message type %d of %d bytes", ErrHeaderFull, msg.Type(), len(buf.Bytes()))
		}
		out = append(out, encoded{typ: msg.Type(), flags: message.FlagsOf(msg), order: next, data: buf.Bytes()})
		next++
	}
	return out, nil
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }

func (m encoded) size(version uint8, creationOrder bool) uint64 {
	if version == 1 {
		return 8 + align8(uint64(len(m.data)))
	}
	if creationOrder {
		return 6 + uint64(len(m.data))
	}
	return 4 + uint64(len(m.data))
}

func totalSize(msgs []encoded, version uint8, creationOrder bool) uint64 {
	var n uint64
	for _, m := range msgs {
		n += m.size(version, creationOrder)
	}
	return n
}

func (m encoded) write(w *binary.Writer, version uint8, creationOrder bool) error {
	if version == 1 {
		padded := align8(uint64(len(m.data)))
		head := make([]byte, 8)
		w.ByteOrder().PutUint16(head, uint16(m.typ))
		w.ByteOrder().PutUint16(head[2:], uint16(padded))
		head[4] = m.flags
		if err := w.WriteBytes(head); err != nil {
			return err
		}
		if err := w.WriteBytes(m.data); err != nil {
			return err
		}
		return w.WriteZeros(int(padded) - len(m.data))
	}

	if err := w.WriteUint8(uint8(m.typ)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(m.data))); err != nil {
		return err
	}
	if err := w.WriteUint8(m.flags); err != nil {
		return err
	}
	if creationOrder {
		if err := w.WriteUint16(m.order); err != nil {
			return err
		}
	}
	return w.WriteBytes(m.data)
}

// writeGap fills n bytes with a NIL message. Gaps too small for a message
// header are left as zeros, which readers skip.
func writeGap(w *binary.Writer, n int, version uint8, creationOrder bool) error {
	head := 8
	if version == 2 {
		head = 4
		if creationOrder {
			head = 6
		}
	}
	if n < head {
		return w.WriteZeros(n)
	}
	gap := encoded{typ: message.TypeNIL, data: make([]byte, n-head)}
	return gap.write(w, version, creationOrder)
}

// writeChunk encodes msgs into c and pads the remainder. Version 2 chunks
// are followed by a checksum over prefix and the message area; a nil
// prefix means a continuation chunk, which gets its own signature.
func writeChunk(w *binary.Writer, version uint8, creationOrder bool, c Chunk, msgs []encoded, prefix []byte) error {
	bw, buf := w.Scratch(int(c.Size))
	for _, m := range msgs {
		if err := m.write(bw, version, creationOrder); err != nil {
			return err
		}
	}
	if gap := int(int64(c.Size) - bw.Pos()); gap > 0 {
		if err := writeGap(bw, gap, version, creationOrder); err != nil {
			return err
		}
	}
	area := buf.Bytes()[:c.Size]
	if err := w.At(int64(c.Address)).WriteBytes(area); err != nil {
		return err
	}
	if version != 2 {
		return nil
	}

	if prefix == nil {
		prefix = []byte(signatureContinuation)
		if err := w.At(int64(c.Address - 4)).WriteBytes(prefix); err != nil {
			return err
		}
	}
	sum := append(append([]byte(nil), prefix...), area...)
	return w.At(int64(c.Address + c.Size)).WriteUint32(binary.Lookup3Checksum(sum))
}
