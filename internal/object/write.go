package object

import (
	"math/bits"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// MinGroupChunk is the message area given to new group headers so that a
// few links fit without a continuation chunk.
const MinGroupChunk = 120

// GroupMessages returns the messages of an empty group using link
// messages.
func GroupMessages() []message.Message {
	return []message.Message{message.NewLinkInfo(), message.NewGroupInfo()}
}

// chunkArea returns the chunk 0 size for messages of total size used. Any
// padding is large enough for a NIL message.
func chunkArea(used uint64, minChunk int) uint64 {
	area := max(used, uint64(max(minChunk, 0)))
	if gap := area - used; gap > 0 && gap < 4 {
		area = used + 4
	}
	return area
}

// sizeField returns the width of the chunk 0 size field.
func sizeField(area uint64) int {
	switch {
	case area <= 0xFF:
		return 1
	case area <= 0xFFFF:
		return 2
	case area <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

// Size returns the bytes [Write] uses for msgs.
func Size(w *binary.Writer, msgs []message.Message, minChunk int) int {
	var used uint64
	for _, msg := range msgs {
		used += 4 + uint64(message.SerializedSize(msg, w))
	}
	area := chunkArea(used, minChunk)
	return 6 + sizeField(area) + int(area) + 4
}

// Write stores msgs as a new version 2 header at the position of w, with a
// message area of at least minChunk bytes. It returns the header size.
func Write(w *binary.Writer, msgs []message.Message, minChunk int) (int, error) {
	enc, err := encode(w, msgs, 0)
	if err != nil {
		return 0, err
	}
	area := chunkArea(totalSize(enc, 2, false), minChunk)
	field := sizeField(area)

	pw, buf := w.Scratch(6 + field)
	if err := pw.WriteBytes([]byte(signatureHeader)); err != nil {
		return 0, err
	}
	if err := pw.WriteBytes([]byte{2, uint8(bits.TrailingZeros(uint(field)))}); err != nil {
		return 0, err
	}
	if err := pw.WriteUintN(area, field); err != nil {
		return 0, err
	}
	prefix := buf.Bytes()
	if err := w.WriteBytes(prefix); err != nil {
		return 0, err
	}

	c := Chunk{Address: uint64(w.Pos()), Size: area}
	if err := writeChunk(w, 2, false, c, enc, prefix); err != nil {
		return 0, err
	}
	return len(prefix) + int(area) + 4, nil
}
