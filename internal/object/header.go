package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrHeaderFull         = errors.New("object header cannot hold messages")
)

const (
	signatureHeader       = "OHDR"
	signatureContinuation = "OCHK"

	// flagCreationOrder marks v2 headers whose messages carry a creation
	// order field.
	flagCreationOrder = 0x04
	flagAttrPhase     = 0x10
	flagTimes         = 0x20

	maxContinuationDepth = 64
)

// Chunk is the message area of one header chunk.
type Chunk struct {
	Address uint64 // first message byte
	Size    uint64
}

// Header is a parsed object header.
type Header struct {
	Version uint8
	Address uint64
	Flags   uint8

	// Messages holds the decoded messages in storage order.
	Messages []message.Message

	// Raw holds every stored message other than NIL and continuation
	// messages, decoded or not.
	Raw []*message.Raw

	// Chunks lists the message areas; Chunks[0] follows the prefix.
	Chunks []Chunk

	// prefix is the v2 prefix covered by the chunk 0 checksum.
	prefix []byte
}

// Read parses the object header at address.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	switch {
	case string(peek) == signatureHeader:
		return readV2(hr, address)
	case peek[0] == 1:
		return readV1(hr, address)
	}
	return nil, fmt.Errorf("%w: unknown format at address %d", ErrInvalidHeader, address)
}

func (h *Header) keep(raw *message.Raw) {
	h.Raw = append(h.Raw, raw)
	if raw.Parsed != nil {
		h.Messages = append(h.Messages, raw.Parsed)
	}
}

func (h *Header) creationOrder() bool {
	return h.Version == 2 && h.Flags&flagCreationOrder != 0
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns every message of type typ.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var out []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			out = append(out, msg)
		}
	}
	return out
}

func first[T message.Message](h *Header, typ message.Type) T {
	m, _ := h.GetMessage(typ).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

// IsDataset reports whether the header carries a dataspace and a layout.
func (h *Header) IsDataset() bool {
	return h.Dataspace() != nil && h.DataLayout() != nil
}
