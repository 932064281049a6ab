package message

import (
	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// Message flag bits.
const (
	FlagConstant uint8 = 0x01
	FlagShared   uint8 = 0x02
)

// Raw is a message exactly as stored in a header. Parsed holds the decoded
// form when the type is known and decoding succeeded.
type Raw struct {
	MsgType       Type
	Flags         uint8
	CreationOrder uint16
	Data          []byte
	Parsed        Message
}

func (m *Raw) Type() Type          { return m.MsgType }
func (m *Raw) MessageFlags() uint8 { return m.Flags }

func (m *Raw) Serialize(w *binary.Writer) error    { return w.WriteBytes(m.Data) }
func (m *Raw) SerializedSize(w *binary.Writer) int { return len(m.Data) }

// Flagged is a message that carries its own header flags.
type Flagged interface {
	MessageFlags() uint8
}

// FlagsOf returns the header flags to store with msg. Datatypes never
// change once written and are marked constant.
func FlagsOf(msg Message) uint8 {
	switch m := msg.(type) {
	case Flagged:
		return m.MessageFlags()
	case *Datatype:
		return FlagConstant
	}
	return 0
}
