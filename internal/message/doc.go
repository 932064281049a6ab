// Package message encodes and decodes the header messages stored in object
// headers.
//
// Each group and dataset is described by a list of messages. This package
// turns the body of one message into a Go value and back. Where a message
// sits in a header, and how headers are chained, is the business of the
// object package.
//
// # Decoded Messages
//
//   - [Dataspace]: rank, current and maximum dimensions; scalar and null
//     spaces.
//   - [Datatype]: fixed-point, floating-point, string and variable-length
//     string types. Enum types keep their base type. Compound, array and
//     opaque types keep their properties undecoded so they survive a
//     rewrite.
//   - [DataLayout]: compact, contiguous and chunked layouts, versions 1 to
//     4. Version 4 chunked layouts carry a [ChunkIndexType]; older ones are
//     reported as [ChunkIndexBTreeV1]. Virtual layouts are rejected.
//   - [FilterPipeline]: filter IDs, flags, names and client data.
//   - [Link] and [LinkInfo]: hard, soft and external links of new-style
//     groups.
//   - [GroupInfo], [SymbolTable] and [Continuation].
//   - [Attribute]: name, datatype, dataspace and raw value.
//
// Messages of other types come back from [Parse] as [Unknown].
//
// # Raw Messages
//
// Headers keep every stored message as a [Raw], holding the type, flags,
// creation order and bytes exactly as read, plus the decoded form when
// there is one. When a header is rewritten, messages that were not changed
// are written back from their Raw bytes, so types this package cannot
// encode are preserved.
//
// # Encoding
//
// Messages that can be written implement [Serializable]. Sizes depend on
// the offset and length widths of the file, so both encoding and measuring
// take a binary.Writer:
//
//	link := message.NewHardLink("data", addr)
//	size := link.SerializedSize(w)
//	err := link.Serialize(w)
//
// [FlagsOf] returns the header flags a message must be stored with, for
// example the constant flag of datatype messages.
//
// # Decoding
//
//	msg, err := message.Parse(message.TypeDataLayout, body, flags, reader)
//	layout := msg.(*message.DataLayout)
//
// The reader supplies the address widths and is used for messages that
// point elsewhere in the file.
package message
