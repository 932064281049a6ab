// Package object reads, writes and rewrites object headers.
//
// Every group and dataset has an object header: a list of header messages
// (dataspace, datatype, layout, links, attributes, ...) spread over one or
// more chunks. The message bodies are handled by the message package; this
// package handles their framing.
//
// # Header Versions
//
//   - Version 1: 16-byte prefix, messages aligned to 8 bytes, chunks
//     chained by continuation messages. Found in files with a version 0 or
//     1 superblock.
//   - Version 2 (signature "OHDR"): variable-width chunk size field,
//     optional timestamps and creation order, continuation chunks with
//     signature "OCHK". Every chunk ends in a checksum, which [Write] and
//     [Rewrite] maintain.
//
// [Read] detects the version, follows continuation chunks and records the
// message area of each chunk in [Header.Chunks].
//
// # Reading
//
//	hdr, err := object.Read(reader, addr)
//	space := hdr.Dataspace()
//	links := hdr.GetMessages(message.TypeLink)
//
// Each stored message is also kept in [Header.Raw] with its bytes, flags
// and creation order.
//
// # Writing
//
// New headers are always version 2. [Size] reports the bytes a header
// needs, so the caller can allocate them, and [Write] encodes it:
//
//	size := object.Size(w, msgs, object.MinGroupChunk)
//	addr, err := alloc(uint64(size))
//	_, err = object.Write(w.At(int64(addr)), msgs, object.MinGroupChunk)
//
// minChunk leaves room in chunk 0 so later messages fit without a
// continuation. [GroupMessages] is the message list of an empty group.
//
// # Rewriting
//
// [Rewrite] replaces the messages of an existing header of either version
// without moving it, so links to the object stay valid. Messages are
// packed into chunk 0 first. What does not fit goes to the existing
// continuation chunk, or to a new one reserved through an [Allocator].
// Unchanged messages are written back from their raw bytes and keep their
// creation order.
//
// # Errors
//
//   - [ErrInvalidHeader]: not an object header, or a damaged one
//   - [ErrUnsupportedVersion]: a header version other than 1 or 2
//   - [ErrHeaderFull]: a message too large for its 16-bit size field, or
//     a first chunk too small to hold a continuation message
package object
