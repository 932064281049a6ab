package nexus

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Codec is the compression filter applied to chunked datasets.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecDeflate
	CodecZstd
	CodecLZ4
)

var codecNames = []string{"none", "deflate", "zstd", "lz4"}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("Codec(%d)", uint8(c))
}

// ParseCodec returns the codec called name. "gzip" is accepted for
// deflate and "" for none.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CodecNone, nil
	case "deflate", "gzip":
		return CodecDeflate, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	}
	return CodecNone, fmt.Errorf("nexus: unknown compression codec %q", name)
}

// Compression configures the filters of chunked datasets created by a
// tree. Level 0 selects the codec's default.
type Compression struct {
	Codec Codec
	Level int
	// Shuffle groups the bytes of the elements in a chunk by significance.
	// It applies with CodecNone too.
	Shuffle bool
	// Fletcher32 adds a checksum to every chunk.
	Fletcher32 bool
}

type filterSpec struct {
	id         uint16
	clientData []uint32
}

func (c Compression) filters() []filterSpec {
	var out []filterSpec
	if c.Shuffle {
		out = append(out, filterSpec{id: h5.FilterShuffle})
	}
	var level []uint32
	if c.Level > 0 {
		level = []uint32{uint32(c.Level)}
	}
	switch c.Codec {
	case CodecDeflate:
		out = append(out, filterSpec{id: h5.FilterDeflate, clientData: level})
	case CodecZstd:
		out = append(out, filterSpec{id: h5.FilterZstd, clientData: level})
	case CodecLZ4:
		out = append(out, filterSpec{id: h5.FilterLZ4})
	}
	if c.Fletcher32 {
		out = append(out, filterSpec{id: h5.FilterFletcher32})
	}
	return out
}
