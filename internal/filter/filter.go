package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Filter is one stage of a chunk filter pipeline.
type Filter interface {
	ID() uint16
	Decode(input []byte) ([]byte, error)
	Encode(input []byte) ([]byte, error)
}

type kind struct {
	name  string
	build func(clientData []uint32) Filter // nil when not implemented
}

var kinds = map[uint16]kind{
	message.FilterDeflate:     {"deflate", func(cd []uint32) Filter { return NewDeflate(cd) }},
	message.FilterShuffle:     {"shuffle", func(cd []uint32) Filter { return NewShuffle(cd) }},
	message.FilterFletcher32:  {"fletcher32", func(cd []uint32) Filter { return NewFletcher32(cd) }},
	message.FilterSZIP:        {"szip", nil},
	message.FilterNBit:        {"nbit", nil},
	message.FilterScaleOffset: {"scaleoffset", nil},
	message.FilterLZ4:         {"lz4", func(cd []uint32) Filter { return NewLZ4(cd) }},
	message.FilterZstd:        {"zstd", func(cd []uint32) Filter { return NewZstd(cd) }},
}

// Supported reports whether chunks can be encoded and decoded with filter id.
func Supported(id uint16) bool {
	return kinds[id].build != nil
}

// Name returns the conventional name of filter id, or "" if unknown.
func Name(id uint16) string {
	return kinds[id].name
}

// New creates the filter described by info. It returns a nil filter and no
// error for an unavailable optional filter.
func New(info message.FilterInfo) (Filter, error) {
	k, ok := kinds[info.ID]
	if ok && k.build != nil {
		return k.build(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if ok {
		return nil, fmt.Errorf("%s filter (%d) not supported", k.name, info.ID)
	}
	return nil, fmt.Errorf("unknown filter %d", info.ID)
}
