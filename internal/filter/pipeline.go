package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Pipeline runs chunk data through the filters of a pipeline message.
type Pipeline struct {
	// Indexed like the message; unavailable optional filters are nil so
	// filter mask bits keep their positions.
	stages   []Filter
	optional []bool
}

// NewPipeline builds the pipeline described by fp, which may be nil.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, f)
		p.optional = append(p.optional, info.IsOptional())
	}
	return p, nil
}

// Decode undoes the pipeline, last filter first. Bit i of mask marks
// filter i as not applied to this chunk.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		f := p.stages[i]
		if mask&(1<<i) != 0 {
			continue
		}
		if f == nil {
			return nil, fmt.Errorf("chunk needs unavailable optional filter at position %d", i)
		}
		out, err := f.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", label(f), err)
		}
		data = out
	}
	return data, nil
}

// Encode applies the pipeline in declaration order and returns the mask of
// filters that were skipped. An optional filter that fails is skipped
// rather than failing the chunk.
func (p *Pipeline) Encode(data []byte) ([]byte, uint32, error) {
	var mask uint32
	for i, f := range p.stages {
		if f == nil {
			mask |= 1 << i
			continue
		}
		out, err := f.Encode(data)
		switch {
		case err == nil:
			data = out
		case p.optional[i]:
			mask |= 1 << i
		default:
			return nil, 0, fmt.Errorf("%s encode: %w", label(f), err)
		}
	}
	return data, mask, nil
}

// Empty reports whether no filter of the pipeline is usable.
func (p *Pipeline) Empty() bool { return p.Len() == 0 }

// Len returns the number of usable filters.
func (p *Pipeline) Len() int {
	n := 0
	for _, f := range p.stages {
		if f != nil {
			n++
		}
	}
	return n
}

// SetElementSize passes the dataset element size to filters that depend
// on it.
func (p *Pipeline) SetElementSize(size int) {
	for _, f := range p.stages {
		if s, ok := f.(*Shuffle); ok && size > 0 {
			s.elemSize = size
		}
	}
}

func label(f Filter) string {
	if name := Name(f.ID()); name != "" {
		return name
	}
	return fmt.Sprintf("filter %d", f.ID())
}
