package alloc

import (
	"fmt"
	"slices"
	"sync"
)

// Extent is a range of file space.
type Extent struct {
	Addr uint64
	Size uint64
}

// End returns the first address after e.
func (e Extent) End() uint64 { return e.Addr + e.Size }

// Allocator is an append-only space allocator. It is safe for concurrent
// use.
type Allocator struct {
	mu      sync.Mutex
	base    uint64
	eof     uint64
	extents []Extent
}

// New returns an allocator whose first extent starts at eof.
func New(eof uint64) *Allocator {
	return &Allocator{base: eof, eof: eof}
}

// Alloc reserves size bytes at the end of the file. A zero size returns
// the current end without reserving anything.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.eof
	if size > 0 {
		a.eof += size
		a.extents = append(a.extents, Extent{Addr: addr, Size: size})
	}
	return addr
}

// Reserve is Alloc with the signature expected by writers that can fail.
func (a *Allocator) Reserve(size uint64) (uint64, error) {
	return a.Alloc(size), nil
}

// AllocFunc adapts Alloc to writers that count in int64.
func (a *Allocator) AllocFunc() func(size int64) uint64 {
	return func(size int64) uint64 {
		if size < 0 {
			panic(fmt.Sprintf("alloc: negative size %d", size))
		}
		return a.Alloc(uint64(size))
	}
}

// EOFAddr returns the address the next extent would start at.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Extents returns the extents handed out so far in address order.
func (a *Allocator) Extents() []Extent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.extents)
}

// Validate reports an extent outside [base, eof) or two extents that
// overlap.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	sorted := slices.SortedFunc(slices.Values(a.extents), func(x, y Extent) int {
		switch {
		case x.Addr < y.Addr:
			return -1
		case x.Addr > y.Addr:
			return 1
		}
		return 0
	})
	prev := Extent{Addr: a.base}
	for _, e := range sorted {
		if e.Addr < prev.End() {
			return fmt.Errorf("alloc: extent [%#x,+%d) overlaps [%#x,+%d)", e.Addr, e.Size, prev.Addr, prev.Size)
		}
		if e.End() > a.eof {
			return fmt.Errorf("alloc: extent [%#x,+%d) ends past eof %#x", e.Addr, e.Size, a.eof)
		}
		prev = e
	}
	return nil
}
