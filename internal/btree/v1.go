package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

const (
	nodeGroup uint8 = 0
	nodeChunk uint8 = 1
)

// walkV1 visits the leaf children of a version 1 B-tree in key order.
// Each child is passed with the key that precedes it; the final key of a
// node bounds the last child and is not visited.
func walkV1(r *binary.Reader, addr uint64, nodeType uint8, keySize, depth int, visit func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return errTooDeep
	}
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return err
	}
	if string(head[:4]) != "TREE" {
		return fmt.Errorf("node at %#x: bad signature %q", addr, head[:4])
	}
	if head[4] != nodeType {
		return fmt.Errorf("node at %#x: type %d, want %d", addr, head[4], nodeType)
	}
	level := head[5]
	used := int(r.ByteOrder().Uint16(head[6:]))
	nr.Skip(int64(2 * r.OffsetSize())) // siblings

	for i := range used {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		if level > 0 {
			err = walkV1(r, child, nodeType, keySize, depth+1, visit)
		} else {
			err = visit(key, child)
		}
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}
