package nexus

import (
	"errors"
	"io/fs"
)

// WalkFunc is called for each node during Walk. err is set when the
// children of the group at path could not be listed. Returning fs.SkipDir
// for a group skips its children; any other error stops the walk.
type WalkFunc func(path string, kind Kind, err error) error

// Walk visits the group at root and everything below it depth first, in
// insertion order. fn runs without the tree lock held and may call other
// methods of the tree.
func (t *Tree) Walk(root string, fn WalkFunc) error {
	p, err := ParsePath(root)
	if err != nil {
		return err
	}
	t.mu.Lock()
	err = t.checkOpen("walk", root)
	var id NodeID
	if err == nil {
		id, err = t.nav.resolve("walk", p, KindGroup, false)
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.walkGroup(id, p.Plain(), fn, make(map[groupKey]bool))
}

// groupKey identifies a group object, so that hard links forming a cycle
// are descended once.
type groupKey struct {
	addr     uint64
	external bool
}

type childRef struct {
	id   NodeID
	path string
	kind Kind
}

func (t *Tree) walkGroup(id NodeID, path string, fn WalkFunc, visited map[groupKey]bool) error {
	if err := fn(path, KindGroup, nil); err != nil {
		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		return err
	}
	key, children, err := t.children(id, path)
	if err == nil {
		if visited[key] {
			return nil
		}
		visited[key] = true
	}
	if err != nil {
		if err := fn(path, KindGroup, err); err != nil && !errors.Is(err, fs.SkipDir) {
			return err
		}
		return nil
	}
	for _, c := range children {
		if c.kind == KindGroup {
			if err := t.walkGroup(c.id, c.path, fn, visited); err != nil {
				return err
			}
			continue
		}
		if err := fn(c.path, KindDataset, nil); err != nil && !errors.Is(err, fs.SkipDir) {
			return err
		}
	}
	return nil
}

func (t *Tree) children(id NodeID, path string) (groupKey, []childRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen("walk", path); err != nil {
		return groupKey{}, nil, err
	}
	key, err := t.nav.keyOf(id)
	if err != nil {
		return groupKey{}, nil, translate("walk", path, err)
	}
	if err := t.nav.populate(id); err != nil {
		return groupKey{}, nil, translate("walk", path, err)
	}
	n := t.cache.node(id)
	out := make([]childRef, len(n.children))
	for i, c := range n.children {
		cn := t.cache.node(c)
		out[i] = childRef{id: c, path: cn.path, kind: cn.kind}
	}
	return key, out, nil
}
