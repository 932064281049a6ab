package nexus

import (
	"errors"
	"log/slog"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// ClassAttribute is the attribute that records a group's NeXus class.
const ClassAttribute = "NX_class"

// navigator resolves paths against the node cache and falls back to the
// container for groups whose children are not all known.
type navigator struct {
	f     *h5.File
	cache *nodeCache
	types *TypeMap
	log   *slog.Logger
}

// resolve walks path from the root and returns the node it names, which
// must be of kind want. A cached dataset where a group is needed fails
// with ErrNotAGroup; one found in the container fails with
// ErrKindMismatch and is not cached. Missing groups are created, with their class
// attribute, when createMissing is set. A failed resolve leaves the cache
// as it was apart from groups it created.
func (n *navigator) resolve(op string, path ParsedPath, want Kind, createMissing bool) (NodeID, error) {
	cur := rootID
	for i, seg := range path {
		if n.cache.node(cur).kind != KindGroup {
			return 0, treeErr(op, path[:i].Plain(), ErrNotAGroup)
		}
		need := KindGroup
		if i == len(path)-1 {
			need = want
		}
		next, err := n.step(op, cur, seg, need, createMissing && need == KindGroup)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	switch kind := n.cache.node(cur).kind; {
	case kind == want:
		return cur, nil
	case want == KindGroup:
		return 0, treeErr(op, path.Plain(), ErrNotAGroup)
	default:
		return 0, treeErr(op, path.Plain(), ErrKindMismatch)
	}
}

// step moves from parent to its child seg.
func (n *navigator) step(op string, parent NodeID, seg Segment, need Kind, create bool) (NodeID, error) {
	if id, ok := n.cache.child(parent, seg.Name); ok {
		return id, nil
	}
	p := n.cache.node(parent)
	path := joinPath(p.path, seg.Name)
	if p.state != NodePopulated {
		info, found, err := n.probe(path)
		if err != nil {
			return 0, translate(op, path, err)
		}
		if found {
			if kindOf(info.Kind) != need {
				return 0, treeErr(op, path, ErrKindMismatch)
			}
			return n.add(parent, seg.Name, info), nil
		}
	}
	if !create {
		return 0, treeErr(op, path, ErrNotFound)
	}
	return n.createGroup(op, parent, seg)
}

// lookup returns the child called name of parent, adding it to the cache
// when the container has it. The boolean is false if there is no child.
func (n *navigator) lookup(op string, parent NodeID, name string) (NodeID, bool, error) {
	if id, ok := n.cache.child(parent, name); ok {
		return id, true, nil
	}
	p := n.cache.node(parent)
	if p.state == NodePopulated {
		return 0, false, nil
	}
	path := joinPath(p.path, name)
	info, found, err := n.probe(path)
	if err != nil || !found {
		return 0, false, translate(op, path, err)
	}
	return n.add(parent, name, info), true, nil
}

// add caches a child found in the container.
func (n *navigator) add(parent NodeID, name string, info h5.ObjectInfo) NodeID {
	id := n.cache.add(parent, name, kindOf(info.Kind), NodeUnresolved)
	if info.Kind == h5.KindGroup {
		n.cache.setKey(id, info)
	}
	return id
}

// probe asks the container what path is. Dangling links are reported as
// missing.
func (n *navigator) probe(path string) (h5.ObjectInfo, bool, error) {
	ok, err := n.f.LinkExists(path)
	if err != nil || !ok {
		return h5.ObjectInfo{}, false, err
	}
	info, err := n.f.ObjectInfo(path)
	if errors.Is(err, h5.ErrNotFound) {
		return h5.ObjectInfo{}, false, nil
	}
	if err != nil {
		return h5.ObjectInfo{}, false, err
	}
	return info, true, nil
}

// keyOf returns the object identity of the group id, asking the container
// the first time.
func (n *navigator) keyOf(id NodeID) (groupKey, error) {
	if nd := n.cache.node(id); nd.keyed {
		return nd.key, nil
	}
	info, err := n.f.ObjectInfo(n.cache.node(id).path)
	if err != nil {
		return groupKey{}, err
	}
	n.cache.setKey(id, info)
	return n.cache.node(id).key, nil
}

// changed records that the group id gained a link. Other populated nodes
// for the same group object go back to consulting the container. A group
// whose identity cannot be read is treated as an alias.
func (n *navigator) changed(id NodeID) {
	key, err := n.keyOf(id)
	for i := range n.cache.len() {
		other := NodeID(i)
		nd := n.cache.node(other)
		if other == id || nd.kind != KindGroup || nd.state != NodePopulated {
			continue
		}
		if err == nil {
			if k, kerr := n.keyOf(other); kerr == nil && k != key {
				continue
			}
		}
		n.cache.invalidate(other)
	}
}

func kindOf(k h5.ObjectKind) Kind {
	if k == h5.KindDataset {
		return KindDataset
	}
	return KindGroup
}

func (n *navigator) createGroup(op string, parent NodeID, seg Segment) (NodeID, error) {
	path := joinPath(n.cache.node(parent).path, seg.Name)
	id, err := n.f.CreateGroup(path)
	if err != nil {
		return 0, translate(op, path, err)
	}
	obj := newObjectHandle(n.f, id, n.log)
	if seg.Class != "" {
		if err := writeAttribute(n.f, n.log, id, ClassAttribute, seg.Class); err != nil {
			obj.Close()
			n.discard(path)
			return 0, translate(op, path, err)
		}
	}
	obj.Close()
	n.log.Debug("created group", "path", path, "class", seg.Class)
	n.changed(parent)
	return n.cache.add(parent, seg.Name, KindGroup, NodePopulated), nil
}

// discard unlinks an object whose creation did not complete.
func (n *navigator) discard(path string) {
	if err := n.f.Unlink(path); err != nil {
		n.log.Warn("removing partially created object failed", "path", path, "error", err)
	}
}

// populate adds every child of the group id to the cache. Links that
// cannot be resolved are skipped.
func (n *navigator) populate(id NodeID) error {
	nd := n.cache.node(id)
	if nd.kind != KindGroup {
		return treeErr("list", nd.path, ErrNotAGroup)
	}
	if nd.state == NodePopulated {
		return nil
	}
	path := nd.path
	names, err := n.f.LinkNames(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := n.cache.child(id, name); ok {
			continue
		}
		childPath := joinPath(path, name)
		info, err := n.f.ObjectInfo(childPath)
		if err != nil {
			n.log.Debug("skipping unresolvable link", "path", childPath, "error", err)
			continue
		}
		n.add(id, name, info)
	}
	n.cache.node(id).state = NodePopulated
	return nil
}

// dataset returns the open dataset of node id, opening it on first use.
func (n *navigator) dataset(op string, id NodeID) (*datasetEntry, error) {
	nd := n.cache.node(id)
	if nd.data != nil {
		return nd.data, nil
	}
	path := nd.path
	oid, err := n.f.OpenObject(path)
	if err != nil {
		return nil, translate(op, path, err)
	}
	obj := newObjectHandle(n.f, oid, n.log)
	e, err := describe(n.f, n.types, n.log, path, obj)
	if err != nil {
		obj.Close()
		return nil, translate(op, path, err)
	}
	n.cache.node(id).data = e
	return e, nil
}
