package nexus

import (
	"fmt"
	"strings"
)

// Kind is the kind of a tree node.
type Kind uint8

const (
	KindGroup Kind = iota + 1
	KindDataset
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// NodeID indexes a node in the tree's node cache.
type NodeID int

const rootID NodeID = 0

// NodeState tracks how much of a node the cache knows.
type NodeState uint8

const (
	// NodeUnresolved groups may have children the cache has not seen.
	NodeUnresolved NodeState = iota + 1
	// NodePopulated groups have every child in the cache.
	NodePopulated
	// NodeDataset is the state of every dataset node.
	NodeDataset
)

func (s NodeState) String() string {
	switch s {
	case NodeUnresolved:
		return "unresolved"
	case NodePopulated:
		return "populated"
	case NodeDataset:
		return "dataset"
	default:
		return fmt.Sprintf("NodeState(%d)", uint8(s))
	}
}

type node struct {
	name     string
	path     string
	parent   NodeID
	kind     Kind
	state    NodeState
	children []NodeID
	index    map[string]NodeID

	// key identifies the group object once keyed is set. Hard links make
	// several nodes share one key.
	key   groupKey
	keyed bool

	// data is opened on first use.
	data *datasetEntry
}

// GroupNode is a group of an open tree.
type GroupNode struct {
	tree *Tree
	id   NodeID
	path string
}

// Path returns the plain absolute path of the group.
func (g *GroupNode) Path() string { return g.path }

// Name returns the last path component, or "/" for the root.
func (g *GroupNode) Name() string {
	if g.path == "/" {
		return "/"
	}
	return g.path[strings.LastIndexByte(g.path, '/')+1:]
}

// Children returns the names of the group's children in insertion order.
func (g *GroupNode) Children() ([]string, error) {
	t := g.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen("children", g.path); err != nil {
		return nil, err
	}
	if err := t.nav.populate(g.id); err != nil {
		return nil, translate("children", g.path, err)
	}
	n := t.cache.node(g.id)
	names := make([]string, len(n.children))
	for i, c := range n.children {
		names[i] = t.cache.node(c).name
	}
	return names, nil
}

// Class returns the group's NX_class attribute, or "" if it has none.
func (g *GroupNode) Class() (string, error) {
	attrs, err := g.tree.Attributes(g.path)
	if err != nil {
		return "", err
	}
	for _, a := range attrs {
		if a.Name == ClassAttribute {
			s, _ := a.Value.(string)
			return s, nil
		}
	}
	return "", nil
}
