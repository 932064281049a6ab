package nexus

import "github.com/robert-malhotra/go-nexus/internal/h5"

// nodeCache holds the nodes of a tree in an arena. Node 0 is the root
// group. Nodes are never removed while the tree is open.
type nodeCache struct {
	nodes []node
}

func newNodeCache(rootState NodeState) *nodeCache {
	return &nodeCache{nodes: []node{{
		name:  "/",
		path:  "/",
		kind:  KindGroup,
		state: rootState,
		index: make(map[string]NodeID),
	}}}
}

func (c *nodeCache) node(id NodeID) *node { return &c.nodes[id] }

func (c *nodeCache) len() int { return len(c.nodes) }

func (c *nodeCache) child(parent NodeID, name string) (NodeID, bool) {
	id, ok := c.nodes[parent].index[name]
	return id, ok
}

// add inserts a child under parent. Groups start in state.
func (c *nodeCache) add(parent NodeID, name string, kind Kind, state NodeState) NodeID {
	id := NodeID(len(c.nodes))
	n := node{
		name:   name,
		path:   joinPath(c.nodes[parent].path, name),
		parent: parent,
		kind:   kind,
		state:  state,
	}
	if kind == KindGroup {
		n.index = make(map[string]NodeID)
	} else {
		n.state = NodeDataset
	}
	c.nodes = append(c.nodes, n)
	p := &c.nodes[parent]
	p.children = append(p.children, id)
	p.index[name] = id
	return id
}

func (c *nodeCache) setKey(id NodeID, info h5.ObjectInfo) {
	c.nodes[id].key = groupKey{addr: info.Address, external: info.External}
	c.nodes[id].keyed = true
}

// invalidate makes the cache consult the container again for children of
// a group it has populated.
func (c *nodeCache) invalidate(id NodeID) {
	if c.nodes[id].state == NodePopulated {
		c.nodes[id].state = NodeUnresolved
	}
}

// datasets returns every dataset entry that has been opened.
func (c *nodeCache) datasets() []*datasetEntry {
	var out []*datasetEntry
	for i := range c.nodes {
		if c.nodes[i].data != nil {
			out = append(out, c.nodes[i].data)
		}
	}
	return out
}
