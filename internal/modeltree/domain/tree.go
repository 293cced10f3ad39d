package domain

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
)

// Tree is the in-memory index of one version's configuration nodes. Children
// are ordered by sort order so every traversal is deterministic.
type Tree struct {
	nodes    map[snowflake.ID]*ModelNode
	children map[snowflake.ID][]*ModelNode
	roots    []*ModelNode
}

// BuildTree validates the node set and indexes it. It fails on a dangling
// parent reference, a parent/child cycle, or a root that is not a sequence,
// so a malformed configuration is rejected before any result row is written.
func BuildTree(nodes []*ModelNode) (*Tree, error) {
	t := &Tree{
		nodes:    make(map[snowflake.ID]*ModelNode, len(nodes)),
		children: make(map[snowflake.ID][]*ModelNode),
	}

	for _, node := range nodes {
		if node == nil {
			continue
		}
		if _, exists := t.nodes[node.ID]; exists {
			return nil, fmt.Errorf("%w: node %d", ErrDuplicateNode, node.ID)
		}
		t.nodes[node.ID] = node
	}

	for _, node := range t.nodes {
		if node.ParentID == nil {
			if node.NodeType != NodeTypeSequence {
				return nil, fmt.Errorf("%w: node %d (%s)", ErrRootNotSequence, node.ID, node.Name)
			}
			t.roots = append(t.roots, node)
			continue
		}
		if _, ok := t.nodes[*node.ParentID]; !ok {
			return nil, fmt.Errorf("%w: node %d references parent %d", ErrDanglingParent, node.ID, *node.ParentID)
		}
		t.children[*node.ParentID] = append(t.children[*node.ParentID], node)
	}

	if err := t.detectCycles(); err != nil {
		return nil, err
	}

	sortNodes(t.roots)
	for id := range t.children {
		sortNodes(t.children[id])
	}

	return t, nil
}

func (t *Tree) detectCycles() error {
	// Walk each node's parent chain; more hops than nodes means a loop.
	limit := len(t.nodes)
	for _, node := range t.nodes {
		current := node
		for hops := 0; current.ParentID != nil; hops++ {
			if hops > limit {
				return fmt.Errorf("%w: starting at node %d", ErrCycle, node.ID)
			}
			current = t.nodes[*current.ParentID]
		}
	}
	return nil
}

func sortNodes(nodes []*ModelNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Node returns the node by id, or nil.
func (t *Tree) Node(id snowflake.ID) *ModelNode {
	return t.nodes[id]
}

// Roots returns the sequence nodes in sort order.
func (t *Tree) Roots() []*ModelNode {
	return t.roots
}

// Children returns a node's direct children in sort order.
func (t *Tree) Children(id snowflake.ID) []*ModelNode {
	return t.children[id]
}

// Leaves returns every leaf node.
func (t *Tree) Leaves() []*ModelNode {
	var leaves []*ModelNode
	for _, node := range t.nodes {
		if node.IsLeaf {
			leaves = append(leaves, node)
		}
	}
	sortNodes(leaves)
	return leaves
}

// Len reports the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// AncestorPath returns the chain from root to the given node, inclusive.
func (t *Tree) AncestorPath(id snowflake.ID) []*ModelNode {
	node := t.nodes[id]
	if node == nil {
		return nil
	}
	var path []*ModelNode
	for node != nil {
		path = append(path, node)
		if node.ParentID == nil {
			break
		}
		node = t.nodes[*node.ParentID]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PostOrder visits every node children-first, root last. The order guarantees
// each node is seen after all of its descendants.
func (t *Tree) PostOrder(visit func(node *ModelNode)) {
	var walk func(node *ModelNode)
	walk = func(node *ModelNode) {
		for _, child := range t.children[node.ID] {
			walk(child)
		}
		visit(node)
	}
	for _, root := range t.roots {
		walk(root)
	}
}
