package hpyp

import "fmt"

const noNode = -1

// Node is one context in the backoff hierarchy: the root is the empty
// context, and a node at depth k conditions on the k most recent symbols.
// Nodes live in the manager's arena and refer to each other by stable ids,
// so parent back-references cannot dangle when a node is pruned.
type Node struct {
	id       int
	parent   int // id, noNode at the root
	depth    int
	symbol   int // edge label from the parent, noNode at the root
	children map[int]int
	rest     Restaurant
}

func (n *Node) Depth() int             { return n.depth }
func (n *Node) Symbol() int            { return n.symbol }
func (n *Node) Restaurant() Restaurant { return n.rest }

// NodeManager owns the context trie. Contexts are given most-recent symbol
// first, so a path from the root visits contexts of increasing specificity.
// Nodes are created lazily on first insertion and pruned when their
// restaurant empties.
type NodeManager struct {
	factory  *Factory
	numTypes int
	maxDepth int
	nodes    []*Node
	free     []int
	live     int
}

func NewNodeManager(factory *Factory, numTypes, maxDepth int) (*NodeManager, error) {
	if numTypes < 1 {
		return nil, configErrorf("numTypes must be at least 1, got %d", numTypes)
	}
	if maxDepth < 0 {
		return nil, configErrorf("maxDepth must be non-negative, got %d", maxDepth)
	}
	nm := &NodeManager{
		factory:  factory,
		numTypes: numTypes,
		maxDepth: maxDepth,
	}
	nm.newNode(noNode, 0, noNode) // root, id 0
	return nm, nil
}

func (nm *NodeManager) Factory() *Factory { return nm.factory }
func (nm *NodeManager) NumTypes() int     { return nm.numTypes }
func (nm *NodeManager) MaxDepth() int     { return nm.maxDepth }
func (nm *NodeManager) Root() *Node       { return nm.nodes[0] }

// NumNodes returns the number of live nodes.
func (nm *NodeManager) NumNodes() int { return nm.live }

func (nm *NodeManager) newNode(parent, depth, symbol int) *Node {
	n := &Node{
		parent:   parent,
		depth:    depth,
		symbol:   symbol,
		children: make(map[int]int),
		rest:     nm.factory.Create(),
	}
	if len(nm.free) > 0 {
		n.id = nm.free[len(nm.free)-1]
		nm.free = nm.free[:len(nm.free)-1]
		nm.nodes[n.id] = n
	} else {
		n.id = len(nm.nodes)
		nm.nodes = append(nm.nodes, n)
	}
	nm.live++
	return n
}

// ResolvePath returns the nodes for the given context from the root down to
// the deepest level, creating missing nodes on the way. The context is
// most-recent symbol first and is truncated at maxDepth.
func (nm *NodeManager) ResolvePath(context []int) []*Node {
	if len(context) > nm.maxDepth {
		context = context[:nm.maxDepth]
	}
	path := make([]*Node, 0, len(context)+1)
	cur := nm.Root()
	path = append(path, cur)
	for _, sym := range context {
		id, ok := cur.children[sym]
		if !ok {
			child := nm.newNode(cur.id, cur.depth+1, sym)
			cur.children[sym] = child.id
			cur = child
		} else {
			cur = nm.nodes[id]
		}
		path = append(path, cur)
	}
	return path
}

// LongestSuffixPath walks the trie as far as existing nodes allow, without
// creating anything. The returned path always contains at least the root.
func (nm *NodeManager) LongestSuffixPath(context []int) []*Node {
	if len(context) > nm.maxDepth {
		context = context[:nm.maxDepth]
	}
	path := make([]*Node, 0, len(context)+1)
	cur := nm.Root()
	path = append(path, cur)
	for _, sym := range context {
		id, ok := cur.children[sym]
		if !ok {
			break
		}
		cur = nm.nodes[id]
		path = append(path, cur)
	}
	return path
}

// GetNode returns the node for exactly the given context, or nil.
func (nm *NodeManager) GetNode(context []int) *Node {
	if len(context) > nm.maxDepth {
		return nil
	}
	cur := nm.Root()
	for _, sym := range context {
		id, ok := cur.children[sym]
		if !ok {
			return nil
		}
		cur = nm.nodes[id]
	}
	return cur
}

// Parent returns a node's parent, or nil at the root.
func (nm *NodeManager) Parent(n *Node) *Node {
	if n.parent == noNode {
		return nil
	}
	return nm.nodes[n.parent]
}

// Children returns a node's children keyed by edge symbol.
func (nm *NodeManager) Children(n *Node) map[int]*Node {
	out := make(map[int]*Node, len(n.children))
	for sym, id := range n.children {
		out[sym] = nm.nodes[id]
	}
	return out
}

// PruneEmptyLeaves walks the given path from the leaf upwards and removes
// nodes with an empty restaurant and no children. The root is never pruned.
// Pruning only drops structure; no ancestor statistics change.
func (nm *NodeManager) PruneEmptyLeaves(path []*Node) {
	for i := len(path) - 1; i >= 1; i-- {
		n := path[i]
		if nm.nodes[n.id] != n {
			panic(fmt.Sprintf("hpyp: pruning a node (%d) no longer in the arena", n.id))
		}
		if len(n.children) > 0 || n.rest.Customers() > countEpsilon || n.rest.Tables() > countEpsilon {
			break
		}
		parent := nm.nodes[n.parent]
		delete(parent.children, n.symbol)
		nm.nodes[n.id] = nil
		nm.free = append(nm.free, n.id)
		nm.live--
	}
}

// VisitDFS calls fn for every live node in depth-first preorder with
// children visited in ascending symbol order, so the walk order is
// deterministic.
func (nm *NodeManager) VisitDFS(fn func(n *Node)) {
	nm.visitDFS(nm.Root(), fn)
}

func (nm *NodeManager) visitDFS(n *Node, fn func(n *Node)) {
	fn(n)
	for _, sym := range sortedDishesInt(n.children) {
		nm.visitDFS(nm.nodes[n.children[sym]], fn)
	}
}

// Reset drops every node except a fresh root. Used when a load replaces the
// tree wholesale.
func (nm *NodeManager) Reset() {
	nm.nodes = nm.nodes[:0]
	nm.free = nm.free[:0]
	nm.live = 0
	nm.newNode(noNode, 0, noNode)
}
