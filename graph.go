package wikigraph

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// A Node is an article in the graph.
type Node struct {
	ID         int64
	Title      string
	LowerTitle string
	// Redirect is the title this article redirects to, if any.
	Redirect string
}

// A NodeIndex maps exact article titles to nodes.
//
// It's written during the node phase and sealed before links are
// resolved.  A sealed index never changes again, so it may be read
// from any number of goroutines without locking.
type NodeIndex struct {
	nodes  map[string]Node
	sealed bool
}

// NewNodeIndex gets an empty, unsealed index.
func NewNodeIndex() *NodeIndex {
	return &NodeIndex{nodes: map[string]Node{}}
}

// Add folds a page into the index.  A later page with the same title
// replaces an earlier one.
func (x *NodeIndex) Add(p *PageRecord) error {
	if x.sealed {
		return ErrSealed
	}
	x.nodes[p.Title] = Node{
		ID:         p.ID,
		Title:      p.Title,
		LowerTitle: strings.ToLower(p.Title),
		Redirect:   p.Redirect,
	}
	return nil
}

// Seal the index against further writes.
func (x *NodeIndex) Seal() { x.sealed = true }

// Sealed reports whether Seal has been called.
func (x *NodeIndex) Sealed() bool { return x.sealed }

// Get the node with exactly this title.
func (x *NodeIndex) Get(title string) (Node, bool) {
	n, ok := x.nodes[title]
	return n, ok
}

// Has reports whether title is an article.
func (x *NodeIndex) Has(title string) bool {
	_, ok := x.nodes[title]
	return ok
}

// Len is the number of nodes.
func (x *NodeIndex) Len() int { return len(x.nodes) }

// Nodes returns every node sorted by title.
func (x *NodeIndex) Nodes() []Node {
	rv := make([]Node, 0, len(x.nodes))
	for _, n := range x.nodes {
		rv = append(rv, n)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Title < rv[j].Title })
	return rv
}

// An EdgeRecord is a weighted link from one article to another.
type EdgeRecord struct {
	From   string
	To     string
	Weight int
}

// A Phase is one of the assembler's two passes.
type Phase int

const (
	// PhaseNodes collects articles.
	PhaseNodes Phase = iota
	// PhaseEdges resolves links.
	PhaseEdges
)

func (p Phase) String() string {
	if p == PhaseNodes {
		return "nodes"
	}
	return "edges"
}

// A Graph is the assembled result: nodes, edges and whatever went wrong
// along the way.
type Graph struct {
	Nodes    *NodeIndex
	Edges    []EdgeRecord
	Failures []*ChunkError
}

// Partial reports whether any block failed, meaning the graph is
// missing whatever was in it.
func (g *Graph) Partial() bool {
	return len(g.Failures) > 0
}

// Err folds the block failures into a single error, or nil.
func (g *Graph) Err() error {
	var rv *multierror.Error
	for _, f := range g.Failures {
		rv = multierror.Append(rv, f)
	}
	return rv.ErrorOrNil()
}

// A NodeExport is a node as handed to exporters.
type NodeExport struct {
	ID             int64
	Title          string
	LowerTitle     string
	RedirectTarget string
}

// An EdgeExport is an edge as handed to exporters.  Titles are
// lowercased here and nowhere earlier.
type EdgeExport struct {
	Source string
	Target string
	Weight int
}

// NodeExports lists the nodes in title order.
func (g *Graph) NodeExports() []NodeExport {
	nodes := g.Nodes.Nodes()
	rv := make([]NodeExport, len(nodes))
	for i, n := range nodes {
		rv[i] = NodeExport{
			ID:             n.ID,
			Title:          n.Title,
			LowerTitle:     n.LowerTitle,
			RedirectTarget: n.Redirect,
		}
	}
	return rv
}

// EdgeExports lists the edges in graph order.
func (g *Graph) EdgeExports() []EdgeExport {
	rv := make([]EdgeExport, len(g.Edges))
	for i, e := range g.Edges {
		rv[i] = EdgeExport{
			Source: strings.ToLower(e.From),
			Target: strings.ToLower(e.To),
			Weight: e.Weight,
		}
	}
	return rv
}
