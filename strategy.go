package wikigraph

// A Strategy is what a pass does with each article it parses.
//
// There are exactly two: NodeStrategy for the first pass and
// LinkStrategy for the second.
type Strategy interface {
	Phase() Phase
	visit(p *PageRecord, out *ChunkResult)
}

// A ChunkResult is everything one block contributed to a pass.  Each
// block gets its own; the coordinator merges them.
type ChunkResult struct {
	Range BlockRange
	Nodes []PageRecord
	Edges []EdgeRecord

	Pages      int
	Skipped    int
	Dropped    int
	Unresolved int
	// Err is set if the block could not be fully read.  Whatever was
	// gathered before the failure is still here.
	Err error
}

// NodeStrategy gathers articles for the node index.
type NodeStrategy struct{}

// Phase is PhaseNodes.
func (NodeStrategy) Phase() Phase { return PhaseNodes }

func (NodeStrategy) visit(p *PageRecord, out *ChunkResult) {
	rec := *p
	rec.Text = ""
	out.Nodes = append(out.Nodes, rec)
}

// LinkStrategy resolves each article's links against a sealed index.
type LinkStrategy struct {
	index  *NodeIndex
	policy UnresolvedPolicy
}

// NewLinkStrategy gets a link strategy over idx, which must be sealed.
func NewLinkStrategy(idx *NodeIndex, policy UnresolvedPolicy) (*LinkStrategy, error) {
	if !idx.Sealed() {
		return nil, ErrPhaseOrder
	}
	return &LinkStrategy{index: idx, policy: policy}, nil
}

// Phase is PhaseEdges.
func (*LinkStrategy) Phase() Phase { return PhaseEdges }

func (s *LinkStrategy) visit(p *PageRecord, out *ChunkResult) {
	edges, unresolved := ResolveLinks(p.Title, CountLinks(p.Text), s.index, s.policy)
	out.Edges = append(out.Edges, edges...)
	out.Unresolved += unresolved
}
