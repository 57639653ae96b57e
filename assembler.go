package wikigraph

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const reportfreq = 10000

// State is where an Assembler is in its life.  It only moves forward.
type State int

const (
	StateEmpty State = iota
	StateNodesSealed
	StateEdgesAssembled
	StateExported
	// StateAborted is where a canceled run ends up.  Nothing survives.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateNodesSealed:
		return "NODES_SEALED"
	case StateEdgesAssembled:
		return "EDGES_ASSEMBLED"
	case StateExported:
		return "EXPORTED"
	case StateAborted:
		return "ABORTED"
	}
	return "UNKNOWN"
}

// An Exporter takes ownership of a finished graph.
type Exporter interface {
	Export(ctx context.Context, g *Graph) error
}

// Options tune an Assembler.
type Options struct {
	// Workers is how many blocks are processed at once.  Defaults to
	// GOMAXPROCS.
	Workers int
	// Policy for links to titles that aren't articles.
	Policy UnresolvedPolicy
	// Logger defaults to logrus' standard logger.
	Logger logrus.FieldLogger
	// Metrics may be nil.
	Metrics *Metrics
}

// An Assembler builds a graph from a dump in two passes.
//
// BuildNodes must finish (sealing the node index) before BuildEdges
// starts, and Export comes last.  A block that fails in either pass is
// recorded in the graph's Failures and the pass moves on.  Canceling
// the context stops a pass between blocks and throws away everything
// assembled so far.
type Assembler struct {
	dump    *Dump
	ranges  []BlockRange
	workers int
	policy  UnresolvedPolicy
	log     logrus.FieldLogger
	metrics *Metrics

	state State
	graph *Graph

	pages int64
	start time.Time
}

// NewAssembler gets an assembler over the given blocks of dump.
func NewAssembler(dump *Dump, ranges []BlockRange, opts Options) *Assembler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Assembler{
		dump:    dump,
		ranges:  ranges,
		workers: opts.Workers,
		policy:  opts.Policy,
		log:     opts.Logger,
		metrics: opts.Metrics,
		graph:   &Graph{Nodes: NewNodeIndex()},
	}
}

// State of the assembler.
func (a *Assembler) State() State { return a.state }

// BuildNodes runs the first pass and seals the node index.
func (a *Assembler) BuildNodes(ctx context.Context) error {
	if a.state != StateEmpty {
		return errors.Wrapf(ErrPhaseOrder, "building nodes in state %v", a.state)
	}
	results, err := a.runPhase(ctx, NodeStrategy{})
	if err != nil {
		return err
	}

	for _, res := range results {
		for i := range res.Nodes {
			if err := a.graph.Nodes.Add(&res.Nodes[i]); err != nil {
				return err
			}
		}
		a.recordFailure(PhaseNodes, res)
	}
	a.graph.Nodes.Seal()
	a.state = StateNodesSealed

	a.log.WithFields(logrus.Fields{
		"blocks": len(a.ranges),
		"failed": len(a.graph.Failures),
	}).Infof("Sealed node index with %s articles",
		humanize.Comma(int64(a.graph.Nodes.Len())))
	return nil
}

// BuildEdges runs the second pass against the sealed node index.
func (a *Assembler) BuildEdges(ctx context.Context) error {
	if a.state != StateNodesSealed {
		return errors.Wrapf(ErrPhaseOrder, "building edges in state %v", a.state)
	}
	s, err := NewLinkStrategy(a.graph.Nodes, a.policy)
	if err != nil {
		return err
	}
	results, err := a.runPhase(ctx, s)
	if err != nil {
		return err
	}

	unresolved := 0
	for _, res := range results {
		a.graph.Edges = append(a.graph.Edges, res.Edges...)
		unresolved += res.Unresolved
		a.recordFailure(PhaseEdges, res)
	}
	a.state = StateEdgesAssembled

	a.log.WithFields(logrus.Fields{
		"unresolved": unresolved,
		"policy":     a.policy.String(),
		"failed":     len(a.graph.Failures),
	}).Infof("Assembled %s edges", humanize.Comma(int64(len(a.graph.Edges))))
	return nil
}

// Graph hands over the assembled graph.  The assembler won't touch it
// again.
func (a *Assembler) Graph() (*Graph, error) {
	if a.state != StateEdgesAssembled && a.state != StateExported {
		return nil, errors.Wrapf(ErrPhaseOrder, "graph requested in state %v", a.state)
	}
	return a.graph, nil
}

// Export sends the assembled graph to e.
func (a *Assembler) Export(ctx context.Context, e Exporter) error {
	g, err := a.Graph()
	if err != nil {
		return err
	}
	if a.state == StateExported {
		return errors.Wrap(ErrPhaseOrder, "graph already exported")
	}
	if err := e.Export(ctx, g); err != nil {
		return errors.Wrap(err, "exporting graph")
	}
	a.state = StateExported
	return nil
}

func (a *Assembler) recordFailure(phase Phase, res *ChunkResult) {
	if res.Err == nil {
		return
	}
	a.graph.Failures = append(a.graph.Failures,
		&ChunkError{Range: res.Range, Phase: phase, Err: res.Err})
	a.log.WithFields(logrus.Fields{
		"phase": phase.String(),
		"block": res.Range.String(),
	}).Warnf("Block failed: %v", res.Err)
}

// runPhase processes every block with s.  Each block writes only its
// own slot of the result slice, so nothing is shared until Wait.
func (a *Assembler) runPhase(ctx context.Context, s Strategy) ([]*ChunkResult, error) {
	a.pages = 0
	a.start = time.Now()
	a.log.WithFields(logrus.Fields{
		"phase":   s.Phase().String(),
		"blocks":  len(a.ranges),
		"workers": a.workers,
	}).Info("Starting pass")

	results := make([]*ChunkResult, len(a.ranges))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, r := range a.ranges {
		if ctx.Err() != nil {
			break
		}
		i, r := i, r
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = a.processChunk(r, s)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		a.graph = nil
		a.state = StateAborted
		a.log.WithField("phase", s.Phase().String()).Warn("Pass canceled, discarding results")
		return nil, err
	}
	return results, nil
}

func (a *Assembler) processChunk(r BlockRange, s Strategy) *ChunkResult {
	start := time.Now()
	res := &ChunkResult{Range: r}
	defer func() {
		a.metrics.observe(s.Phase(), res, time.Since(start))
		a.progress(res.Pages)
	}()

	c, err := a.dump.Extract(r)
	if err != nil {
		res.Err = err
		return res
	}
	log := a.log.WithField("block", r.String())
	compressed := r.Len()
	if compressed < 0 {
		compressed = a.dump.Size() - r.Start
	}
	log.Debugf("Decompressed %s into %s",
		humanize.Bytes(uint64(compressed)), humanize.Bytes(uint64(len(c.Raw))))

	p := NewPageParser(bytes.NewReader(c.XML()), log)
	for {
		rec, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Err = errors.Wrap(err, "parsing block")
			break
		}
		s.visit(rec, res)
	}
	res.Pages, res.Skipped, res.Dropped = p.Pages(), p.Skipped(), p.Dropped()
	if res.Unresolved > 0 {
		log.WithField("unresolved", res.Unresolved).Debug("Unresolved links")
	}
	return res
}

func (a *Assembler) progress(n int) {
	total := atomic.AddInt64(&a.pages, int64(n))
	if total/reportfreq == (total-int64(n))/reportfreq {
		return
	}
	d := time.Since(a.start)
	a.log.Infof("Processed %s pages total (%.2f/s)",
		humanize.Comma(total), float64(total)/d.Seconds())
}

// Config names everything Build needs.
type Config struct {
	IndexPath string
	DumpPath  string
	Options
}

// Build runs both passes over a dump and returns the graph.
//
// Only failing to open the index or the dump is fatal.  Blocks that
// fail are listed in the graph's Failures.
func Build(ctx context.Context, cfg Config) (*Graph, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
		cfg.Logger = log
	}
	offsets, err := LoadOffsetsFile(cfg.IndexPath, log)
	if err != nil {
		return nil, err
	}
	dump, err := OpenDump(cfg.DumpPath, log)
	if err != nil {
		return nil, err
	}
	defer dump.Close()

	a := NewAssembler(dump, Ranges(offsets), cfg.Options)
	if err := a.BuildNodes(ctx); err != nil {
		return nil, err
	}
	if err := a.BuildEdges(ctx); err != nil {
		return nil, err
	}
	return a.Graph()
}
