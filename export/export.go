// Package export hands assembled graphs to files and databases.
//
// Every sink in the subpackages is a wikigraph.Exporter.  The shapes
// here are shared between them: Articles is the nested document form
// (one document per article carrying its outgoing links), and
// PageRows/LinkRows are the relational form with links resolved to
// page ids.
package export

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-wikigraph"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BatchSize is how many rows database sinks send at once.
const BatchSize = 50000

// Exporter is implemented by every sink.
type Exporter = wikigraph.Exporter

// A Link is one outgoing link of an article.
type Link struct {
	Title string `json:"title" bson:"title"`
	Count int    `json:"count" bson:"count"`
}

// An Article is a node together with its outgoing links.
type Article struct {
	ID         int64  `json:"id" bson:"id"`
	Title      string `json:"-" bson:"title"`
	Lower      string `json:"lower" bson:"lower"`
	RedirectTo string `json:"redirect_to,omitempty" bson:"redirect_to,omitempty"`
	Links      []Link `json:"link_to" bson:"link_to"`
}

// Articles groups the graph's edges under their source articles.  The
// result is in title order; links keep graph order.
func Articles(g *wikigraph.Graph) []Article {
	links := map[string][]Link{}
	for _, e := range g.Edges {
		links[e.From] = append(links[e.From], Link{Title: e.To, Count: e.Weight})
	}

	nodes := g.Nodes.Nodes()
	rv := make([]Article, len(nodes))
	for i, n := range nodes {
		l := links[n.Title]
		if l == nil {
			l = []Link{}
		}
		rv[i] = Article{
			ID:         n.ID,
			Title:      n.Title,
			Lower:      n.LowerTitle,
			RedirectTo: n.Redirect,
			Links:      l,
		}
	}
	return rv
}

// A PageRow is a row of the page table.  RedirectTo is zero unless the
// page redirects to another article.
type PageRow struct {
	ID         int64  `json:"id" bson:"_id"`
	Title      string `json:"title" bson:"title"`
	RedirectTo int64  `json:"redirect_to,omitempty" bson:"redirect_to,omitempty"`
}

// A LinkRow is a row of the wikilinks table.
type LinkRow struct {
	FromID    int64  `json:"from_id" bson:"from_id"`
	FromTitle string `json:"from_title" bson:"from_title"`
	ToID      int64  `json:"to_id" bson:"to_id"`
	ToTitle   string `json:"to_title" bson:"to_title"`
	Count     int    `json:"reference_count" bson:"reference_count"`
}

// PageRows lists a row per node in title order.
func PageRows(g *wikigraph.Graph) []PageRow {
	nodes := g.Nodes.Nodes()
	rv := make([]PageRow, len(nodes))
	for i, n := range nodes {
		rv[i] = PageRow{ID: n.ID, Title: n.Title}
		if n.Redirect != "" {
			if t, ok := g.Nodes.Get(n.Redirect); ok {
				rv[i].RedirectTo = t.ID
			}
		}
	}
	return rv
}

// LinkRows lists a row per edge whose ends are both articles.  Edges
// to the missing target have no page to point at and are left out.
func LinkRows(g *wikigraph.Graph) []LinkRow {
	rv := make([]LinkRow, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, ok := g.Nodes.Get(e.From)
		if !ok {
			continue
		}
		to, ok := g.Nodes.Get(e.To)
		if !ok {
			continue
		}
		rv = append(rv, LinkRow{
			FromID:    from.ID,
			FromTitle: from.Title,
			ToID:      to.ID,
			ToTitle:   to.Title,
			Count:     e.Weight,
		})
	}
	return rv
}

// Multi sends a graph to every exporter in turn.  One sink failing
// doesn't stop the rest; the failures come back together.
type Multi []Exporter

// Export to all sinks.
func (m Multi) Export(ctx context.Context, g *wikigraph.Graph) error {
	var rv *multierror.Error
	for _, e := range m {
		if err := ctx.Err(); err != nil {
			return multierror.Append(rv, err).ErrorOrNil()
		}
		if err := e.Export(ctx, g); err != nil {
			rv = multierror.Append(rv, err)
		}
	}
	return rv.ErrorOrNil()
}

// Batches calls fn with consecutive [from,to) windows of at most size
// items out of n, stopping at the first error or when ctx is done.
func Batches(ctx context.Context, n, size int, fn func(from, to int) error) error {
	for from := 0; from < n; from += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		to := from + size
		if to > n {
			to = n
		}
		if err := fn(from, to); err != nil {
			return errors.Wrapf(err, "batch [%d,%d)", from, to)
		}
	}
	return nil
}

// Progress logs how far a sink has gotten.  It may be shared between
// goroutines.
type Progress struct {
	log   logrus.FieldLogger
	what  string
	n     int64
	start time.Time
}

// NewProgress starts counting things of the named sort.
func NewProgress(log logrus.FieldLogger, what string) *Progress {
	return &Progress{log: log, what: what, start: time.Now()}
}

// Add n things and say so.
func (p *Progress) Add(n int) {
	total := atomic.AddInt64(&p.n, int64(n))
	d := time.Since(p.start)
	p.log.Infof("Exported %s %s total (%.2f/s)",
		humanize.Comma(total), p.what, float64(total)/d.Seconds())
}

// Count is the running total.
func (p *Progress) Count() int64 { return atomic.LoadInt64(&p.n) }
