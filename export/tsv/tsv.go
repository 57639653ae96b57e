// Package tsv writes a graph as tab separated node and edge lists, the
// form graph tools like Gephi import.
package tsv

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-wikigraph"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// NodesFile holds "id\tlabel" rows: lowercased title, then title.
	NodesFile = "nodes.csv"
	// EdgesFile holds "Source\tTarget\tWeight" rows, titles lowercased.
	EdgesFile = "edges.csv"
)

// Exporter writes NodesFile and EdgesFile into Dir.
type Exporter struct {
	Dir string
	Log logrus.FieldLogger
}

// New gets an exporter writing into dir, which is created if needed.
func New(dir string, log logrus.FieldLogger) *Exporter {
	return &Exporter{Dir: dir, Log: log}
}

// Export the graph.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	nodes := g.NodeExports()
	err := writeFile(filepath.Join(e.Dir, NodesFile), []string{"id", "label"},
		len(nodes), func(i int) []string {
			return []string{nodes[i].LowerTitle, nodes[i].Title}
		})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	edges := g.EdgeExports()
	err = writeFile(filepath.Join(e.Dir, EdgesFile), []string{"Source", "Target", "Weight"},
		len(edges), func(i int) []string {
			return []string{edges[i].Source, edges[i].Target, strconv.Itoa(edges[i].Weight)}
		})
	if err != nil {
		return err
	}

	if e.Log != nil {
		e.Log.WithFields(logrus.Fields{
			"dir":   e.Dir,
			"nodes": len(nodes),
			"edges": len(edges),
		}).Info("Wrote node and edge lists")
	}
	return nil
}

func writeFile(path string, header []string, n int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %v", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	w.Comma = '\t'
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "writing %v", path)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return errors.Wrapf(err, "writing %v", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "writing %v", path)
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "writing %v", path)
	}
	return errors.Wrapf(f.Close(), "closing %v", path)
}
