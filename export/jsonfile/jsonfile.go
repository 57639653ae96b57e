// Package jsonfile writes a graph as one JSON object keyed by article
// title:
//
//	{"Paris": {"id": 22989, "lower": "paris", "link_to": [{"title": "France", "count": 4}]}}
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Exporter writes the graph to Path.
type Exporter struct {
	Path string
	Log  logrus.FieldLogger
}

// New gets an exporter writing to path.
func New(path string, log logrus.FieldLogger) *Exporter {
	return &Exporter{Path: path, Log: log}
}

// Export the graph.  The file is written next to Path and renamed into
// place once complete.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	articles := export.Articles(g)
	doc := make(map[string]export.Article, len(articles))
	for _, a := range articles {
		doc[a.Title] = a
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(e.Path), filepath.Base(e.Path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating json output")
	}
	defer os.Remove(f.Name())
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding graph")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "writing %v", f.Name())
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %v", f.Name())
	}
	if err := os.Rename(f.Name(), e.Path); err != nil {
		return errors.Wrap(err, "moving json output into place")
	}

	if e.Log != nil {
		e.Log.WithFields(logrus.Fields{
			"path":     e.Path,
			"articles": len(doc),
		}).Info("Wrote graph json")
	}
	return nil
}

// Load reads a file written by Export.
func Load(path string) (map[string]export.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rv := map[string]export.Article{}
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&rv); err != nil {
		return nil, errors.Wrapf(err, "decoding %v", path)
	}
	for title, a := range rv {
		a.Title = title
		rv[title] = a
	}
	return rv, nil
}
