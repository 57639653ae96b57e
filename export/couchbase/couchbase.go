// Package couchbase loads a graph into a Couchbase bucket, one document
// per article keyed by its title.
package couchbase

import (
	"context"
	"sync/atomic"

	"github.com/couchbase/go-couchbase"
	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const reportfreq = 10000

// A Document is an article as stored in the bucket.
type Document struct {
	Title string `json:"title"`
	export.Article
}

// A Setter stores a document under a key.  *couchbase.Bucket is one.
type Setter interface {
	Set(k string, exp int, v interface{}) error
}

// Exporter writes into Bucket of the pool Pool at URL.
type Exporter struct {
	URL     string
	Pool    string
	Bucket  string
	Workers int
	Log     logrus.FieldLogger
}

// New gets an exporter for the named bucket in the default pool.
func New(url, bucket string, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{URL: url, Pool: "default", Bucket: bucket, Workers: 8, Log: log}
}

// Export the graph.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	b, err := couchbase.GetBucket(e.URL, e.Pool, e.Bucket)
	if err != nil {
		return errors.Wrapf(err, "connecting to couchbase at %v", e.URL)
	}
	defer b.Close()
	return e.Store(ctx, b, export.Articles(g))
}

// Store sets every article in s.  Articles that fail are logged and
// counted; the count comes back as an error.
func (e *Exporter) Store(ctx context.Context, s Setter, articles []export.Article) error {
	var done, failed int64
	progress := export.NewProgress(e.Log, "documents")

	var eg errgroup.Group
	eg.SetLimit(e.Workers)
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		a := articles[i]
		eg.Go(func() error {
			doc := Document{Title: a.Title, Article: a}
			doc.Article.Title = ""
			if err := s.Set(a.Title, 0, doc); err != nil {
				e.Log.WithField("title", a.Title).Warnf("Error setting document: %v", err)
				atomic.AddInt64(&failed, 1)
			}
			if atomic.AddInt64(&done, 1)%reportfreq == 0 {
				progress.Add(reportfreq)
			}
			return nil
		})
	}
	eg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d of %d documents failed", failed, len(articles))
	}
	return nil
}
