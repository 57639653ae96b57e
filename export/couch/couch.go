// Package couch loads a graph into CouchDB, one document per article.
package couch

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-couch"
	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const reportfreq = 10000

// A Document is an article as stored in CouchDB.
type Document struct {
	ID    string `json:"_id"`
	Rev   string `json:"_rev,omitempty"`
	Title string `json:"title"`
	export.Article
}

// EscapeTitle makes a title usable as a document id in a URL path.
func EscapeTitle(in string) string {
	return strings.Replace(strings.Replace(in, "/", "%2f", -1),
		"+", "%2b", -1)
}

// NewDocument wraps an article for storage.
func NewDocument(a export.Article) *Document {
	d := &Document{ID: EscapeTitle(a.Title), Title: a.Title, Article: a}
	// Stored once, under the document's own title field.
	d.Article.Title = ""
	return d
}

// Exporter writes documents to the database at URL.
type Exporter struct {
	URL     string
	Workers int
	Log     logrus.FieldLogger
}

// New gets an exporter for the database at url.
func New(url string, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{URL: url, Workers: 20, Log: log}
}

// Export the graph.  Documents that fail to store are logged and
// counted; the count comes back as an error.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	db, err := couch.Connect(e.URL)
	if err != nil {
		return errors.Wrapf(err, "connecting to couchdb at %v", e.URL)
	}

	articles := export.Articles(g)
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
			if err := e.store(&db, NewDocument(a)); err != nil {
				e.Log.WithField("title", a.Title).Warnf("Error storing document: %v", err)
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

func (e *Exporter) store(db *couch.Database, doc *Document) error {
	_, _, err := db.Insert(doc)
	httpe, isHTTPError := err.(*couch.HTTPError)
	switch {
	case err == nil:
		return nil
	case isHTTPError && httpe.Status == 409:
		return e.resolveConflict(db, doc)
	}
	return err
}

// resolveConflict replaces an existing document if its content differs.
func (e *Exporter) resolveConflict(db *couch.Database, doc *Document) error {
	var prev Document
	if err := db.Retrieve(doc.ID, &prev); err != nil {
		return errors.Wrap(err, "retrieving existing document")
	}
	if prev.Rev == "" {
		return errors.Errorf("got no rev for %v", doc.ID)
	}
	if !Changed(&prev, doc) {
		return nil
	}
	e.Log.WithFields(logrus.Fields{
		"id":  doc.ID,
		"rev": prev.Rev,
	}).Debug("Replacing changed document")
	_, err := db.EditWith(doc, doc.ID, prev.Rev)
	return errors.Wrap(err, "updating document")
}

// Changed reports whether next carries different content than prev.
func Changed(prev, next *Document) bool {
	return prev.Title != next.Title || !reflect.DeepEqual(prev.Article, next.Article)
}
