// Package mongo loads a graph into MongoDB as page and wikilinks
// collections.
package mongo

import (
	"context"
	"time"

	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const (
	PageCollection = "page"
	LinkCollection = "wikilinks"
)

// Links are unique per pair of pages.
var linkIndex = mgo.Index{
	Key:        []string{"from_id", "to_id"},
	Unique:     true,
	Background: true,
}

var titleIndex = mgo.Index{
	Key:        []string{"title"},
	Background: true,
}

// Exporter upserts into database DB at URL.  Documents already present
// are left as they are.
type Exporter struct {
	URL     string
	DB      string
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// New gets an exporter for the given server and database.
func New(url, db string, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{URL: url, DB: db, Timeout: 10 * time.Second, Log: log}
}

// PageOp is the upsert for a page row.
func PageOp(p export.PageRow) (selector, update bson.M) {
	return bson.M{"_id": p.ID}, bson.M{"$setOnInsert": p}
}

// LinkOp is the upsert for a link row.
func LinkOp(l export.LinkRow) (selector, update bson.M) {
	return bson.M{"from_id": l.FromID, "to_id": l.ToID}, bson.M{"$setOnInsert": l}
}

// Export the graph.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	session, err := mgo.DialWithTimeout(e.URL, e.Timeout)
	if err != nil {
		return errors.Wrapf(err, "connecting to %v", e.URL)
	}
	defer session.Close()
	db := session.DB(e.DB)

	if err := db.C(PageCollection).EnsureIndex(titleIndex); err != nil {
		return errors.Wrap(err, "creating title index")
	}
	if err := db.C(LinkCollection).EnsureIndex(linkIndex); err != nil {
		return errors.Wrap(err, "creating link index")
	}

	pages := export.PageRows(g)
	progress := export.NewProgress(e.Log, "pages")
	err = export.Batches(ctx, len(pages), export.BatchSize, func(from, to int) error {
		bulk := db.C(PageCollection).Bulk()
		bulk.Unordered()
		for _, p := range pages[from:to] {
			sel, up := PageOp(p)
			bulk.Upsert(sel, up)
		}
		if err := run(bulk); err != nil {
			return err
		}
		progress.Add(to - from)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "loading pages")
	}

	links := export.LinkRows(g)
	progress = export.NewProgress(e.Log, "links")
	err = export.Batches(ctx, len(links), export.BatchSize, func(from, to int) error {
		bulk := db.C(LinkCollection).Bulk()
		bulk.Unordered()
		for _, l := range links[from:to] {
			sel, up := LinkOp(l)
			bulk.Upsert(sel, up)
		}
		if err := run(bulk); err != nil {
			return err
		}
		progress.Add(to - from)
		return nil
	})
	return errors.Wrap(err, "loading links")
}

// run a bulk, treating duplicate keys as already loaded.
func run(bulk *mgo.Bulk) error {
	_, err := bulk.Run()
	if err != nil && !mgo.IsDup(err) {
		return err
	}
	return nil
}
