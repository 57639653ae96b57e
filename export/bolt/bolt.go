// Package bolt stores a graph in a bbolt file.
//
// The page bucket maps a big-endian page id to its JSON encoded
// export.PageRow.  The wikilinks bucket maps the two ids of a link,
// source then target, to its JSON encoded export.LinkRow.  Keys that are
// already present are left alone, so exporting over an existing file
// only adds.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var (
	PageBucket = []byte("page")
	LinkBucket = []byte("wikilinks")
)

// Exporter writes into the bbolt file at Path.
type Exporter struct {
	Path string
	Log  logrus.FieldLogger
}

// New gets an exporter for the file at path.
func New(path string, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{Path: path, Log: log}
}

// PageKey is the key of a page.
func PageKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// LinkKey is the key of a link between two pages.
func LinkKey(from, to int64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k, uint64(from))
	binary.BigEndian.PutUint64(k[8:], uint64(to))
	return k
}

// Export the graph.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	db, err := bbolt.Open(e.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return errors.Wrapf(err, "opening %v", e.Path)
	}
	defer db.Close()

	pages := export.PageRows(g)
	progress := export.NewProgress(e.Log, "pages")
	err = export.Batches(ctx, len(pages), export.BatchSize, func(from, to int) error {
		n, err := putNew(db, PageBucket, to-from, func(i int) ([]byte, interface{}) {
			p := pages[from+i]
			return PageKey(p.ID), p
		})
		progress.Add(n)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "storing pages")
	}

	links := export.LinkRows(g)
	progress = export.NewProgress(e.Log, "links")
	err = export.Batches(ctx, len(links), export.BatchSize, func(from, to int) error {
		n, err := putNew(db, LinkBucket, to-from, func(i int) ([]byte, interface{}) {
			l := links[from+i]
			return LinkKey(l.FromID, l.ToID), l
		})
		progress.Add(n)
		return err
	})
	return errors.Wrap(err, "storing links")
}

// putNew stores n values in one transaction, skipping keys that are
// already there, and says how many were new.
func putNew(db *bbolt.DB, bucket []byte, n int, item func(int) ([]byte, interface{})) (int, error) {
	added := 0
	err := db.Update(func(tx *bbolt.Tx) error {
		added = 0
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			k, v := item(i)
			if b.Get(k) != nil {
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	return added, err
}

// Page looks up a stored page.
func Page(db *bbolt.DB, id int64) (export.PageRow, bool, error) {
	var rv export.PageRow
	found := false
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(PageBucket)
		if b == nil {
			return nil
		}
		data := b.Get(PageKey(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rv)
	})
	return rv, found, err
}

// LinksFrom lists the stored links out of a page in target id order.
func LinksFrom(db *bbolt.DB, id int64) ([]export.LinkRow, error) {
	var rv []export.LinkRow
	prefix := PageKey(id)
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(LinkBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var l export.LinkRow
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			rv = append(rv, l)
		}
		return nil
	})
	return rv, err
}
