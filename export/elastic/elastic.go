// Package elastic bulk loads a graph's articles into ElasticSearch.
package elastic

import (
	"context"

	"github.com/dustin/go-elasticsearch"
	"github.com/dustin/go-wikigraph"
	"github.com/dustin/go-wikigraph/export"
	"github.com/sirupsen/logrus"
)

const batchSize = 1000

// Exporter indexes one document per article.
type Exporter struct {
	URL   string
	Index string
	Type  string
	Log   logrus.FieldLogger
}

// New gets an exporter for the server at url.
func New(url string, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{URL: url, Index: "wikigraph", Type: "article", Log: log}
}

// Instruction is the bulk update for one article.
func (e *Exporter) Instruction(a export.Article) *elasticsearch.UpdateInstruction {
	links := make([]map[string]interface{}, len(a.Links))
	for i, l := range a.Links {
		links[i] = map[string]interface{}{"title": l.Title, "count": l.Count}
	}
	body := map[string]interface{}{
		"id":      a.ID,
		"title":   a.Title,
		"lower":   a.Lower,
		"link_to": links,
	}
	if a.RedirectTo != "" {
		body["redirect_to"] = a.RedirectTo
	}
	return &elasticsearch.UpdateInstruction{
		Id:    a.Title,
		Index: e.Index,
		Type:  e.Type,
		Body:  body,
	}
}

// Export the graph.  The bulk loader sends as it goes and reports
// nothing back, so only cancellation surfaces as an error.
func (e *Exporter) Export(ctx context.Context, g *wikigraph.Graph) error {
	es := elasticsearch.ElasticSearch{URL: e.URL}
	bulkLoader := es.Bulk()
	defer bulkLoader.Quit()

	articles := export.Articles(g)
	progress := export.NewProgress(e.Log, "documents")
	counter := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		counter++
		if counter > batchSize {
			bulkLoader.SendBatch()
			progress.Add(counter - 1)
			counter = 1
		}
		bulkLoader.Update(e.Instruction(a))
	}
	progress.Add(counter)
	return nil
}
