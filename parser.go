package wikigraph

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ArticleNamespace is the namespace of actual articles.
const ArticleNamespace = 0

// A PageRecord is an article pulled out of a block.
type PageRecord struct {
	ID        int64
	Title     string
	Namespace int
	// Redirect is the title this page redirects to, if any.
	Redirect string
	// Text is the wikitext of the page's revision.
	Text string
	// HasText is false when the page had no revision at all, as
	// opposed to an empty one.
	HasText bool
}

// A revision to a page.  Only the text matters here.
type revision struct {
	Text string `xml:"text"`
}

// pageElement is the parser's scratch space for the page being read.
type pageElement struct {
	title    string
	ns       string
	id       string
	redirect string
	text     string
	hasTitle bool
	hasNS    bool
	hasID    bool
	hasText  bool
}

// A PageParser pulls article pages out of XML one at a time.
//
// Nothing is held beyond the page being read: each page's scratch space
// is released once its record is handed out or the page is thrown away.
// A PageParser can't be rewound.
type PageParser struct {
	x   *xml.Decoder
	log logrus.FieldLogger
	cur pageElement
	err error

	pages   int
	skipped int
	dropped int
}

// NewPageParser reads pages from r.  r should be a single XML document,
// such as the output of Chunk.XML.
func NewPageParser(r io.Reader, log logrus.FieldLogger) *PageParser {
	return &PageParser{x: xml.NewDecoder(r), log: log}
}

// Next gets the next article from the parser.
//
// Pages outside the article namespace are skipped without being
// decoded past their <ns>.  Articles missing a title or id are logged
// and dropped.  io.EOF marks the end, and any error is sticky.
func (p *PageParser) Next() (*PageRecord, error) {
	if p.err != nil {
		return nil, p.err
	}
	for {
		tok, err := p.x.Token()
		if err != nil {
			p.err = err
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "page" {
			continue
		}

		rec, err := p.readPage()
		p.release()

		var pfe *PageFieldError
		switch {
		case errors.As(err, &pfe):
			p.dropped++
			p.log.WithFields(logrus.Fields{
				"title": pfe.Title,
				"id":    pfe.ID,
			}).Warnf("Dropping page: %v", pfe)
		case err != nil:
			p.err = err
			return nil, err
		case rec == nil:
			p.skipped++
		default:
			p.pages++
			return rec, nil
		}
	}
}

// Pages is the number of article records handed out so far.
func (p *PageParser) Pages() int { return p.pages }

// Skipped is the number of non-article pages passed over.
func (p *PageParser) Skipped() int { return p.skipped }

// Dropped is the number of articles thrown out for missing fields.
func (p *PageParser) Dropped() int { return p.dropped }

// release forgets the page just read.
func (p *PageParser) release() {
	p.cur = pageElement{}
}

// readPage consumes a page up to and including </page>.  It returns nil
// without error for pages outside the article namespace.
func (p *PageParser) readPage() (*PageRecord, error) {
	for {
		tok, err := p.x.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, errors.Wrap(err, "reading page")
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return p.finish()
		case xml.StartElement:
			if err := p.readField(&t); err != nil {
				return nil, err
			}
			if p.cur.hasNS && strings.TrimSpace(p.cur.ns) != "0" {
				return nil, p.x.Skip()
			}
		}
	}
}

func (p *PageParser) readField(t *xml.StartElement) error {
	var err error
	switch t.Name.Local {
	case "title":
		err = p.x.DecodeElement(&p.cur.title, t)
		p.cur.hasTitle = true
	case "ns":
		err = p.x.DecodeElement(&p.cur.ns, t)
		p.cur.hasNS = true
	case "id":
		err = p.x.DecodeElement(&p.cur.id, t)
		p.cur.hasID = true
	case "redirect":
		for _, a := range t.Attr {
			if a.Name.Local == "title" {
				p.cur.redirect = a.Value
			}
		}
		err = p.x.Skip()
	case "revision":
		var rev revision
		err = p.x.DecodeElement(&rev, t)
		// The first revision wins, as with a pages-articles dump.
		if !p.cur.hasText {
			p.cur.text = rev.Text
			p.cur.hasText = true
		}
	default:
		err = p.x.Skip()
	}
	return errors.Wrapf(err, "reading <%s>", t.Name.Local)
}

func (p *PageParser) finish() (*PageRecord, error) {
	if !p.cur.hasNS {
		return nil, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(p.cur.id), 10, 64)
	switch {
	case !p.cur.hasTitle || p.cur.title == "":
		return nil, &PageFieldError{Field: "title", ID: id}
	case !p.cur.hasID || err != nil:
		return nil, &PageFieldError{Field: "id", Title: p.cur.title}
	}
	return &PageRecord{
		ID:        id,
		Title:     p.cur.title,
		Namespace: ArticleNamespace,
		Redirect:  p.cur.redirect,
		Text:      p.cur.text,
		HasText:   p.cur.hasText,
	}, nil
}
