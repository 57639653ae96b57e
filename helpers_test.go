package wikigraph

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const dumpHeader = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" version="0.10" xml:lang="en">
  <siteinfo>
    <sitename>Wikipedia</sitename>
    <dbname>enwiki</dbname>
  </siteinfo>
`

const dumpFooter = "</mediawiki>\n"

type testPage struct {
	title    string
	ns       int
	id       int64
	redirect string
	text     string
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (p testPage) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  <page>\n    <title>%s</title>\n    <ns>%d</ns>\n    <id>%d</id>\n",
		escape(p.title), p.ns, p.id)
	if p.redirect != "" {
		fmt.Fprintf(&b, "    <redirect title=\"%s\" />\n", escape(p.redirect))
	}
	fmt.Fprintf(&b, "    <revision>\n      <id>%d</id>\n      <timestamp>2024-03-01T00:00:00Z</timestamp>\n", p.id*10)
	fmt.Fprintf(&b, "      <text bytes=\"%d\" xml:space=\"preserve\">%s</text>\n", len(p.text), escape(p.text))
	b.WriteString("    </revision>\n  </page>\n")
	return b.String()
}

func blockText(pages ...testPage) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.String())
	}
	return b.String()
}

func compress(t testing.TB, text string) []byte {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	require.NoError(t, err)
	_, err = io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// testDump is a multistream dump on disk along with its index.
type testDump struct {
	dumpPath  string
	indexPath string
	offsets   []int64
	blocks    []string
}

// writeDump lays out a header stream, one stream per block and a footer
// stream, and writes an index naming every page of every block.
func writeDump(t testing.TB, blocks ...[]testPage) *testDump {
	dir := t.TempDir()
	td := &testDump{
		dumpPath:  filepath.Join(dir, "enwiki-pages-articles-multistream.xml.bz2"),
		indexPath: filepath.Join(dir, "enwiki-pages-articles-multistream-index.txt"),
	}

	var dump, index bytes.Buffer
	dump.Write(compress(t, dumpHeader))
	for _, pages := range blocks {
		offset := int64(dump.Len())
		text := blockText(pages...)
		td.offsets = append(td.offsets, offset)
		td.blocks = append(td.blocks, text)
		dump.Write(compress(t, text))
		for _, p := range pages {
			fmt.Fprintf(&index, "%d:%d:%s\n", offset, p.id, p.title)
		}
	}
	dump.Write(compress(t, dumpFooter))

	require.NoError(t, os.WriteFile(td.dumpPath, dump.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(td.indexPath, index.Bytes(), 0o644))
	return td
}

func testLogger() (logrus.FieldLogger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}
