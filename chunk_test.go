package wikigraph

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDump(t *testing.T, path string) *Dump {
	log, _ := testLogger()
	d, err := OpenDump(path, log)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func writeRaw(t *testing.T, data []byte) string {
	path := filepath.Join(t.TempDir(), "dump.xml.bz2")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractBlocks(t *testing.T) {
	td := writeDump(t,
		[]testPage{{title: "A", id: 1, text: "[[B]]"}, {title: "B", id: 2}},
		[]testPage{{title: "C", id: 3, text: "[[A]] [[Z]]"}},
	)
	d := openTestDump(t, td.dumpPath)

	ranges := Ranges(td.offsets)
	require.Len(t, ranges, 2)

	c, err := d.Extract(ranges[0])
	require.NoError(t, err)
	assert.Equal(t, td.blocks[0], string(c.Raw))
	assert.False(t, c.Truncated)

	// The last block runs into the footer stream.
	c, err = d.Extract(ranges[1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(c.Raw), td.blocks[1]))
}

func TestExtractRoundTrip(t *testing.T) {
	var blocks [][]testPage
	for i := 0; i < 5; i++ {
		var pages []testPage
		for j := 0; j < 3; j++ {
			id := int64(i*10 + j)
			pages = append(pages, testPage{
				title: strings.Repeat("x", j+1) + string(rune('A'+i)),
				id:    id,
				text:  "Some text with [[Links]] & <b>markup</b>",
			})
		}
		blocks = append(blocks, pages)
	}

	// No header or footer: the blocks are the whole dump.
	var dump bytes.Buffer
	var offsets []int64
	var want strings.Builder
	for _, pages := range blocks {
		offsets = append(offsets, int64(dump.Len()))
		text := blockText(pages...)
		want.WriteString(text)
		dump.Write(compress(t, text))
	}
	d := openTestDump(t, writeRaw(t, dump.Bytes()))

	var got bytes.Buffer
	for _, r := range Ranges(offsets) {
		c, err := d.Extract(r)
		require.NoError(t, err)
		got.Write(c.Raw)
	}
	assert.Equal(t, want.String(), got.String())
}

func TestExtractDiscardsTrailingFragment(t *testing.T) {
	first := blockText(testPage{title: "A", id: 1})
	second := compress(t, blockText(testPage{title: "B", id: 2}))

	var dump bytes.Buffer
	dump.Write(compress(t, first))
	end := int64(dump.Len()) + 12
	dump.Write(second)
	d := openTestDump(t, writeRaw(t, dump.Bytes()))

	// The window overshoots into a fragment of the next stream.
	c, err := d.Extract(BlockRange{0, end})
	require.NoError(t, err)
	assert.Equal(t, first, string(c.Raw))
}

func TestExtractFailures(t *testing.T) {
	data := compress(t, blockText(testPage{title: "A", id: 1}))
	garbage := []byte("this is not a bzip2 stream at all, not even slightly")
	d := openTestDump(t, writeRaw(t, append(append([]byte{}, data...), garbage...)))

	tests := []struct {
		name string
		r    BlockRange
	}{
		{"past EOF", BlockRange{d.Size() + 100, ToEOF}},
		{"at EOF", BlockRange{d.Size(), ToEOF}},
		{"garbage", BlockRange{int64(len(data)), ToEOF}},
		{"mid stream", BlockRange{5, int64(len(data))}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := d.Extract(test.r)
			assert.Nil(t, c)
			var ce *ChunkDecompressionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, test.r, ce.Range)
		})
	}
}

func TestOpenDumpMissing(t *testing.T) {
	log, _ := testLogger()
	_, err := OpenDump(filepath.Join(t.TempDir(), "missing.xml.bz2"), log)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChunkXML(t *testing.T) {
	text := blockText(testPage{title: "A", id: 1}, testPage{title: "B", id: 2})

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", text},
		{"final block", text + "</mediawiki>\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := &Chunk{Raw: []byte(test.raw)}
			out := c.XML()
			assert.True(t, bytes.HasPrefix(out, []byte("<chunk>")))
			assert.True(t, bytes.HasSuffix(out, []byte("</chunk>\n")))
			assert.NotContains(t, string(out), "mediawiki")

			var doc struct {
				Pages []struct {
					Title string `xml:"title"`
				} `xml:"page"`
			}
			require.NoError(t, xml.Unmarshal(out, &doc))
			require.Len(t, doc.Pages, 2)
			assert.Equal(t, "B", doc.Pages[1].Title)
		})
	}
}

func TestChunkXMLReplacesInvalidUTF8(t *testing.T) {
	raw := []byte("<page><title>Caf\xe9</title></page>")
	c := &Chunk{Raw: raw}
	out := c.XML()
	assert.Contains(t, string(out), "Caf�")
	// Raw stays untouched.
	assert.Equal(t, []byte("<page><title>Caf\xe9</title></page>"), c.Raw)
}
