package wikigraph

import (
	"bytes"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
)

const (
	chunkOpen  = "<chunk>\n"
	chunkClose = "\n</chunk>\n"
)

var mediawikiClose = []byte("</mediawiki>")

// A Dump is a multistream dump opened for random access.
//
// Blocks are read through their own io.SectionReader, so any number of
// goroutines may Extract from one Dump at once.
type Dump struct {
	f    *os.File
	size int64
	log  logrus.FieldLogger
}

// OpenDump opens the dump at path for reading.
func OpenDump(path string, log logrus.FieldLogger) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dump %v", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat dump %v", path)
	}
	return &Dump{f: f, size: st.Size(), log: log}, nil
}

// Size of the compressed dump in bytes.
func (d *Dump) Size() int64 {
	return d.size
}

// Close the underlying file.
func (d *Dump) Close() error {
	return d.f.Close()
}

// A Chunk is the decompressed contents of one block.
type Chunk struct {
	Range BlockRange
	// Raw is exactly what came out of the decompressor.
	Raw []byte
	// Truncated is set when undecodable trailing bytes were dropped.
	Truncated bool
}

// Extract decompresses the block in r.
//
// The window ends at the next block's offset, which needn't be where
// the bzip2 stream ends.  Whatever decodes before the decompressor
// gives up is kept; only a block yielding nothing at all is an error.
func (d *Dump) Extract(r BlockRange) (*Chunk, error) {
	n := r.Len()
	if n < 0 {
		n = d.size - r.Start
	}
	if r.Start < 0 || r.Start >= d.size || n <= 0 {
		return nil, &ChunkDecompressionError{Range: r,
			Err: errors.Errorf("window outside of %d byte dump", d.size)}
	}
	raw, err := decompress(io.NewSectionReader(d.f, r.Start, n))
	if len(raw) == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, &ChunkDecompressionError{Range: r, Err: err}
	}
	c := &Chunk{Range: r, Raw: raw}
	if err != nil {
		c.Truncated = true
		d.log.WithFields(logrus.Fields{
			"block":   r.String(),
			"decoded": len(raw),
		}).Debugf("Discarding undecodable tail: %v", err)
	}
	return c, nil
}

func decompress(r io.Reader) ([]byte, error) {
	bz, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, err
	}
	defer bz.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, bz)
	return buf.Bytes(), err
}

// XML returns the chunk as a standalone document.
//
// A block is a run of <page> elements with no root, so it gets wrapped
// in a synthetic <chunk> element.  Invalid UTF-8 is replaced with
// U+FFFD, and the dump's closing </mediawiki> tag, which rides along
// with the final block, is dropped.
func (c *Chunk) XML() []byte {
	text, err := unicode.UTF8.NewDecoder().Bytes(c.Raw)
	if err != nil {
		text = bytes.ToValidUTF8(c.Raw, []byte("\uFFFD"))
	}
	trimmed := bytes.TrimRight(text, " \t\r\n")
	if bytes.HasSuffix(trimmed, mediawikiClose) {
		text = trimmed[:len(trimmed)-len(mediawikiClose)]
	}
	rv := make([]byte, 0, len(text)+len(chunkOpen)+len(chunkClose))
	rv = append(rv, chunkOpen...)
	rv = append(rv, text...)
	return append(rv, chunkClose...)
}
