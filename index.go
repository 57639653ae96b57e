package wikigraph

import (
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ToEOF as a BlockRange end means the block runs to the end of the dump.
const ToEOF = -1

// A BlockRange is the byte span of one compressed block in the dump.
type BlockRange struct {
	Start int64
	End   int64
}

// Len is the number of bytes in the range, or -1 for one that runs to
// the end of the file.
func (r BlockRange) Len() int64 {
	if r.End == ToEOF {
		return -1
	}
	return r.End - r.Start
}

func (r BlockRange) String() string {
	if r.End == ToEOF {
		return fmt.Sprintf("[%d,EOF)", r.Start)
	}
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Ranges pairs up consecutive offsets.  The last range runs to EOF.
//
// offsets must be sorted and unique, as returned by LoadOffsets.
func Ranges(offsets []int64) []BlockRange {
	rv := make([]BlockRange, 0, len(offsets))
	for i, o := range offsets {
		end := int64(ToEOF)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		rv = append(rv, BlockRange{Start: o, End: end})
	}
	return rv
}

// An IndexEntry is an individual article from the index.
type IndexEntry struct {
	StreamOffset int64
	// PageID is zero when the field is absent or not a number.
	PageID      int64
	ArticleName string
}

func (i IndexEntry) String() string {
	return fmt.Sprintf("%v:%v:%v",
		i.StreamOffset, i.PageID, i.ArticleName)
}

// An IndexReader is a wikipedia multistream index reader.
type IndexReader struct {
	r    *bufio.Scanner
	line int
}

// NewIndexReader gets a wikipedia index reader.
func NewIndexReader(r io.Reader) *IndexReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &IndexReader{r: s}
}

// Next gets the next entry from the index stream.
//
// A line whose offset can't be read yields an *IndexEntryError; the
// reader has moved past it, so calling Next again is fine.  Blank lines
// are skipped.  The end of the index is io.EOF.
func (ir *IndexReader) Next() (IndexEntry, error) {
	for {
		if !ir.r.Scan() {
			err := ir.r.Err()
			if err == nil {
				err = io.EOF
			}
			return IndexEntry{}, err
		}
		ir.line++
		text := strings.TrimRight(ir.r.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		return parseIndexLine(ir.line, text)
	}
}

func parseIndexLine(line int, text string) (IndexEntry, error) {
	parts := strings.SplitN(text, ":", 3)
	offset, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err == nil && offset < 0 {
		err = errors.Errorf("negative offset %d", offset)
	}
	if err != nil {
		return IndexEntry{}, &IndexEntryError{Line: line, Text: text, Err: err}
	}
	rv := IndexEntry{StreamOffset: offset}
	if len(parts) > 1 {
		rv.PageID, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	if len(parts) > 2 {
		rv.ArticleName = parts[2]
	}
	return rv, nil
}

// A BlockSummary is a stream offset and how many index entries live in
// that stream.
type BlockSummary struct {
	Offset int64
	Count  int
}

// SummarizeIndex reads a whole index and returns one summary per
// distinct offset, sorted by offset.
//
// Malformed lines are logged and skipped.  Only a failure to read the
// stream itself is returned.
func SummarizeIndex(r io.Reader, log logrus.FieldLogger) ([]BlockSummary, error) {
	counts := map[int64]int{}
	ir := NewIndexReader(r)
	for {
		e, err := ir.Next()
		if err == io.EOF {
			break
		}
		var ie *IndexEntryError
		if errors.As(err, &ie) {
			log.WithFields(logrus.Fields{
				"line":  ie.Line,
				"entry": ie.Text,
			}).Warnf("Skipping malformed index entry: %v", ie.Err)
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading index")
		}
		counts[e.StreamOffset]++
	}

	rv := make([]BlockSummary, 0, len(counts))
	for o, c := range counts {
		rv = append(rv, BlockSummary{Offset: o, Count: c})
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Offset < rv[j].Offset })
	return rv, nil
}

// LoadOffsets returns the distinct block offsets named by an index in
// ascending order.  An empty index yields an empty slice.
func LoadOffsets(r io.Reader, log logrus.FieldLogger) ([]int64, error) {
	sums, err := SummarizeIndex(r, log)
	if err != nil {
		return nil, err
	}
	rv := make([]int64, len(sums))
	for i, s := range sums {
		rv[i] = s.Offset
	}
	return rv, nil
}

// OpenIndex opens an index file, decompressing it on the fly if its
// name ends in .bz2 (which is how wikimedia ships them).
func OpenIndex(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening index %v", path)
	}
	if !strings.HasSuffix(path, ".bz2") {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{bzip2.NewReader(f), f}, nil
}

// LoadOffsetsFile is LoadOffsets over the named index file.
func LoadOffsetsFile(path string, log logrus.FieldLogger) ([]int64, error) {
	r, err := OpenIndex(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return LoadOffsets(r, log)
}
