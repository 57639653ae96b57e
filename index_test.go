package wikigraph

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testData = `499:10:AccessibleComputing
499:12:Anarchism
499:13:AfghanistanHistory
499:14:AfghanistanGeography
499:15:AfghanistanPeople
499:18:AfghanistanCommunications
499:19:AfghanistanTransportations
499:20:AfghanistanMilitary
499:21:AfghanistanTransnationalIssues
499:23:AssistiveTechnology
2147418907:2638569:William Earl Brown
2147418907:2638570:Lebuhraya Persekutuan
2147418907:2638571:St Francis of Paola
2147418907:2638573:Francesco di Paula
2147418907:2638575:Arapahoe Community College
2147418907:2638583:Francesco Borgia
2147498001:2638585:Philadelphia Bulletin
2147498001:2638588:Zrínyi Miklós
2147498001:2638602:Privatize
2147498001:2638604:Island of Montréal
`

const lastChunk = 2147498001

func TestIndexReader(t *testing.T) {
	ir := NewIndexReader(strings.NewReader(testData))

	e, err := ir.Next()
	require.NoError(t, err)
	assert.Equal(t, "499:10:AccessibleComputing", e.String())

	for {
		var tmp IndexEntry
		tmp, err = ir.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		e = tmp
	}
	assert.EqualValues(t, lastChunk, e.StreamOffset)
	assert.Equal(t, "Island of Montréal", e.ArticleName)
}

func TestIndexReaderTitleWithColons(t *testing.T) {
	ir := NewIndexReader(strings.NewReader("600:42:Star Trek: The Next Generation\n"))
	e, err := ir.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 600, e.StreamOffset)
	assert.EqualValues(t, 42, e.PageID)
	assert.Equal(t, "Star Trek: The Next Generation", e.ArticleName)
}

func TestIndexReaderMalformed(t *testing.T) {
	ir := NewIndexReader(strings.NewReader("abc:1:Foo\n\n-5:2:Bar\n700:3:Baz\n"))

	_, err := ir.Next()
	var ie *IndexEntryError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Line)
	assert.Equal(t, "abc:1:Foo", ie.Text)

	_, err = ir.Next()
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Line)

	e, err := ir.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 700, e.StreamOffset)

	_, err = ir.Next()
	assert.Equal(t, io.EOF, err)
}

func TestIndexSummary(t *testing.T) {
	log, _ := testLogger()
	sums, err := SummarizeIndex(strings.NewReader(testData), log)
	require.NoError(t, err)

	assert.Equal(t, []BlockSummary{
		{499, 10},
		{2147418907, 6},
		{lastChunk, 4},
	}, sums)
}

func TestLoadOffsets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		exp  []int64
	}{
		{"empty", "", []int64{}},
		{"single", "499:10:AccessibleComputing\n", []int64{499}},
		{"dedup", testData, []int64{499, 2147418907, lastChunk}},
		{"out of order", "900:3:C\n499:1:A\n900:4:D\n700:2:B\n499:5:E\n",
			[]int64{499, 700, 900}},
		{"no trailing newline", "499:1:A\n700:2:B", []int64{499, 700}},
		{"crlf", "499:1:A\r\n700:2:B\r\n", []int64{499, 700}},
		{"offset only", "499\n700:2\n", []int64{499, 700}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, _ := testLogger()
			got, err := LoadOffsets(strings.NewReader(test.in), log)
			require.NoError(t, err)
			assert.Equal(t, test.exp, got)
			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1], got[i])
			}
		})
	}
}

func TestLoadOffsetsSkipsMalformed(t *testing.T) {
	log, hook := testLogger()
	got, err := LoadOffsets(strings.NewReader("499:1:A\nbogus:2:B\n700:3:C\n"), log)
	require.NoError(t, err)
	assert.Equal(t, []int64{499, 700}, got)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 2, entry.Data["line"])
	assert.Equal(t, "bogus:2:B", entry.Data["entry"])
}

func TestRanges(t *testing.T) {
	assert.Empty(t, Ranges(nil))
	assert.Equal(t, []BlockRange{{499, ToEOF}}, Ranges([]int64{499}))
	assert.Equal(t, []BlockRange{
		{499, 700},
		{700, 900},
		{900, ToEOF},
	}, Ranges([]int64{499, 700, 900}))

	r := BlockRange{499, 700}
	assert.EqualValues(t, 201, r.Len())
	assert.Equal(t, "[499,700)", r.String())
	assert.EqualValues(t, -1, BlockRange{900, ToEOF}.Len())
	assert.Equal(t, "[900,EOF)", BlockRange{900, ToEOF}.String())
}

func TestLoadOffsetsFileCompressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "index.txt")
	packed := filepath.Join(dir, "index.txt.bz2")
	require.NoError(t, os.WriteFile(plain, []byte(testData), 0o644))
	require.NoError(t, os.WriteFile(packed, compress(t, testData), 0o644))

	log, _ := testLogger()
	a, err := LoadOffsetsFile(plain, log)
	require.NoError(t, err)
	b, err := LoadOffsetsFile(packed, log)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
}

func TestLoadOffsetsFileMissing(t *testing.T) {
	log, _ := testLogger()
	_, err := LoadOffsetsFile(filepath.Join(t.TempDir(), "nope.txt"), log)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
