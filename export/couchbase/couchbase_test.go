package couchbase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dustin/go-wikigraph/export"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBucket struct {
	mu   sync.Mutex
	docs map[string]interface{}
	fail string
}

func (m *memBucket) Set(k string, exp int, v interface{}) error {
	if k == m.fail {
		return errors.New("key too long")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[k] = v
	return nil
}

func testArticles() []export.Article {
	return []export.Article{
		{ID: 1, Title: "Europe", Lower: "europe", Links: []export.Link{{Title: "Paris", Count: 3}}},
		{ID: 2, Title: "Paris", Lower: "paris", Links: []export.Link{}},
	}
}

func TestStore(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := New("http://localhost:8091/", "wiki", log)
	m := &memBucket{docs: map[string]interface{}{}}
	require.NoError(t, e.Store(context.Background(), m, testArticles()))

	require.Len(t, m.docs, 2)
	doc := m.docs["Europe"].(Document)
	assert.Equal(t, "Europe", doc.Title)
	assert.EqualValues(t, 1, doc.ID)
	assert.Empty(t, doc.Article.Title)
	assert.Equal(t, []export.Link{{Title: "Paris", Count: 3}}, doc.Links)
}

func TestStoreFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := New("http://localhost:8091/", "wiki", log)
	m := &memBucket{docs: map[string]interface{}{}, fail: "Paris"}

	err := e.Store(context.Background(), m, testArticles())
	require.Error(t, err)
	assert.Equal(t, "1 of 2 documents failed", err.Error())
	assert.Len(t, m.docs, 1)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "Paris", hook.LastEntry().Data["title"])
}

func TestStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &memBucket{docs: map[string]interface{}{}}
	assert.Equal(t, context.Canceled, New("", "wiki", nil).Store(ctx, m, testArticles()))
	assert.Empty(t, m.docs)
}
