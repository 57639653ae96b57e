package mongo

import (
	"testing"

	"github.com/dustin/go-wikigraph/export"
	"github.com/stretchr/testify/assert"
	"gopkg.in/mgo.v2/bson"
)

func TestPageOp(t *testing.T) {
	p := export.PageRow{ID: 4, Title: "Paname", RedirectTo: 2}
	sel, up := PageOp(p)
	assert.Equal(t, bson.M{"_id": int64(4)}, sel)
	assert.Equal(t, bson.M{"$setOnInsert": p}, up)

	data, err := bson.Marshal(p)
	assert.NoError(t, err)
	var m bson.M
	assert.NoError(t, bson.Unmarshal(data, &m))
	assert.EqualValues(t, 4, m["_id"])
	assert.Equal(t, "Paname", m["title"])
	assert.EqualValues(t, 2, m["redirect_to"])

	data, err = bson.Marshal(export.PageRow{ID: 2, Title: "Paris"})
	assert.NoError(t, err)
	m = nil
	assert.NoError(t, bson.Unmarshal(data, &m))
	assert.NotContains(t, m, "redirect_to")
}

func TestLinkOp(t *testing.T) {
	l := export.LinkRow{FromID: 1, FromTitle: "Europe", ToID: 2, ToTitle: "Paris", Count: 3}
	sel, up := LinkOp(l)
	assert.Equal(t, bson.M{"from_id": int64(1), "to_id": int64(2)}, sel)
	assert.Equal(t, bson.M{"$setOnInsert": l}, up)
}
