package sidecar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docintel/internal/model"
)

func TestStructureCacheEvictsLRU(t *testing.T) {
	c := NewStructureCache(2)
	c.Put(Key("doc1", 1), model.PageStructure{Page: 1})
	c.Put(Key("doc1", 2), model.PageStructure{Page: 2})

	// touch page 1 so page 2 becomes LRU
	_, ok := c.Get(Key("doc1", 1))
	assert.True(t, ok)

	c.Put(Key("doc1", 3), model.PageStructure{Page: 3})

	_, ok = c.Get(Key("doc1", 2))
	assert.False(t, ok, "page 2 should have been evicted")

	_, ok = c.Get(Key("doc1", 1))
	assert.True(t, ok)
	_, ok = c.Get(Key("doc1", 3))
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestStructureCacheDeleteByDoc(t *testing.T) {
	c := NewStructureCache(10)
	c.Put(Key("doc1", 1), model.PageStructure{Page: 1})
	c.Put(Key("doc1", 2), model.PageStructure{Page: 2})
	c.Put(Key("doc2", 1), model.PageStructure{Page: 1})

	c.Delete("doc1")

	_, ok := c.Get(Key("doc1", 1))
	assert.False(t, ok)
	_, ok = c.Get(Key("doc2", 1))
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}
