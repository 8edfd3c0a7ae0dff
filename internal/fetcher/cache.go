package fetcher

import (
	"encoding/json"
	"strconv"
	"sync"
)

// docKey identifies one schema document.
type docKey struct {
	kind     string // "relations" or "dependencies"
	schemaID int
}

func (k docKey) String() string {
	return k.kind + ":" + strconv.Itoa(k.schemaID)
}

// docCache keeps schema documents until they are forgotten. Failed fetches
// are never stored.
type docCache struct {
	mu   sync.RWMutex
	docs map[docKey]json.RawMessage
}

func (c *docCache) get(k docKey) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[k]
	return doc, ok
}

func (c *docCache) put(k docKey, doc json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs == nil {
		c.docs = make(map[docKey]json.RawMessage)
	}
	c.docs[k] = doc
}

// forget drops every document of a schema.
func (c *docCache) forget(schemaID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.docs {
		if k.schemaID == schemaID {
			delete(c.docs, k)
		}
	}
}
