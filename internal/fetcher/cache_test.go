package fetcher

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestDocCache_ForgetDropsOneSchema(t *testing.T) {
	var c docCache
	c.put(docKey{"relations", 1}, json.RawMessage(`["R"]`))
	c.put(docKey{"dependencies", 1}, json.RawMessage(`[]`))
	c.put(docKey{"relations", 2}, json.RawMessage(`["S"]`))

	c.forget(1)

	if _, ok := c.get(docKey{"relations", 1}); ok {
		t.Errorf("relations of schema 1 should be forgotten")
	}
	if _, ok := c.get(docKey{"dependencies", 1}); ok {
		t.Errorf("dependencies of schema 1 should be forgotten")
	}
	if doc, ok := c.get(docKey{"relations", 2}); !ok || string(doc) != `["S"]` {
		t.Errorf("schema 2 should be kept, got %s, %v", doc, ok)
	}
}

func TestDocCache_ConcurrentUse(t *testing.T) {
	var c docCache
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := docKey{"relations", i % 3}
			c.put(k, json.RawMessage(`{}`))
			c.get(k)
			if i%4 == 0 {
				c.forget(i % 3)
			}
		}()
	}
	wg.Wait()
}

func TestDocKey_String(t *testing.T) {
	if got := (docKey{"dependencies", 7}).String(); got != "dependencies:7" {
		t.Errorf("got %q, want %q", got, "dependencies:7")
	}
}
