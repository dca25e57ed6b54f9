package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefinitionCache compiles each flowchart source once and shares the
// resulting Definition. Static validation and branch analysis therefore run
// at cache time, never per execution.
//
// Keys are SHA-256 digests of the source text, so two hosts loading the same
// document get the same Definition. Failed compilations are not cached.
type DefinitionCache struct {
	mu    sync.RWMutex
	max   int
	items map[string]*Definition
}

// NewDefinitionCache returns a cache holding at most max definitions. Once
// full, new definitions are still compiled and returned but not stored.
func NewDefinitionCache(max int) *DefinitionCache {
	if max <= 0 {
		max = 1
	}
	return &DefinitionCache{
		max:   max,
		items: make(map[string]*Definition, max),
	}
}

// GetOrCompile returns the cached Definition for source, building and
// compiling the flowchart on a miss. Concurrent misses for the same source
// build it once.
func (c *DefinitionCache) GetOrCompile(source string, build func() (*Flowchart, error)) (*Definition, error) {
	key := hashSource(source)

	c.mu.RLock()
	if d, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.items[key]; ok {
		return d, nil
	}

	fc, err := build()
	if err != nil {
		return nil, err
	}
	def, err := fc.Compile()
	if err != nil {
		return nil, err
	}

	if len(c.items) < c.max {
		c.items[key] = def
	}
	return def, nil
}

// Len returns the number of cached definitions.
func (c *DefinitionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func hashSource(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
