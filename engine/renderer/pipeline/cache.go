package pipeline

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of specialized pipelines a Cache keeps when no size is given.
const DefaultCacheSize = 16

// CreateFunc builds the pipeline for a key on a cache miss.
type CreateFunc func(key Key) (Pipeline, error)

// Cache keeps the most recently used pipelines and releases the GPU objects of evicted ones.
type Cache struct {
	mu     *sync.Mutex
	cache  *lru.Cache[Key, Pipeline]
	create CreateFunc
}

// NewCache creates a pipeline cache.
//
// Parameters:
//   - size: the number of pipelines to keep, DefaultCacheSize if not positive
//   - create: builds a pipeline on a cache miss
//
// Returns:
//   - *Cache: the cache
//   - error: an error if the underlying LRU cannot be created
func NewCache(size int, create CreateFunc) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict[Key, Pipeline](size, releasePipelineOnEviction)
	if err != nil {
		return nil, fmt.Errorf("pipeline cache: %w", err)
	}
	return &Cache{
		mu:     &sync.Mutex{},
		cache:  cache,
		create: create,
	}, nil
}

// Get returns the pipeline for key, creating it on a miss.
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - Pipeline: the cached or newly created pipeline
//   - error: an error if creation fails
func (c *Cache) Get(key Key) (Pipeline, error) {
	// Held across create so two goroutines missing on the same key build it once.
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := c.create(key)
	if err != nil {
		return nil, fmt.Errorf("build pipeline %s: %w", key, err)
	}
	c.cache.Add(key, p)
	return p, nil
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Purge releases and removes every cached pipeline.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

func releasePipelineOnEviction(_ Key, p Pipeline) {
	p.Release()
}
