/*
 * Copyright 2023 The Pixcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memory is the in-memory tier of the cache: a strict LRU store
// bounded by a byte budget rather than an entry count. Payload sizes are
// declared by the caller at store time; the store never inspects payloads.
package memory

import (
	"container/list"
	"sync"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/metrics"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"
)

const tier = "memory"

// Cache is a byte-budgeted LRU memory cache. All methods are safe for
// concurrent use; a Store is observable by any subsequent Retrieve.
type Cache struct {
	// Name is the diagnostics label of the owning cache instance
	Name string

	mtx     sync.Mutex
	budget  int64
	size    int64
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

type lruEntry struct {
	key   string
	value []byte
	size  int64
}

// New returns a new memory Cache bounded by budgetBytes
func New(name string, budgetBytes int64) *Cache {
	metrics.ObserveCacheMaxBytes(name, tier, budgetBytes)
	return &Cache{
		Name:    name,
		budget:  budgetBytes,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Store inserts or replaces the entry for cacheKey, marks it most
// recently used, then evicts least-recently-used entries until the byte
// budget holds again. The entry just stored is never evicted on its own
// behalf: a single entry larger than the whole budget stays resident
// alone, surfaced as a diagnostic rather than an error.
func (c *Cache) Store(cacheKey string, data []byte, size int64) error {
	if size < 0 {
		size = 0
	}

	c.mtx.Lock()
	if el, ok := c.entries[cacheKey]; ok {
		ent := el.Value.(*lruEntry)
		c.size += size - ent.size
		ent.value = data
		ent.size = size
		c.order.MoveToFront(el)
	} else {
		c.entries[cacheKey] = c.order.PushFront(&lruEntry{key: cacheKey, value: data, size: size})
		c.size += size
	}
	evicted := c.evict(cacheKey)
	overBudget := c.size > c.budget
	resident, count := c.size, int64(len(c.entries))
	c.mtx.Unlock()

	metrics.ObserveCacheOperation(c.Name, tier, "set", "none", float64(size))
	if len(evicted) > 0 {
		metrics.ObserveCacheEvent(c.Name, tier, "eviction", "size_bytes")
		logger.Debug("memory cache evicted least-recently-used entries",
			logging.Pairs{"cacheName": c.Name, "count": len(evicted), "cacheSizeBytes": resident})
	}
	if overBudget {
		metrics.ObserveCacheEvent(c.Name, tier, "degradation", "oversized_entry")
		logger.Warn("entry exceeds the memory cache byte budget; retained alone",
			logging.Pairs{"cacheName": c.Name, "key": cacheKey,
				"sizeBytes": size, "budgetBytes": c.budget})
	}
	metrics.ObserveCacheSizeChange(c.Name, tier, resident, count)
	return nil
}

// evict removes entries from the least-recently-used end until the byte
// budget holds, never removing keep. Caller holds c.mtx.
func (c *Cache) evict(keep string) []string {
	var removals []string
	for c.size > c.budget {
		el := c.order.Back()
		if el == nil {
			break
		}
		ent := el.Value.(*lruEntry)
		if ent.key == keep {
			break
		}
		c.order.Remove(el)
		delete(c.entries, ent.key)
		c.size -= ent.size
		removals = append(removals, ent.key)
	}
	return removals
}

// Retrieve looks up cacheKey, marking it most recently used on a hit.
// A miss does not mutate the store.
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	c.mtx.Lock()
	el, ok := c.entries[cacheKey]
	if !ok {
		c.mtx.Unlock()
		metrics.ObserveCacheMiss(c.Name, tier)
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	c.order.MoveToFront(el)
	data := el.Value.(*lruEntry).value
	c.mtx.Unlock()

	metrics.ObserveCacheOperation(c.Name, tier, "get", "hit", float64(len(data)))
	return data, status.LookupStatusHit, nil
}

// Remove unconditionally removes the entries for the given keys
func (c *Cache) Remove(cacheKeys ...string) {
	c.mtx.Lock()
	for _, k := range cacheKeys {
		if el, ok := c.entries[k]; ok {
			c.size -= el.Value.(*lruEntry).size
			c.order.Remove(el)
			delete(c.entries, k)
			metrics.ObserveCacheOperation(c.Name, tier, "del", "none", 0)
		}
	}
	resident, count := c.size, int64(len(c.entries))
	c.mtx.Unlock()
	metrics.ObserveCacheSizeChange(c.Name, tier, resident, count)
}

// Clear unconditionally removes every entry
func (c *Cache) Clear() {
	c.mtx.Lock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
	c.mtx.Unlock()
	metrics.ObserveCacheSizeChange(c.Name, tier, 0, 0)
}

// Size returns the sum of declared entry sizes currently resident
func (c *Cache) Size() int64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.size
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.entries)
}
