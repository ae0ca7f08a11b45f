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

// Package tiered composes the memory and disk tiers behind a single
// get/put/remove/clear API. The facade holds no state of its own beyond
// references to the two stores, and adds no cross-tier atomicity: each
// tier independently guarantees its own contract.
package tiered

import (
	"errors"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/memory"
	"github.com/pixcache/pixcache/pkg/cache/metrics"
	"github.com/pixcache/pixcache/pkg/cache/registry"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/config"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"
)

// Client is the two-tier cache facade
type Client struct {
	// Name is the diagnostics label of the cache instance
	Name string

	mem  *memory.Cache
	disk cache.Store
}

// New validates the configuration, builds both tiers, and connects the
// disk tier. The configuration is consumed here and never re-entered: a
// Client is unaffected by later mutation of cfg.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	disk, err := registry.NewDiskStore(cfg)
	if err != nil {
		return nil, err
	}
	if err = disk.Connect(); err != nil {
		return nil, err
	}
	c := &Client{
		Name: cfg.Name,
		mem:  memory.New(cfg.Name, cfg.Budget()),
		disk: disk,
	}
	logger.Info("tiered cache connected",
		logging.Pairs{"cacheName": c.Name, "provider": cfg.Provider,
			"memoryBudgetBytes": cfg.Budget(), "diskDirectory": cfg.DiskDirectory})
	return c, nil
}

// NewFromStores assembles a Client over pre-built tiers. Callers own
// connecting and closing the disk store lifecycle around it.
func NewFromStores(name string, mem *memory.Cache, disk cache.Store) *Client {
	return &Client{Name: name, mem: mem, disk: disk}
}

// Retrieve queries the memory tier and falls back to the disk tier on a
// miss, promoting a disk hit back into memory. A miss in both tiers is
// reported as cache.ErrKNF; a disk-tier fault is reported as an IOError,
// distinguishable from a miss. A promotion failure never fails the get:
// the successfully-read disk payload is returned and the failure is
// logged as a diagnostic.
func (c *Client) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	if data, ls, err := c.mem.Retrieve(cacheKey); err == nil {
		return data, ls, nil
	}

	data, size, ls, err := c.disk.Retrieve(cacheKey)
	if err != nil {
		if errors.Is(err, cache.ErrKNF) {
			return nil, status.LookupStatusKeyMiss, cache.ErrKNF
		}
		return nil, ls, err
	}

	if perr := c.mem.Store(cacheKey, data, size); perr != nil {
		metrics.ObserveCacheEvent(c.Name, "memory", "error", "promotion")
		logger.Warn("memory tier promotion failed; serving the disk payload",
			logging.Pairs{"cacheName": c.Name, "key": cacheKey, "error": perr})
	}
	return data, status.LookupStatusHit, nil
}

// Store writes the entry to the memory tier first, then to the disk
// tier. A disk-tier write failure is absorbed as a diagnostic: the
// memory tier remains authoritative for the current process, the disk
// tier being an optimization for restart survival.
func (c *Client) Store(cacheKey string, data []byte, size int64) error {
	c.mem.Store(cacheKey, data, size)
	if err := c.disk.Store(cacheKey, data, size); err != nil {
		metrics.ObserveCacheEvent(c.Name, "disk", "error", "write_behind")
		logger.Warn("disk tier write failed; entry retained in memory only",
			logging.Pairs{"cacheName": c.Name, "key": cacheKey, "error": err})
	}
	return nil
}

// Remove removes the entry from both tiers; absence in either tier is
// not an error
func (c *Client) Remove(cacheKey string) error {
	c.mem.Remove(cacheKey)
	return c.disk.Remove(cacheKey)
}

// ClearMemory unconditionally empties the memory tier
func (c *Client) ClearMemory() {
	c.mem.Clear()
}

// ClearDisk purges the disk tier per the provided mode
func (c *Client) ClearDisk(mode cache.PurgeMode) error {
	return c.disk.Purge(mode)
}

// Close releases both tiers. The disk tier's persisted contents survive
// for the next instance over the same directory.
func (c *Client) Close() error {
	c.mem.Clear()
	return c.disk.Close()
}
