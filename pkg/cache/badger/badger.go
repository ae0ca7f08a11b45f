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

// Package badger is the BadgerDB implementation of the disk tier.
// Expiry uses the insertion timestamp carried in our entry records, not
// badger's native TTL, because purging must happen only when the caller
// invokes it.
package badger

import (
	"time"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/entry"
	"github.com/pixcache/pixcache/pkg/cache/metrics"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/config"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"

	"github.com/dgraph-io/badger"
	"github.com/klauspost/compress/snappy"
)

// Store implements the cache.Store interface
var _ cache.Store = &Store{}

const tier = "badger"

// Store describes a BadgerDB disk-tier store
type Store struct {
	Name        string
	Directory   string
	PurgeAfter  time.Duration
	Compression bool

	dbh *badger.DB
	now func() time.Time
}

// New returns a new BadgerDB Store for the provided configuration
func New(name string, cfg *config.Config) *Store {
	return &Store{
		Name:        name,
		Directory:   cfg.DiskDirectory,
		PurgeAfter:  cfg.PurgeAfter(),
		Compression: cfg.Compression,
		now:         time.Now,
	}
}

// Connect opens the configured BadgerDB key-value store
func (s *Store) Connect() error {
	opts := badger.DefaultOptions(s.Directory)
	opts.Logger = nil

	var err error
	s.dbh, err = badger.Open(opts)
	if err != nil {
		return cache.NewIOError("connect", "", err)
	}
	return nil
}

// Store writes the entry for cacheKey with a fresh insertion timestamp
func (s *Store) Store(cacheKey string, data []byte, size int64) error {
	e := &entry.Entry{
		Key:        cacheKey,
		InsertedAt: s.now(),
		Size:       size,
		Value:      data,
	}
	if s.Compression {
		e.Codec = entry.CodecSnappy
		e.Value = snappy.Encode(nil, data)
	}
	b := e.ToBytes()

	err := s.dbh.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cacheKey), b)
	})
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "store")
		return cache.NewIOError("store", cacheKey, err)
	}
	metrics.ObserveCacheOperation(s.Name, tier, "set", "none", float64(len(b)))
	return nil
}

// Retrieve reads and deserializes the persisted entry for cacheKey
func (s *Store) Retrieve(cacheKey string) ([]byte, int64, status.LookupStatus, error) {
	var b []byte
	err := s.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		metrics.ObserveCacheMiss(s.Name, tier)
		return nil, 0, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "retrieve")
		return nil, 0, status.LookupStatusError, cache.NewIOError("retrieve", cacheKey, err)
	}

	e, err := entry.FromBytes(b)
	if err == nil && e.Codec == entry.CodecSnappy {
		e.Value, err = snappy.Decode(nil, e.Value)
	}
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "decode")
		return nil, 0, status.LookupStatusError, cache.NewIOError("retrieve", cacheKey, err)
	}

	metrics.ObserveCacheOperation(s.Name, tier, "get", "hit", float64(len(b)))
	return e.Value, e.Size, status.LookupStatusHit, nil
}

// Remove deletes the persisted entry for cacheKey if present
func (s *Store) Remove(cacheKey string) error {
	err := s.dbh.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
	if err != nil && err != badger.ErrKeyNotFound {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "remove")
		return cache.NewIOError("remove", cacheKey, err)
	}
	metrics.ObserveCacheOperation(s.Name, tier, "del", "none", 0)
	return nil
}

// Purge deletes persisted entries per the provided mode. The scan and
// the deletes share one transaction so a concurrent Store lands wholly
// before or after the purge; a conflicting write invalidates the
// transaction's snapshot and the purge rescans.
func (s *Store) Purge(mode cache.PurgeMode) error {
	now := s.now()
	var purged int
	for {
		purged = 0
		err := s.dbh.Update(func(txn *badger.Txn) error {
			iopts := badger.DefaultIteratorOptions
			iopts.PrefetchValues = mode == cache.PurgeExpired
			it := txn.NewIterator(iopts)
			defer it.Close()
			var removals [][]byte
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				if mode == cache.PurgeExpired {
					var expired bool
					err := item.Value(func(v []byte) error {
						meta, err := entry.ReadMeta(v)
						if err != nil {
							logger.WarnOnce("purge.decode."+string(item.Key()),
								"removing undecodable disk cache record",
								logging.Pairs{"cacheName": s.Name, "key": string(item.Key()), "error": err})
							expired = true
							return nil
						}
						expired = now.Sub(meta.InsertedAt) >= s.PurgeAfter
						return nil
					})
					if err != nil {
						return err
					}
					if !expired {
						continue
					}
				}
				removals = append(removals, item.KeyCopy(nil))
			}
			for _, k := range removals {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			purged = len(removals)
			return nil
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			metrics.ObserveCacheEvent(s.Name, tier, "error", "purge")
			return cache.NewIOError("purge", "", err)
		}
		break
	}

	metrics.ObserveCacheEvent(s.Name, tier, "purge", mode.String())
	logger.Debug("disk cache purge completed",
		logging.Pairs{"cacheName": s.Name, "mode": mode, "purged": purged})
	return nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s.dbh == nil {
		return nil
	}
	return s.dbh.Close()
}
