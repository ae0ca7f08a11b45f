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

// Package bbolt is the bbolt implementation of the disk tier, storing
// all entry records in a single bucket of a database file inside the
// cache directory. bbolt transactions provide the durability and
// same-key consistency the disk-tier contract requires.
package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/entry"
	"github.com/pixcache/pixcache/pkg/cache/metrics"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/config"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"

	"github.com/klauspost/compress/snappy"
	"go.etcd.io/bbolt"
)

// Store implements the cache.Store interface
var _ cache.Store = &Store{}

const tier = "bbolt"

const (
	dbFileName = "pixcache.db"
	bucketName = "pixcache"
)

// Store describes a bbolt disk-tier store
type Store struct {
	Name        string
	Directory   string
	PurgeAfter  time.Duration
	Compression bool

	dbh *bbolt.DB
	now func() time.Time
}

// New returns a new bbolt Store for the provided configuration
func New(name string, cfg *config.Config) *Store {
	return &Store{
		Name:        name,
		Directory:   cfg.DiskDirectory,
		PurgeAfter:  cfg.PurgeAfter(),
		Compression: cfg.Compression,
		now:         time.Now,
	}
}

// Connect opens the database file inside the cache directory and ensures
// the entry bucket exists
func (s *Store) Connect() error {
	if err := os.MkdirAll(s.Directory, 0o755); err != nil {
		return cache.NewIOError("connect", "", err)
	}
	var err error
	s.dbh, err = bbolt.Open(filepath.Join(s.Directory, dbFileName), 0o644,
		&bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return cache.NewIOError("connect", "", err)
	}
	err = s.dbh.Update(func(tx *bbolt.Tx) error {
		_, err2 := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err2 != nil {
			return fmt.Errorf("create bucket: %w", err2)
		}
		return nil
	})
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

	err := s.dbh.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(cacheKey), b)
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
	err := s.dbh.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(cacheKey))
		if v == nil {
			return cache.ErrKNF
		}
		// the slice is only valid inside the transaction
		b = make([]byte, len(v))
		copy(b, v)
		return nil
	})
	if err == cache.ErrKNF {
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
	err := s.dbh.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(cacheKey))
	})
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "remove")
		return cache.NewIOError("remove", cacheKey, err)
	}
	metrics.ObserveCacheOperation(s.Name, tier, "del", "none", 0)
	return nil
}

// Purge deletes persisted entries per the provided mode inside a single
// write transaction, so a concurrent Store lands wholly before or after it
func (s *Store) Purge(mode cache.PurgeMode) error {
	now := s.now()
	var purged int
	err := s.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var removals [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if mode == cache.PurgeExpired {
				meta, err := entry.ReadMeta(v)
				if err == nil && now.Sub(meta.InsertedAt) < s.PurgeAfter {
					return nil
				}
				if err != nil {
					logger.WarnOnce("purge.decode."+string(k),
						"removing undecodable disk cache record",
						logging.Pairs{"cacheName": s.Name, "key": string(k), "error": err})
				}
			}
			key := make([]byte, len(k))
			copy(key, k)
			removals = append(removals, key)
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range removals {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(removals)
		return nil
	})
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "purge")
		return cache.NewIOError("purge", "", err)
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
