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

// Package filesystem is the filesystem implementation of the disk tier.
// Each cache entry is an individually addressable record file inside the
// single directory the store owns. Entries expire by fixed TTL and are
// removed only by explicit Purge calls; the store runs no timers.
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/entry"
	"github.com/pixcache/pixcache/pkg/cache/metrics"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/config"
	"github.com/pixcache/pixcache/pkg/locks"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"

	"github.com/klauspost/compress/snappy"
)

// Store implements the cache.Store interface
var _ cache.Store = &Store{}

const tier = "filesystem"

// recordSuffix marks the record files this store owns inside its directory
const recordSuffix = ".data"

var errNoCacheKey = errors.New("cacheKey required")

// Store describes a filesystem disk-tier store
type Store struct {
	Name        string
	Directory   string
	PurgeAfter  time.Duration
	Compression bool

	locker locks.NamedLocker
	now    func() time.Time
}

// New returns a new filesystem Store for the provided configuration
func New(name string, cfg *config.Config) *Store {
	return &Store{
		Name:        name,
		Directory:   cfg.DiskDirectory,
		PurgeAfter:  cfg.PurgeAfter(),
		Compression: cfg.Compression,
		locker:      locks.NewNamedLocker(),
		now:         time.Now,
	}
}

// Connect creates the cache directory and verifies it is writeable
func (s *Store) Connect() error {
	return makeDirectory(s.Directory)
}

// Store writes the entry for cacheKey with a fresh insertion timestamp.
// The record is durable on disk before Store returns successfully: it is
// written to a temporary file, synced, and renamed into place, so a
// concurrent Retrieve observes either the old or the new record.
func (s *Store) Store(cacheKey string, data []byte, size int64) error {
	if cacheKey == "" {
		return errNoCacheKey
	}

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

	base := recordName(cacheKey)
	nl, err := s.locker.Acquire(base)
	if err != nil {
		return err
	}
	defer nl.Release()

	if err = writeFileAtomic(filepath.Join(s.Directory, base), b); err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "store")
		return cache.NewIOError("store", cacheKey, err)
	}
	metrics.ObserveCacheOperation(s.Name, tier, "set", "none", float64(len(b)))
	return nil
}

// Retrieve reads and deserializes the persisted entry for cacheKey. It
// does not modify the entry's timestamp. A missing record is reported as
// cache.ErrKNF; a storage fault or corrupt record as an IOError.
func (s *Store) Retrieve(cacheKey string) ([]byte, int64, status.LookupStatus, error) {
	base := recordName(cacheKey)
	nl, err := s.locker.RAcquire(base)
	if err != nil {
		return nil, 0, status.LookupStatusError, err
	}
	defer nl.RRelease()

	b, err := os.ReadFile(filepath.Join(s.Directory, base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.ObserveCacheMiss(s.Name, tier)
			return nil, 0, status.LookupStatusKeyMiss, cache.ErrKNF
		}
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

// Remove deletes the persisted entry for cacheKey if present; a missing
// entry is not an error
func (s *Store) Remove(cacheKey string) error {
	base := recordName(cacheKey)
	nl, err := s.locker.Acquire(base)
	if err != nil {
		return err
	}
	defer nl.Release()

	if err := os.Remove(filepath.Join(s.Directory, base)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "remove")
		return cache.NewIOError("remove", cacheKey, err)
	}
	metrics.ObserveCacheOperation(s.Name, tier, "del", "none", 0)
	return nil
}

// Purge deletes persisted entries per the provided mode: every entry for
// PurgeAll, or only those whose age has reached the configured TTL for
// PurgeExpired. Purge runs only when invoked; each candidate is removed
// under its per-key lock so a concurrent Store on the same key observes
// one of the two serial orders.
func (s *Store) Purge(mode cache.PurgeMode) error {
	dirEntries, err := os.ReadDir(s.Directory)
	if err != nil {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "purge")
		return cache.NewIOError("purge", "", err)
	}

	now := s.now()
	var purged int
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), recordSuffix) {
			continue
		}
		removed, err := s.purgeOne(de.Name(), mode, now)
		if err != nil {
			return err
		}
		if removed {
			purged++
		}
	}

	metrics.ObserveCacheEvent(s.Name, tier, "purge", mode.String())
	logger.Debug("disk cache purge completed",
		logging.Pairs{"cacheName": s.Name, "mode": mode, "purged": purged})
	return nil
}

func (s *Store) purgeOne(base string, mode cache.PurgeMode, now time.Time) (bool, error) {
	nl, err := s.locker.Acquire(base)
	if err != nil {
		return false, err
	}
	defer nl.Release()

	path := filepath.Join(s.Directory, base)
	if mode == cache.PurgeExpired {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			// removed by a concurrent Remove; nothing to purge
			return false, nil
		}
		if err != nil {
			metrics.ObserveCacheEvent(s.Name, tier, "error", "purge")
			return false, cache.NewIOError("purge", "", err)
		}
		meta, err := entry.ReadMeta(b)
		if err != nil {
			// an unreadable record cannot outlive its TTL check
			logger.WarnOnce("purge.decode."+base,
				"removing undecodable disk cache record",
				logging.Pairs{"cacheName": s.Name, "file": base, "error": err})
		} else if now.Sub(meta.InsertedAt) < s.PurgeAfter {
			return false, nil
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.ObserveCacheEvent(s.Name, tier, "error", "purge")
		return false, cache.NewIOError("purge", "", err)
	}
	return true, nil
}

// Close is a no-op; the store holds no open handles between operations
func (s *Store) Close() error {
	return nil
}

// recordName maps a cache key to its record file name, escaping path
// metacharacters so keys carry no path semantics. The escape character
// is itself escaped so the mapping is collision-free.
func recordName(cacheKey string) string {
	return strings.NewReplacer("~", "~0", "/", "~1", "\\", "~2", "..", "~3", ".", "~4").
		Replace(cacheKey) + recordSuffix
}

// writeFileAtomic writes data to a temporary file in the target's
// directory, syncs it, and renames it over the target
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// makeDirectory creates a directory on the filesystem and returns the
// error in the event of a failure
func makeDirectory(path string) error {
	err := os.MkdirAll(path, 0o755)
	if err == nil {
		// verify writability by attempting to touch a test file in the cache path
		tf := filepath.Join(path, ".test."+strconv.FormatInt(time.Now().Unix(), 10))
		err = os.WriteFile(tf, []byte(""), 0o600)
		if err == nil {
			os.Remove(tf)
		}
	}
	if err != nil {
		return cache.NewIOError("connect", "",
			errors.New("["+path+"] directory is not writeable by pixcache: "+err.Error()))
	}
	return nil
}
