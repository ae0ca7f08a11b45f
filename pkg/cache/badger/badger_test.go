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

package badger

import (
	"bytes"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/status"
	"github.com/pixcache/pixcache/pkg/config"
	"github.com/pixcache/pixcache/pkg/observability/logging"
	"github.com/pixcache/pixcache/pkg/observability/logging/logger"
)

const cacheKey = "cacheKey"

func init() {
	logger.SetLogger(logging.NoopLogger())
}

func newTestStore(t *testing.T, mutate func(*config.Config)) *Store {
	cfg := config.New()
	cfg.DiskDirectory = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	s := New(t.Name(), cfg)
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRetrieveRemove(t *testing.T) {
	s := newTestStore(t, nil)

	if err := s.Store(cacheKey, []byte("data"), 4096); err != nil {
		t.Error(err)
	}

	data, size, ls, err := s.Retrieve(cacheKey)
	if err != nil {
		t.Error(err)
	}
	if string(data) != "data" {
		t.Errorf("wanted \"%s\". got \"%s\"", "data", data)
	}
	if size != 4096 {
		t.Errorf("expected 4096 got %d", size)
	}
	if ls != status.LookupStatusHit {
		t.Errorf("expected %s got %s", status.LookupStatusHit, ls)
	}

	if err := s.Remove(cacheKey); err != nil {
		t.Error(err)
	}
	if _, _, ls, err := s.Retrieve(cacheKey); err != cache.ErrKNF || ls != status.LookupStatusKeyMiss {
		t.Errorf("expected key miss got %s (%v)", ls, err)
	}
}

func TestPurge(t *testing.T) {
	s := newTestStore(t, func(c *config.Config) { c.PurgeAfterSecs = 60 })

	t0 := time.Unix(1700000000, 0)
	s.now = func() time.Time { return t0 }
	s.Store("old", []byte("1"), 1)

	s.now = func() time.Time { return t0.Add(30 * time.Second) }
	s.Store("fresh", []byte("2"), 1)

	s.now = func() time.Time { return t0.Add(60 * time.Second) }
	if err := s.Purge(cache.PurgeExpired); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve("old"); err != cache.ErrKNF {
		t.Errorf("expected old purged got %v", err)
	}
	if _, _, _, err := s.Retrieve("fresh"); err != nil {
		t.Errorf("expected fresh resident got %v", err)
	}

	if err := s.Purge(cache.PurgeAll); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve("fresh"); err != cache.ErrKNF {
		t.Errorf("expected fresh purged got %v", err)
	}
}

func TestPurgeConcurrentStore(t *testing.T) {
	s := newTestStore(t, func(c *config.Config) { c.PurgeAfterSecs = 60 })

	t0 := time.Unix(1700000000, 0)
	s.now = func() time.Time { return t0 }
	for i := 0; i < 2048; i++ {
		if err := s.Store("old."+strconv.Itoa(i), []byte("1"), 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Store("K", []byte("stale"), 5); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return t0.Add(60 * time.Second) }
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Purge(cache.PurgeExpired); err != nil {
			t.Error(err)
		}
	}()
	if err := s.Store("K", []byte("new"), 3); err != nil {
		t.Error(err)
	}
	wg.Wait()

	// both serial orders keep the freshly-stored record: purge-then-put
	// removes only the stale one, put-then-purge finds it unexpired
	data, _, _, err := s.Retrieve("K")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("wanted %q got %q", "new", data)
	}
	if _, _, _, err := s.Retrieve("old.0"); err != cache.ErrKNF {
		t.Errorf("expected old.0 purged got %v", err)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	s := newTestStore(t, func(c *config.Config) { c.Compression = true })

	payload := bytes.Repeat([]byte("bitmapbitmap"), 512)
	if err := s.Store(cacheKey, payload, int64(len(payload))); err != nil {
		t.Fatal(err)
	}
	data, _, _, err := s.Retrieve(cacheKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("compressed payload did not round-trip")
	}
}
