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

package filesystem

import (
	"bytes"
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
	return s
}

func TestStoreRetrieve(t *testing.T) {
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
}

func TestStoreEmptyKey(t *testing.T) {
	s := newTestStore(t, nil)
	if err := s.Store("", []byte("data"), 4); err == nil {
		t.Error("expected error for empty cacheKey")
	}
}

func TestRetrieveMiss(t *testing.T) {
	s := newTestStore(t, nil)

	_, _, ls, err := s.Retrieve("nonexistent")
	if err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}
	if ls != status.LookupStatusKeyMiss {
		t.Errorf("expected %s got %s", status.LookupStatusKeyMiss, ls)
	}
	if cache.IsIOError(err) {
		t.Error("a key miss must not be an IOError")
	}
}

func TestDurabilityAcrossInstances(t *testing.T) {
	cfg := config.New()
	cfg.DiskDirectory = t.TempDir()

	s := New(t.Name(), cfg)
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	if err := s.Store(cacheKey, payload, int64(len(payload))); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// a fresh engine instance over the same directory sees the entry
	s2 := New(t.Name(), cfg)
	if err := s2.Connect(); err != nil {
		t.Fatal(err)
	}
	data, _, _, err := s2.Retrieve(cacheKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("wanted %v got %v", payload, data)
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

func TestRemove(t *testing.T) {
	s := newTestStore(t, nil)

	if err := s.Store(cacheKey, []byte("data"), 4); err != nil {
		t.Error(err)
	}
	if err := s.Remove(cacheKey); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve(cacheKey); err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}

	// removing an absent key is not an error
	if err := s.Remove("nonexistent"); err != nil {
		t.Error(err)
	}
}

func TestPurgeExpiredBoundary(t *testing.T) {
	s := newTestStore(t, func(c *config.Config) { c.PurgeAfterSecs = 60 })

	t0 := time.Unix(1700000000, 0)
	s.now = func() time.Time { return t0 }
	if err := s.Store("K", []byte("data"), 4); err != nil {
		t.Fatal(err)
	}

	// at t0+59s the entry has not reached its TTL and must survive
	s.now = func() time.Time { return t0.Add(59 * time.Second) }
	if err := s.Purge(cache.PurgeExpired); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve("K"); err != nil {
		t.Errorf("expected K resident got %v", err)
	}

	// at exactly t0+60s it is purgeable
	s.now = func() time.Time { return t0.Add(60 * time.Second) }
	if err := s.Purge(cache.PurgeExpired); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve("K"); err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}
}

func TestPurgeAll(t *testing.T) {
	s := newTestStore(t, nil)

	s.Store("a", []byte("1"), 1)
	s.Store("b", []byte("2"), 1)

	if err := s.Purge(cache.PurgeAll); err != nil {
		t.Error(err)
	}
	for _, k := range []string{"a", "b"} {
		if _, _, _, err := s.Retrieve(k); err != cache.ErrKNF {
			t.Errorf("expected %v for %s got %v", cache.ErrKNF, k, err)
		}
	}
}

func TestPurgeExpiredSkipsFresh(t *testing.T) {
	s := newTestStore(t, func(c *config.Config) { c.PurgeAfterSecs = 60 })

	t0 := time.Unix(1700000000, 0)
	s.now = func() time.Time { return t0 }
	s.Store("old", []byte("1"), 1)

	s.now = func() time.Time { return t0.Add(120 * time.Second) }
	s.Store("fresh", []byte("2"), 1)

	if err := s.Purge(cache.PurgeExpired); err != nil {
		t.Error(err)
	}
	if _, _, _, err := s.Retrieve("old"); err != cache.ErrKNF {
		t.Errorf("expected old purged got %v", err)
	}
	if _, _, _, err := s.Retrieve("fresh"); err != nil {
		t.Errorf("expected fresh resident got %v", err)
	}
}

func TestKeysCarryNoPathSemantics(t *testing.T) {
	s := newTestStore(t, nil)

	keys := []string{"http://example.com/img.png", `C:\img`, "../../escape", "dotted.key"}
	for i, k := range keys {
		if err := s.Store(k, []byte{byte(i)}, 1); err != nil {
			t.Fatal(err)
		}
	}
	for i, k := range keys {
		data, _, _, err := s.Retrieve(k)
		if err != nil {
			t.Fatalf("key %q: %v", k, err)
		}
		if len(data) != 1 || data[0] != byte(i) {
			t.Errorf("key %q: wrong payload %v", k, data)
		}
	}
}

func TestEscapedKeysDoNotCollide(t *testing.T) {
	s := newTestStore(t, nil)

	// "a~1b" must not map to the same record as the escaped form of "a/b"
	if err := s.Store("a~1b", []byte("tilde"), 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Store("a/b", []byte("slash"), 5); err != nil {
		t.Fatal(err)
	}
	data, _, _, err := s.Retrieve("a~1b")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tilde" {
		t.Errorf("wanted %q got %q", "tilde", data)
	}
	data, _, _, err = s.Retrieve("a/b")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "slash" {
		t.Errorf("wanted %q got %q", "slash", data)
	}
}

func TestConnectUnwritableDirectory(t *testing.T) {
	cfg := config.New()
	cfg.DiskDirectory = "/proc/pixcache-cannot-write-here"
	s := New(t.Name(), cfg)
	err := s.Connect()
	if err == nil {
		t.Fatal("expected error for unwritable directory")
	}
	if !cache.IsIOError(err) {
		t.Errorf("expected IOError got %v", err)
	}
}

func TestConcurrentSameKey(t *testing.T) {
	s := newTestStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 64)
			if err := s.Store(cacheKey, payload, 64); err != nil {
				t.Error(err)
			}
			data, _, _, err := s.Retrieve(cacheKey)
			if err != nil {
				t.Error(err)
				return
			}
			// the payload is always one writer's intact record, never torn
			if len(data) != 64 {
				t.Errorf("torn read: %d bytes", len(data))
				return
			}
			for _, b := range data[1:] {
				if b != data[0] {
					t.Error("torn read: mixed writer bytes")
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
