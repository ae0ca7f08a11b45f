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

// Package cache defines the Pixcache store interfaces and provides
// general cache functionality
package cache

import (
	"errors"
	"strconv"

	"github.com/pixcache/pixcache/pkg/cache/status"
)

// ErrKNF represents the error "key not found in cache"
var ErrKNF = errors.New("key not found in cache")

// PurgeMode selects which entries a disk-tier Purge removes
type PurgeMode int

const (
	// PurgeExpired removes entries whose age has reached the configured TTL
	PurgeExpired = PurgeMode(iota)
	// PurgeAll removes every entry regardless of age
	PurgeAll
)

var purgeModeNames = map[PurgeMode]string{
	PurgeExpired: "expired",
	PurgeAll:     "all",
}

func (m PurgeMode) String() string {
	if v, ok := purgeModeNames[m]; ok {
		return v
	}
	return strconv.Itoa(int(m))
}

// Store is the interface for the supported disk-tier caching fabrics.
// When making new store providers, Retrieve() must return ErrKNF on a
// key miss and an IOError on a storage-medium fault, so that callers can
// distinguish a genuine miss from an outage. The size return value is
// the byte size declared by the caller at Store() time, which may differ
// from len(data) for payloads whose in-memory representation is larger
// than their serialized form.
type Store interface {
	Connect() error
	Store(cacheKey string, data []byte, size int64) error
	Retrieve(cacheKey string) ([]byte, int64, status.LookupStatus, error)
	Remove(cacheKey string) error
	Purge(mode PurgeMode) error
	Close() error
}
