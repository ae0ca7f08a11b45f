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

package cache

import "errors"

// IOError wraps a storage-medium fault encountered by a disk-tier store.
// It is never returned for a simple key miss (that is ErrKNF), so callers
// can treat a persistent-store outage differently from a genuine miss.
type IOError struct {
	// Op is the store operation that faulted ("store", "retrieve", ...)
	Op string
	// Key is the cache key in play, empty for whole-store operations
	Key string
	// Err is the underlying storage error
	Err error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return "cache " + e.Op + ": " + e.Err.Error()
	}
	return "cache " + e.Op + " [" + e.Key + "]: " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError returns an IOError wrapping err, or nil when err is nil
func NewIOError(op, cacheKey string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Key: cacheKey, Err: err}
}

// IsIOError indicates whether err is or wraps an IOError
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
