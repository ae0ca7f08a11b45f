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

// Package metrics provides helpers for observing cache operations
package metrics

import (
	gm "github.com/pixcache/pixcache/pkg/observability/metrics"
)

// ObserveCacheOperation increments counters as cache operations occur
func ObserveCacheOperation(cacheName, tier, operation, status string, bytes float64) {
	gm.CacheObjectOperations.WithLabelValues(cacheName, tier, operation, status).Inc()
	if bytes > 0 {
		gm.CacheByteOperations.WithLabelValues(cacheName, tier, operation, status).Add(bytes)
	}
}

// ObserveCacheMiss records a cache miss event
func ObserveCacheMiss(cacheName, tier string) {
	ObserveCacheOperation(cacheName, tier, "get", "miss", 0)
}

// ObserveCacheEvent increments counters as cache events occur
func ObserveCacheEvent(cacheName, tier, event, reason string) {
	gm.CacheEvents.WithLabelValues(cacheName, tier, event, reason).Inc()
}

// ObserveCacheSizeChange adjusts gauges as the cache size changes due to object operations
func ObserveCacheSizeChange(cacheName, tier string, byteCount, objectCount int64) {
	gm.CacheObjects.WithLabelValues(cacheName, tier).Set(float64(objectCount))
	gm.CacheBytes.WithLabelValues(cacheName, tier).Set(float64(byteCount))
}

// ObserveCacheMaxBytes records the configured byte budget of a cache tier
func ObserveCacheMaxBytes(cacheName, tier string, maxBytes int64) {
	gm.CacheMaxBytes.WithLabelValues(cacheName, tier).Set(float64(maxBytes))
}
