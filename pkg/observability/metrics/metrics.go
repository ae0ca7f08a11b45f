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

// Package metrics implements prometheus metrics and exposes the metrics HTTP listener
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace = "pixcache"
	cacheSubsystem  = "cache"
)

// CacheObjectOperations is a Counter of operations (in # of objects) performed on a cache
var CacheObjectOperations *prometheus.CounterVec

// CacheByteOperations is a Counter of operations (in # of bytes) performed on a cache
var CacheByteOperations *prometheus.CounterVec

// CacheEvents is a Counter of events performed on a cache
var CacheEvents *prometheus.CounterVec

// CacheObjects is a Gauge representing the number of objects in a cache
var CacheObjects *prometheus.GaugeVec

// CacheBytes is a Gauge representing the number of bytes in a cache
var CacheBytes *prometheus.GaugeVec

// CacheMaxBytes is a Gauge for a cache's byte budget that triggers evictions
var CacheMaxBytes *prometheus.GaugeVec

func init() {

	CacheObjectOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_objects_total",
			Help:      "Count (in # of objects) of operations performed on a pixcache cache.",
		},
		[]string{"cache_name", "tier", "operation", "status"},
	)

	CacheByteOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_bytes_total",
			Help:      "Count (in bytes) of operations performed on a pixcache cache.",
		},
		[]string{"cache_name", "tier", "operation", "status"},
	)

	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "events_total",
			Help:      "Count of events performed on a pixcache cache.",
		},
		[]string{"cache_name", "tier", "event", "reason"},
	)

	CacheObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "usage_objects",
			Help:      "Number of objects resident in a pixcache cache.",
		},
		[]string{"cache_name", "tier"},
	)

	CacheBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "usage_bytes",
			Help:      "Number of bytes resident in a pixcache cache.",
		},
		[]string{"cache_name", "tier"},
	)

	CacheMaxBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "max_usage_bytes",
			Help:      "Byte budget of a pixcache cache tier that triggers evictions.",
		},
		[]string{"cache_name", "tier"},
	)

	prometheus.MustRegister(
		CacheObjectOperations,
		CacheByteOperations,
		CacheEvents,
		CacheObjects,
		CacheBytes,
		CacheMaxBytes,
	)
}

// Handler returns the HTTP handler serving the registered metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// ListenAndServe serves the metrics endpoint at address under /metrics
func ListenAndServe(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(address, mux)
}
