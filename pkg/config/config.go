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

// Package config describes the construction contract of the cache
// engine: an immutable configuration value, validated once before any
// store is built and never re-entered afterward
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/pixcache/pixcache/pkg/cache/providers"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogName is the diagnostics label used when none is configured
	DefaultLogName = "pixcache"
	// DefaultProvider is the disk-tier provider used when none is configured
	DefaultProvider = "filesystem"
	// DefaultMemoryPercentage is the share of the memory ceiling granted
	// to the memory tier when no explicit byte budget is configured.
	// Values above 30 are not recommended for a typical application.
	DefaultMemoryPercentage = 15.0
	// DefaultPurgeAfterSecs is the disk entry TTL used when none is configured
	DefaultPurgeAfterSecs = 604800 // 7 days
	// MinPurgeAfterSecs is the minimum allowed disk entry TTL
	MinPurgeAfterSecs = 60
)

var (
	// ErrNoDiskDirectory indicates the mandatory disk directory was not set
	ErrNoDiskDirectory = errors.New("disk cache directory not set")
	// ErrTrailingSeparator indicates the disk directory has a trailing path separator
	ErrTrailingSeparator = errors.New("disk cache directory must have no trailing separator")
	// ErrInvalidProvider indicates an unknown disk-tier provider name
	ErrInvalidProvider = errors.New("invalid disk cache provider")
	// ErrInvalidMemoryBudget indicates a non-positive explicit memory budget
	ErrInvalidMemoryBudget = errors.New("memory budget must be a positive byte count")
	// ErrInvalidMemoryPercentage indicates a memory percentage outside (0,100]
	ErrInvalidMemoryPercentage = errors.New("memory percentage must be in (0,100]")
	// ErrNoMemoryCeiling indicates a derived budget was requested without a ceiling
	ErrNoMemoryCeiling = errors.New("memory ceiling required to derive the memory budget")
	// ErrPurgeAfterTooSmall indicates a TTL below the minimum floor
	ErrPurgeAfterTooSmall = errors.New("purge-after is below the minimum floor")
)

// Config collects the knobs of a cache engine instance. It is consumed
// exactly once at engine construction; mutating it afterward has no
// effect on a built engine.
type Config struct {
	// Name is a free-form label used in diagnostics only
	Name string `yaml:"name,omitempty"`
	// Provider selects the disk-tier store: "filesystem", "bbolt" or "badger"
	Provider string `yaml:"provider,omitempty"`
	// DiskDirectory is the directory owned by the disk tier. Mandatory.
	// Keep it consistent at each instantiation or the prior disk cache
	// contents become unreachable.
	DiskDirectory string `yaml:"disk_directory,omitempty"`
	// MemoryBudgetBytes bounds the memory tier. When 0, the budget is
	// derived as MemoryCeilingBytes * MemoryPercentage / 100.
	MemoryBudgetBytes int64 `yaml:"memory_budget_bytes,omitempty"`
	// MemoryCeilingBytes is the externally-supplied available-memory
	// signal the derived budget is computed against. The engine never
	// queries the host for it.
	MemoryCeilingBytes int64 `yaml:"memory_ceiling_bytes,omitempty"`
	// MemoryPercentage is the share of MemoryCeilingBytes granted to the
	// memory tier when MemoryBudgetBytes is 0
	MemoryPercentage float64 `yaml:"memory_percentage,omitempty"`
	// PurgeAfterSecs is the minimum age in seconds before a disk entry
	// becomes eligible for expiry-based removal
	PurgeAfterSecs int64 `yaml:"purge_after_secs,omitempty"`
	// Compression snappy-compresses disk-tier payloads when true
	Compression bool `yaml:"compression,omitempty"`
}

// New returns a Config with the default settings. DiskDirectory has no
// default and must be supplied by the caller.
func New() *Config {
	return &Config{
		Name:             DefaultLogName,
		Provider:         DefaultProvider,
		MemoryPercentage: DefaultMemoryPercentage,
		PurgeAfterSecs:   DefaultPurgeAfterSecs,
	}
}

// Load reads a YAML file into a Config over the default settings
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := New()
	if err = yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clone returns an exact copy of the Config
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Validate checks the Config against the construction contract. It is
// invoked by the engine before any store is built.
func (c *Config) Validate() error {
	if c.DiskDirectory == "" {
		return ErrNoDiskDirectory
	}
	if strings.HasSuffix(c.DiskDirectory, "/") || strings.HasSuffix(c.DiskDirectory, string(os.PathSeparator)) {
		return ErrTrailingSeparator
	}
	if _, ok := providers.New(c.Provider); !ok {
		return ErrInvalidProvider
	}
	if c.MemoryBudgetBytes < 0 {
		return ErrInvalidMemoryBudget
	}
	if c.MemoryBudgetBytes == 0 {
		if c.MemoryPercentage <= 0 || c.MemoryPercentage > 100 {
			return ErrInvalidMemoryPercentage
		}
		if c.MemoryCeilingBytes <= 0 {
			return ErrNoMemoryCeiling
		}
	}
	if c.PurgeAfterSecs < MinPurgeAfterSecs {
		return ErrPurgeAfterTooSmall
	}
	return nil
}

// Budget resolves the memory tier byte budget, deriving it from the
// ceiling and percentage when no explicit budget is set
func (c *Config) Budget() int64 {
	if c.MemoryBudgetBytes > 0 {
		return c.MemoryBudgetBytes
	}
	return int64(float64(c.MemoryCeilingBytes) / 100.0 * c.MemoryPercentage)
}

// PurgeAfter returns the disk entry TTL as a time.Duration
func (c *Config) PurgeAfter() time.Duration {
	return time.Duration(c.PurgeAfterSecs) * time.Second
}
