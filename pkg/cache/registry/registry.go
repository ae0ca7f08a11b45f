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

// Package registry maps provider names to disk-tier store constructors
package registry

import (
	"github.com/pixcache/pixcache/pkg/cache"
	"github.com/pixcache/pixcache/pkg/cache/badger"
	"github.com/pixcache/pixcache/pkg/cache/bbolt"
	"github.com/pixcache/pixcache/pkg/cache/filesystem"
	"github.com/pixcache/pixcache/pkg/cache/providers"
	"github.com/pixcache/pixcache/pkg/config"
)

// NewDiskStore returns an unconnected disk-tier store for the provider
// named in the configuration
func NewDiskStore(cfg *config.Config) (cache.Store, error) {
	p, ok := providers.New(cfg.Provider)
	if !ok {
		return nil, config.ErrInvalidProvider
	}
	switch p {
	case providers.BBolt:
		return bbolt.New(cfg.Name, cfg), nil
	case providers.Badger:
		return badger.New(cfg.Name, cfg), nil
	default:
		return filesystem.New(cfg.Name, cfg), nil
	}
}
