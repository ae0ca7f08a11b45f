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

// Package providers enumerates the supported disk-tier store providers
package providers

import "strings"

// Provider enumerates the disk-tier store implementations
type Provider int

const (
	// Filesystem stores each cache entry as a file in the cache directory
	Filesystem = Provider(iota)
	// BBolt stores cache entries in a bbolt database file in the cache directory
	BBolt
	// Badger stores cache entries in a BadgerDB keyspace in the cache directory
	Badger
)

// Names is a map of Provider keyed by string name
var Names = map[string]Provider{
	"filesystem": Filesystem,
	"bbolt":      BBolt,
	"badger":     Badger,
}

// Values is a map of Provider names keyed by Provider value
var Values = func() map[Provider]string {
	m := make(map[Provider]string, len(Names))
	for k, v := range Names {
		m[v] = k
	}
	return m
}()

func (p Provider) String() string {
	if v, ok := Values[p]; ok {
		return v
	}
	return ""
}

// New returns the Provider for the given name, case-insensitively,
// and whether the name is a valid provider
func New(name string) (Provider, bool) {
	p, ok := Names[strings.ToLower(name)]
	return p, ok
}
