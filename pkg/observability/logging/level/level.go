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

// Package level describes the supported logging levels
package level

import "strings"

// Level is a logging level expressed as its lowercase name
type Level string

// ID is the numeric identifier of a logging level, ordered by severity
type ID int

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
	Fatal Level = "fatal"
)

const (
	DebugID = ID(iota + 1)
	InfoID
	WarnID
	ErrorID
	FatalID
)

var names = map[Level]ID{
	Debug: DebugID,
	Info:  InfoID,
	Warn:  WarnID,
	Error: ErrorID,
	Fatal: FatalID,
}

// GetID returns the ID for the provided Level, or 0 if the Level is unknown
func GetID(logLevel Level) ID {
	if id, ok := names[Level(strings.ToLower(string(logLevel)))]; ok {
		return id
	}
	return 0
}
