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

// Package logging provides a structured key=value logger for
// application-wide use
package logging

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pixcache/pixcache/pkg/observability/logging/level"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	_ Logger    = &logger{}
	_ io.Writer = &logger{}
)

// Logger describes the logging behaviors
type Logger interface {
	SetLogLevel(level.Level)
	Level() level.Level
	Close()
	//
	Log(logLevel level.Level, event string, detail Pairs)
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)
	//
	WarnOnce(key, event string, detail Pairs) bool
}

// Pairs represents a key=value pair that helps to describe a log event
type Pairs map[string]any

// FileLogger returns a Logger that writes to the provided log file,
// rotating it as it grows
func FileLogger(logFile string, logLevel level.Level) Logger {
	l := &logger{
		writer: &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    256, // megabytes
			MaxBackups: 80,
			MaxAge:     7, // days
			Compress:   true,
		},
		now: time.Now,
	}
	if c, ok := l.writer.(io.Closer); ok && c != nil {
		l.closer = c
	}
	l.SetLogLevel(logLevel)
	return l
}

// StreamLogger returns a Logger that writes to the provided io.Writer
func StreamLogger(w io.Writer, logLevel level.Level) Logger {
	l := &logger{
		writer: w,
		now:    time.Now,
	}
	if c, ok := l.writer.(io.Closer); ok && c != nil {
		l.closer = c
	}
	l.SetLogLevel(logLevel)
	return l
}

// ConsoleLogger returns a Logger that writes to standard output
func ConsoleLogger(logLevel level.Level) Logger {
	l := &logger{
		writer: os.Stdout,
		now:    time.Now,
	}
	l.SetLogLevel(logLevel)
	return l
}

// NoopLogger returns a Logger that discards all events
func NoopLogger() Logger {
	return &logger{
		levelID: level.InfoID,
		level:   level.Info,
		now:     time.Now,
	}
}

type logger struct {
	level          level.Level
	levelID        level.ID
	writer         io.Writer
	closer         io.Closer
	mtx            sync.Mutex
	onceRanEntries sync.Map
	now            func() time.Time
}

func (l *logger) Write(b []byte) (int, error) {
	if l.writer == nil {
		return 0, nil
	}
	return l.writer.Write(b)
}

func (l *logger) SetLogLevel(logLevel level.Level) {
	id := level.GetID(logLevel)
	if id == 0 {
		l.WarnOnce("loglevel."+string(logLevel),
			"unknown log level; using INFO",
			Pairs{"providedLevel": logLevel})
		logLevel = level.Info
		id = level.InfoID
	}
	l.level = logLevel
	l.levelID = id
}

func (l *logger) Level() level.Level {
	return l.level
}

func (l *logger) Log(logLevel level.Level, event string, detail Pairs) {
	lid := level.GetID(logLevel)
	if lid == 0 || lid < l.levelID {
		return
	}
	l.log(logLevel, event, detail)
}

func (l *logger) logConditionally(logLevel level.Level, levelID level.ID, event string, detail Pairs) {
	if l.levelID > levelID {
		return
	}
	l.log(logLevel, event, detail)
}

func (l *logger) Debug(event string, detail Pairs) {
	l.logConditionally(level.Debug, level.DebugID, event, detail)
}

func (l *logger) Info(event string, detail Pairs) {
	l.logConditionally(level.Info, level.InfoID, event, detail)
}

func (l *logger) Warn(event string, detail Pairs) {
	l.logConditionally(level.Warn, level.WarnID, event, detail)
}

func (l *logger) Error(event string, detail Pairs) {
	l.logConditionally(level.Error, level.ErrorID, event, detail)
}

func (l *logger) Fatal(code int, event string, detail Pairs) {
	l.log(level.Fatal, event, detail)
	if code < 0 {
		// tests will send a -1 code to avoid exiting during the test
		return
	}
	if code == 0 {
		code = 1
	}
	os.Exit(code)
}

// WarnOnce logs the event at warn level only the first time key is seen
func (l *logger) WarnOnce(key, event string, detail Pairs) bool {
	if level.WarnID < l.levelID || l.writer == nil {
		return false
	}
	key = string(level.Warn) + "." + key
	if _, ok := l.onceRanEntries.Load(key); ok {
		return false
	}
	_, loaded := l.onceRanEntries.LoadOrStore(key, true)
	if !loaded {
		l.log(level.Warn, event, detail)
	}
	return !loaded
}

const (
	space   = " "
	equal   = "="
	newline = "\n"
)

type item struct {
	key string
	val string
}

func (l *logger) log(logLevel level.Level, event string, detail Pairs) {
	if l.writer == nil {
		return
	}
	ts := l.now()
	if strings.HasPrefix(event, space) || strings.HasSuffix(event, space) {
		event = strings.TrimSpace(event)
	}

	logLine := []byte(
		"time=" + ts.UTC().Format(time.RFC3339Nano) + space +
			"app=pixcache" + space +
			"level=" + string(logLevel) + space +
			"event=" + quoteAsNeeded(event),
	)

	if len(detail) > 0 {
		keyPairs := make([]item, 0, len(detail))
		for k, v := range detail {
			var s string
			switch t := v.(type) {
			case string:
				s = quoteAsNeeded(t)
			case fmt.Stringer:
				s = quoteAsNeeded(t.String())
			case error:
				s = quoteAsNeeded(t.Error())
			default:
				s = fmt.Sprintf("%v", v)
			}
			keyPairs = append(keyPairs, item{k, s})
		}
		slices.SortFunc(keyPairs, func(a, b item) int {
			return cmp.Compare(a.key, b.key)
		})
		for _, kp := range keyPairs {
			logLine = append(logLine, []byte(space+kp.key+equal+kp.val)...)
		}
	}
	l.mtx.Lock()
	l.writer.Write(append(logLine, []byte(newline)...))
	l.mtx.Unlock()
}

func quoteAsNeeded(input string) string {
	if !strings.Contains(input, space) {
		return input
	}
	return `"` + strings.ReplaceAll(input, `"`, `\"`) + `"`
}

func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}
