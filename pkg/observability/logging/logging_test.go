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

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pixcache/pixcache/pkg/observability/logging/level"
)

func TestStreamLogger(t *testing.T) {
	var buf bytes.Buffer
	l := StreamLogger(&buf, level.Debug)
	l.(*logger).now = func() time.Time { return time.Unix(0, 0) }

	l.Info("test event", Pairs{"key": "value", "err": errors.New("an error"), "n": 7})
	out := buf.String()

	if !strings.Contains(out, "app=pixcache") {
		t.Errorf("expected app field in %q", out)
	}
	if !strings.Contains(out, "level=info") {
		t.Errorf("expected level field in %q", out)
	}
	if !strings.Contains(out, `event="test event"`) {
		t.Errorf("expected quoted event in %q", out)
	}
	// pairs are emitted in sorted key order
	if !strings.Contains(out, `err="an error" key=value n=7`) {
		t.Errorf("expected sorted pairs in %q", out)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := StreamLogger(&buf, level.Error)

	l.Debug("quiet", nil)
	l.Info("quiet", nil)
	l.Warn("quiet", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output got %q", buf.String())
	}

	l.Error("loud", nil)
	if buf.Len() == 0 {
		t.Error("expected error output")
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := StreamLogger(&buf, level.Level("shout"))
	if l.Level() != level.Info {
		t.Errorf("expected %s got %s", level.Info, l.Level())
	}
	if !strings.Contains(buf.String(), "unknown log level") {
		t.Errorf("expected warning in %q", buf.String())
	}
}

func TestWarnOnce(t *testing.T) {
	var buf bytes.Buffer
	l := StreamLogger(&buf, level.Info)

	if !l.WarnOnce("k1", "only once", nil) {
		t.Error("expected first WarnOnce to log")
	}
	if l.WarnOnce("k1", "only once", nil) {
		t.Error("expected second WarnOnce to be suppressed")
	}
	if n := strings.Count(buf.String(), "only once"); n != 1 {
		t.Errorf("expected 1 got %d", n)
	}
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	l.Info("nothing happens", Pairs{"a": 1})
	l.Fatal(-1, "still nothing", nil)
	l.Close()
}

func TestFatalNegativeCode(t *testing.T) {
	var buf bytes.Buffer
	l := StreamLogger(&buf, level.Info)
	l.Fatal(-1, "fatal event", nil)
	if !strings.Contains(buf.String(), "level=fatal") {
		t.Errorf("expected fatal output got %q", buf.String())
	}
}
