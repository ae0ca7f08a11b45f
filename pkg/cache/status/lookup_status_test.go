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

package status

import "testing"

func TestLookupStatusString(t *testing.T) {
	tests := []struct {
		s        LookupStatus
		expected string
	}{
		{LookupStatusHit, "hit"},
		{LookupStatusKeyMiss, "kmiss"},
		{LookupStatusError, "error"},
		{LookupStatus(42), "42"},
	}
	for _, test := range tests {
		if v := test.s.String(); v != test.expected {
			t.Errorf("expected %s got %s", test.expected, v)
		}
	}
}
