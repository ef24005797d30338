// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package value

import (
	"errors"
	"strings"

	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// ErrorList accumulates per-leaf codec failures so a conversion over a deep
// structure reports every mismatch, not just the first one encountered.
type ErrorList []error

// Add records a failure at the given structural path ("" for the root).
func (l *ErrorList) Add(path, msg string) {
	if path != "" {
		msg = path + ": " + msg
	}
	*l = append(*l, golemerr.ValueMismatch(msg))
}

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes errors.Is(list, golemerr target) work against any member, so
// callers can keep matching on golemerr.TypeValueMismatch without caring
// whether one leaf failed or many.
func (l ErrorList) Is(target error) bool {
	for _, err := range l {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
