/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rendergraph

import (
	"fmt"

	"goarrg.com/debug"
)

var logger = debug.NewLogger("rendergraph")

func SetLogLevel(l uint32) {
	logger.SetLevel(l)
}

func abort(format string, args ...any) {
	logger.EPrintf(format, args...)
	panic(fmt.Sprintf(format, args...))
}

// logOnce prints an error the first time a key is seen, used for failures that repeat every frame.
type logOnce struct {
	seen map[string]struct{}
}

func (l *logOnce) EPrintf(key string, format string, args ...any) {
	if l.seen == nil {
		l.seen = map[string]struct{}{}
	}
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	logger.EPrintf(format, args...)
}

func (l *logOnce) forget(key string) {
	delete(l.seen, key)
}
