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

package util

import "goarrg.com/debug"

/*
NoCopy guards values that are only valid behind the pointer they were created at, such as the graph, a
frame or a bindless array. Check aborts when the value was copied or is used after Close. A frame is
closed when Execute returns, so a stale *Frame cannot be executed twice.
*/
type NoCopy struct {
	addr  *NoCopy
	owner string
}

// Init arms the guard, owner names the guarded value in abort messages.
func (n *NoCopy) Init(owner string) {
	if n.addr != nil {
		abort("%s initialized twice", owner)
	}
	n.addr = n
	n.owner = owner
}

func (n *NoCopy) Check() {
	if n.addr == n {
		return
	}
	owner := n.owner
	if owner == "" {
		owner = "zero value"
	}
	if n.addr == nil {
		abort("%s used before Init or after it was closed:\n%s", owner, debug.StackTrace(0))
	}
	abort("%s copied by value:\n%s", owner, debug.StackTrace(0))
}

func (n *NoCopy) Alive() bool {
	return n.addr == n
}

func (n *NoCopy) Close() {
	n.addr = nil
}

// Lock and Unlock let vet's copylocks check flag copies.
func (*NoCopy) Lock()   {}
func (*NoCopy) Unlock() {}
