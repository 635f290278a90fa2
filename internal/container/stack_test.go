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

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack(t *testing.T) {
	var s Stack[int]
	assert.True(t, s.Empty())

	s.Push(1)
	s.Push(2)
	s.Push(3)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{1, 2, 3}, s.Data())

	assert.Equal(t, 3, s.Pop())
	assert.Equal(t, 2, s.Len())

	e, ok := s.PopFunc(func(i int) bool { return i == 1 })
	assert.True(t, ok)
	assert.Equal(t, 1, e)
	assert.Equal(t, []int{2}, s.Data())

	_, ok = s.PopFunc(func(i int) bool { return i == 42 })
	assert.False(t, ok)

	s.Clear()
	assert.True(t, s.Empty())
}
