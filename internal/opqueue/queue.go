// Copyright 2026 The Patchworkfs Authors.
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

// Package opqueue is the bounded FIFO queue (C6) connecting the recorder
// (producer) to the VCS translator (consumer). One mutex guards the deque
// and a capacity field; a condition variable wakes a blocked consumer on
// push (spec.md §4.6).
package opqueue

import (
	"container/list"
	"sync"

	"github.com/patchworkfs/patchworkfs/internal/opcode"
)

// DefaultCapacity is the soft queue capacity used when none is configured
// (spec.md §3).
const DefaultCapacity = 10_000

// Queue is a thread-safe, bounded FIFO of opcodes. The zero value is not
// usable; construct with New or NewWithCapacity.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    *list.List
	capacity int
}

// New builds a Queue with DefaultCapacity.
func New() *Queue {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity builds a Queue with the given soft capacity. The capacity
// bounds TryPush only; Push always succeeds, allowing temporary overflow
// when a caller has decided to force a write through regardless.
func NewWithCapacity(capacity int) *Queue {
	q := &Queue{
		items:    list.New(),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// TryPush pushes op onto the queue unless it is at capacity, in which case
// it returns the rejected opcode and false so the caller can decide whether
// to drop, retry, or fall back to Push.
func (q *Queue) TryPush(op opcode.Opcode) (opcode.Opcode, bool) {
	q.mu.Lock()
	if q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return op, false
	}
	q.items.PushBack(op)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return opcode.Opcode{}, true
}

// Push pushes op onto the queue unconditionally, even over capacity.
func (q *Queue) Push(op opcode.Opcode) {
	q.mu.Lock()
	q.items.PushBack(op)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// TryPop removes and returns the oldest opcode, or false if the queue is
// empty.
func (q *Queue) TryPop() (opcode.Opcode, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popFrontLocked()
}

// Pop blocks until an opcode is available, then removes and returns it.
func (q *Queue) Pop() opcode.Opcode {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 {
		q.notEmpty.Wait()
	}
	op, _ := q.popFrontLocked()
	return op
}

func (q *Queue) popFrontLocked() (opcode.Opcode, bool) {
	front := q.items.Front()
	if front == nil {
		return opcode.Opcode{}, false
	}
	q.items.Remove(front)
	return front.Value.(opcode.Opcode), true
}

// Drain removes and returns every opcode currently queued, leaving the
// queue empty. Used by the translator at shutdown to flush remaining work.
func (q *Queue) Drain() []opcode.Opcode {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]opcode.Opcode, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(opcode.Opcode))
	}
	q.items.Init()
	return out
}

// PeekAll returns a snapshot of every queued opcode without removing them.
// Used by the operational queue-dump tool (SPEC_FULL.md §C.2).
func (q *Queue) PeekAll() []opcode.Opcode {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]opcode.Opcode, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(opcode.Opcode))
	}
	return out
}

// IsEmpty reports whether the queue currently holds no opcodes.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len() == 0
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Capacity returns the configured soft capacity.
func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Sender is a narrow producer handle onto a Queue, shareable across the
// observer(s) that feed it without exposing Pop/Drain.
type Sender struct {
	q *Queue
}

// NewSender wraps q for producer use.
func NewSender(q *Queue) Sender {
	return Sender{q: q}
}

// TrySend is Queue.TryPush through the sender handle.
func (s Sender) TrySend(op opcode.Opcode) (opcode.Opcode, bool) {
	return s.q.TryPush(op)
}

// Send is Queue.Push through the sender handle.
func (s Sender) Send(op opcode.Opcode) {
	s.q.Push(op)
}

// IsEmpty is Queue.IsEmpty through the sender handle.
func (s Sender) IsEmpty() bool {
	return s.q.IsEmpty()
}

// Len is Queue.Len through the sender handle.
func (s Sender) Len() int {
	return s.q.Len()
}
