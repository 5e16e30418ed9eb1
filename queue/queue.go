// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue implements the bounded FIFO of queued move targets that
// decouples HTTP request handling from the motion scheduler.
package queue

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrFull is returned by EnqueueMany when appending the given points
// would push the queue past its capacity; none of the points are
// enqueued in that case.
var ErrFull = errors.New("queue: would exceed capacity")

// Point is one submitted target: either explicit string lengths or a
// Cartesian point, resolved against machine geometry by the caller.
// Exactly one of (X,Y) or (L1,L2) is meaningful, selected by HasLengths.
type Point struct {
	X, Y        float64
	L1, L2      float64
	HasLengths  bool
	PenDown     bool
	SpeedSteps  int // requested steps/second; 0 means "use default"
}

// Queue is a bounded FIFO guarded by a single lock that also owns the
// "executing" and "end of job" flags, matching the reference scheduler's
// rule that queue contents and these two flags are read and written
// together as one critical section.
type Queue struct {
	mu         sync.Mutex
	points     []Point
	capacity   int
	executing  bool
	endOfJob   bool
}

// New creates an empty queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// EnqueueMany appends points atomically, all or nothing: if the
// combined size would exceed capacity, no point is enqueued and
// ErrFull is returned. endOfJob, if true, sets the end-of-job flag
// regardless of whether any points were appended (a final, empty batch
// is a valid way to mark a job done).
func (q *Queue) EnqueueMany(points []Point, endOfJob bool) (accepted int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.points)+len(points) > q.capacity {
		return 0, ErrFull
	}
	q.points = append(q.points, points...)
	if endOfJob {
		q.endOfJob = true
	}
	if len(q.points) > 0 && !q.executing {
		q.executing = true
	}
	return len(points), nil
}

// TryPop pops the front point if the queue is executing and non-empty,
// per scheduler step 1. It returns ok=false otherwise, in which case
// the caller should sleep briefly rather than busy-loop.
func (q *Queue) TryPop() (p Point, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.executing || len(q.points) == 0 {
		return Point{}, false
	}
	p = q.points[0]
	q.points = q.points[1:]
	return p, true
}

// DrainIfDone implements scheduler step 9: if the queue is now empty
// and the end-of-job flag is set, transition out of executing and
// clear the flag; otherwise the queue stays executing, awaiting more
// batches from a still-streaming job.
func (q *Queue) DrainIfDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.points) == 0 && q.endOfJob {
		q.executing = false
		q.endOfJob = false
	}
}

// Reset clears the queue and both flags, used by /api/path with
// reset=true and by /api/cancel.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.points = nil
	q.executing = false
	q.endOfJob = false
}

// StopExecuting clears the executing and end-of-job flags and discards
// every queued point, used by the scheduler when a move is cancelled,
// the pulse engine fails, or a queued point cannot be resolved.
func (q *Queue) StopExecuting() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.executing = false
	q.endOfJob = false
	q.points = nil
}

// Size returns the current number of queued points.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.points)
}

// Executing reports whether the scheduler should keep popping.
func (q *Queue) Executing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.executing
}

// Snapshot returns the queue size and executing flag together, for
// status reporting that wants a consistent pair.
func (q *Queue) Snapshot() (size int, executing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.points), q.executing
}
