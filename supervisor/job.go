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

// Package supervisor mediates between a designer client and the
// device: it batches a full job into fixed-size /api/path submissions,
// tracks job lifecycle as an explicit state machine, polls device
// status, and retries transient failures with backoff.
package supervisor

import "sync"

// Status is one state of a job's lifecycle.
type Status string

const (
	Pending    Status = "pending"
	Running    Status = "running"
	Paused     Status = "paused"
	Cancelling Status = "cancelling"
	Cancelled  Status = "cancelled"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// transitions lists, for each status, the statuses it may legally move
// to. Terminal statuses (Cancelled, Completed, Failed) map to an empty
// set: the sole way to "change" them is the documented sticky-merge
// exception in setStatus, not a table entry.
var transitions = map[Status][]Status{
	Pending:    {Running, Cancelling, Failed},
	Running:    {Paused, Cancelling, Completed, Failed},
	Paused:     {Running, Cancelling},
	Cancelling: {Cancelled, Failed},
	Cancelled:  {},
	Completed:  {},
	Failed:     {},
}

func isTerminal(s Status) bool {
	return s == Cancelled || s == Completed || s == Failed
}

func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ControllerSnapshot is the cached device status, as last seen by the
// status poller.
type ControllerSnapshot struct {
	Initialized bool
	XMM, YMM    float64
	PenDown     bool
	QueueSize   int
	IsExecuting bool
	FetchedAt   int64 // unix seconds
	Stale       bool
}

// Job is one logical drawing job: the unit the supervisor streams to
// the device in fixed-size batches.
type Job struct {
	ID string

	mu                sync.Mutex
	status            Status
	totalPoints       int
	sentPoints        int
	totalBatches      int
	sentBatches       int
	startedAt         int64
	finishedAt        int64
	lastErr           string
	paused            bool
	controllerStatus  *ControllerSnapshot
}

func newJob(id string, totalPoints, totalBatches int, startedAt int64) *Job {
	return &Job{
		ID:           id,
		status:       Pending,
		totalPoints:  totalPoints,
		totalBatches: totalBatches,
		startedAt:    startedAt,
	}
}

// setStatus applies a transition if legal. If the job is already in a
// terminal status, the call is a silent no-op and returns false: per
// spec, terminal statuses are sticky and further writes are ignored
// rather than erroring.
func (j *Job) setStatus(to Status) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isTerminal(j.status) {
		return false
	}
	if !canTransition(j.status, to) {
		return false
	}
	j.status = to
	return true
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) addSent(points int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if isTerminal(j.status) {
		return
	}
	j.sentPoints += points
	j.sentBatches++
}

func (j *Job) setFinished(at int64, lastErr string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finishedAt = at
	if lastErr != "" {
		j.lastErr = lastErr
	}
}

func (j *Job) setControllerStatus(snap *ControllerSnapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.controllerStatus = snap
}

// Snapshot returns a consistent copy of every field, for rendering the
// job envelope.
type Snapshot struct {
	ID               string
	Status           Status
	TotalPoints      int
	SentPoints       int
	TotalBatches     int
	SentBatches      int
	StartedAt        int64
	FinishedAt       int64
	LastError        string
	Paused           bool
	ControllerStatus *ControllerSnapshot
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:               j.ID,
		Status:           j.status,
		TotalPoints:      j.totalPoints,
		SentPoints:       j.sentPoints,
		TotalBatches:     j.totalBatches,
		SentBatches:      j.sentBatches,
		StartedAt:        j.startedAt,
		FinishedAt:       j.finishedAt,
		LastError:        j.lastErr,
		Paused:           j.status == Paused,
		ControllerStatus: j.controllerStatus,
	}
}
