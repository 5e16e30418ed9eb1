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

package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrJobActive is returned by SendPath when a job is already pending,
// running, paused or cancelling: at most one job may be active at a
// time.
var ErrJobActive = errors.New("supervisor: a job is already active")

// ErrNoActiveJob is returned by Pause, Resume and Cancel when there is
// no job to act on.
var ErrNoActiveJob = errors.New("supervisor: no active job")

// ErrIllegalTransition is returned when Pause/Resume is requested from
// a status that cannot legally reach it (e.g. pausing a job that is
// still pending, or resuming one that is cancelling or finished).
// Pausing a paused job or resuming a running one is not an error.
var ErrIllegalTransition = errors.New("supervisor: illegal job transition")

const (
	pauseCheckInterval = 200 * time.Millisecond
	drainPollInterval  = 200 * time.Millisecond
	drainTimeout       = 30 * time.Second
)

// Config paces batching, retries and status polling.
type Config struct {
	BatchSize      int
	RequestTimeout time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration
	StaleAfter     time.Duration
	MaxRetries     uint64
}

// StartPosition declares the device's current physical pose, required
// on the first batch of any job submitted while the device is
// uninitialized (or whenever the caller wants to force a reset).
type StartPosition struct {
	X, Y    float64
	PenDown bool
}

// PathPoint is one point of a job, in the same shape the device
// accepts on /api/path.
type PathPoint struct {
	X, Y    float64
	PenDown bool
	Speed   int
}

// Supervisor batches and streams a job to a single device, tracks its
// lifecycle, and polls device status independently of job activity.
type Supervisor struct {
	client *Client
	cfg    Config

	mu  sync.Mutex
	job *Job

	statusMu   sync.Mutex
	lastStatus *ControllerSnapshot

	pollerStop chan struct{}
}

// New creates a Supervisor and starts its background status poller.
func New(client *Client, cfg Config) *Supervisor {
	s := &Supervisor{
		client:     client,
		cfg:        cfg,
		pollerStop: make(chan struct{}),
	}
	go s.pollStatus()
	return s
}

// Close stops the background status poller.
func (s *Supervisor) Close() {
	close(s.pollerStop)
}

// currentJob returns the active job, if any.
func (s *Supervisor) currentJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// SendPath starts a new job streaming points to the device in fixed-
// size batches. It rejects the request with ErrJobActive if a job is
// already pending, running, paused or cancelling, matching the "at
// most one active job" rule.
func (s *Supervisor) SendPath(points []PathPoint, start StartPosition, speed int) (*Job, error) {
	s.mu.Lock()
	if s.job != nil {
		switch s.job.Status() {
		case Pending, Running, Paused, Cancelling:
			s.mu.Unlock()
			return nil, ErrJobActive
		}
	}
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	totalBatches := (len(points) + batchSize - 1) / batchSize
	job := newJob(uuid.New().String(), len(points), totalBatches, time.Now().Unix())
	s.job = job
	s.mu.Unlock()

	go s.runJob(job, points, start, speed, batchSize)
	return job, nil
}

// Pause withholds the next chunk of the active job until Resume is
// called; a chunk already in flight completes naturally, matching the
// "pause granularity is one batch" rule.
func (s *Supervisor) Pause() error {
	job := s.currentJob()
	if job == nil {
		return ErrNoActiveJob
	}
	if !job.setStatus(Paused) {
		return ErrIllegalTransition
	}
	return nil
}

// Resume wakes a paused job's batch loop.
func (s *Supervisor) Resume() error {
	job := s.currentJob()
	if job == nil {
		return ErrNoActiveJob
	}
	if !job.setStatus(Running) {
		return ErrIllegalTransition
	}
	return nil
}

// Cancel moves the active job to cancelling, asks the device to stop,
// and finalizes the job as cancelled or failed depending on whether
// the device acknowledged in time.
func (s *Supervisor) Cancel() error {
	job := s.currentJob()
	if job == nil {
		return ErrNoActiveJob
	}
	if !job.setStatus(Cancelling) {
		return nil // already terminal: sticky, not an error
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	err := s.client.Cancel(ctx)
	now := time.Now().Unix()
	if err != nil {
		job.setStatus(Failed)
		job.setFinished(now, err.Error())
		return err
	}
	job.setStatus(Cancelled)
	job.setFinished(now, "")
	return nil
}

// CurrentSnapshot returns the active job's envelope, with the cached
// controller status's staleness computed relative to now.
func (s *Supervisor) CurrentSnapshot() (Snapshot, bool) {
	job := s.currentJob()
	if job == nil {
		return Snapshot{}, false
	}
	snap := job.Snapshot()
	s.annotateStale(&snap)
	return snap, true
}

func (s *Supervisor) annotateStale(snap *Snapshot) {
	if snap.ControllerStatus == nil {
		return
	}
	age := time.Now().Unix() - snap.ControllerStatus.FetchedAt
	snap.ControllerStatus.Stale = s.cfg.StaleAfter > 0 && time.Duration(age)*time.Second > s.cfg.StaleAfter
}

// runJob drives the batch loop for one job: pause gating, retried
// submission, and a final wait for the device to report the queue
// drained before declaring the job complete (Testable Property 9).
func (s *Supervisor) runJob(job *Job, points []PathPoint, start StartPosition, speed int, batchSize int) {
	job.setStatus(Running)

	for i := 0; i < len(points); i += batchSize {
		end := i + batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[i:end]

		for job.Status() == Paused {
			time.Sleep(pauseCheckInterval)
		}
		switch job.Status() {
		case Cancelling, Cancelled, Failed:
			return
		}

		req := pathRequest{Speed: speed, Points: toClientPoints(batch)}
		if i == 0 {
			req.Reset = true
			x, y, penDown := start.X, start.Y, start.PenDown
			req.StartPosition = &clientStartPosition{X: &x, Y: &y, PenDown: &penDown}
		}
		if end == len(points) {
			req.EndOfJob = true
		}

		if err := s.submitWithRetry(req); err != nil {
			job.setStatus(Failed)
			job.setFinished(time.Now().Unix(), err.Error())
			return
		}
		job.addSent(len(batch))
	}

	if !s.waitForDrain() {
		job.setStatus(Failed)
		job.setFinished(time.Now().Unix(), "timed out waiting for device to finish job")
		return
	}
	job.setStatus(Completed)
	job.setFinished(time.Now().Unix(), "")
}

// submitWithRetry retries transient failures (including a device-
// reported queue-full) with bounded exponential backoff.
func (s *Supervisor) submitWithRetry(req pathRequest) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.cfg.MaxRetries)
	return backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		defer cancel()
		_, err := s.client.SubmitChunk(ctx, req)
		return err
	}, b)
}

// waitForDrain polls device status until it reports an empty, idle
// queue or drainTimeout elapses.
func (s *Supervisor) waitForDrain() bool {
	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
		snap, err := s.client.Status(ctx, time.Now().Unix())
		cancel()
		if err == nil && !snap.IsExecuting && snap.QueueSize == 0 {
			return true
		}
		time.Sleep(drainPollInterval)
	}
	return false
}

// pollStatus is the independent status-poller goroutine: it runs for
// the lifetime of the Supervisor regardless of whether a job is
// active, so clients always have a recent device snapshot to read.
func (s *Supervisor) pollStatus() {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.pollerStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
			snap, err := s.client.Status(ctx, time.Now().Unix())
			cancel()
			if err != nil {
				continue
			}
			s.statusMu.Lock()
			s.lastStatus = snap
			s.statusMu.Unlock()
			if job := s.currentJob(); job != nil {
				job.setControllerStatus(snap)
			}
		}
	}
}

func toClientPoints(points []PathPoint) []clientPoint {
	out := make([]clientPoint, len(points))
	for i, p := range points {
		x, y := p.X, p.Y
		penDown := p.PenDown
		speed := p.Speed
		out[i] = clientPoint{X: &x, Y: &y, PenDown: &penDown, Speed: &speed}
	}
	return out
}
