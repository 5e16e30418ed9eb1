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

// Package motion ties the kinematic model, pulse engine, pen actuator,
// job queue and machine state into a single owned Controller, avoiding
// the process-wide globals the reference firmware used for the
// equivalent hand/stepper/encoder wiring.
package motion

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/aamcrae/polargraph/board"
	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/machine"
	"github.com/aamcrae/polargraph/pen"
	"github.com/aamcrae/polargraph/pulse"
	"github.com/aamcrae/polargraph/queue"
)

// Motor identifies one of the two steppers for the diagnostic jog
// endpoint.
type Motor string

const (
	Left  Motor = "left"
	Right Motor = "right"
)

var (
	// ErrUnknownMotor is returned by Jog for any Motor other than Left
	// or Right.
	ErrUnknownMotor = errors.New("motion: unknown motor")
	// ErrMotorBusy is returned by Jog when the addressed motor already
	// has a jog in flight. Queued moves run by the scheduler do not mark
	// a motor busy.
	ErrMotorBusy = errors.New("motion: motor busy")
)

const (
	// DefaultSpeed is used when a request specifies speed 0.
	DefaultSpeed = 400.0
	// TravelSpeed is the minimum effective speed for pen-up moves.
	TravelSpeed = 900.0
	// MaxSpeed bounds the clamp applied to any requested speed.
	MaxSpeed = 2000.0
)

// Controller owns every piece of the motion subsystem: geometry, the
// machine pose, the job queue, the pulse engine's pins and the pen
// actuator. The HTTP layer holds a shared *Controller; the scheduler
// loop is the only goroutine that drives moves.
type Controller struct {
	Geom  kinematics.Geometry
	Queue *queue.Queue
	State *machine.Machine
	Pen   *pen.Actuator
	Pins  pulse.Pins

	ParkXMM, ParkYMM float64

	cancel atomic.Bool

	jogMu     sync.Mutex
	leftBusy  bool
	rightBusy bool
}

// New creates a Controller wired to the given geometry, queue capacity
// and pin set. The pen actuator and pin set are supplied already
// constructed since their setup (servo config, GPIO init) is
// hardware-specific and owned by the caller (cmd/polargraphd).
func New(geom kinematics.Geometry, queueCapacity int, pins pulse.Pins, penActuator *pen.Actuator) *Controller {
	return &Controller{
		Geom:  geom,
		Queue: queue.New(queueCapacity),
		State: machine.New(geom),
		Pen:   penActuator,
		Pins:  pins,
	}
}

// Cancel requests that any move in progress halt as soon as the pulse
// engine observes the flag, then clears the queue, lifts the pen and
// resets the executing/end-of-job flags. It is safe to call from any
// goroutine; setting the flag itself is non-blocking.
func (c *Controller) Cancel() {
	c.cancel.Store(true)
	if err := pulse.Disable(c.Pins); err != nil {
		log.Printf("motion: error disabling outputs: %v", err)
	}
	if c.Pen != nil {
		c.Pen.Set(pen.Up)
	}
	c.Queue.Reset()
}

// Run executes the scheduler loop (spec step 1-9) until stop is
// closed. It is meant to run in its own dedicated goroutine so the
// pulse timing is never shared with a cooperative I/O scheduler.
func (c *Controller) Run(stop <-chan struct{}, idle func()) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		// Per spec, cancel_requested is polled at the top of the
		// scheduler loop as well as inside the pulse loop. A cancel
		// received while idle (no move in flight to observe it) must
		// be consumed here, or it would otherwise poison the first
		// point of the next submitted job.
		if c.cancel.CompareAndSwap(true, false) {
			continue
		}
		p, ok := c.Queue.TryPop()
		if !ok {
			// No move is in flight here, so an end-of-job flag that
			// arrived with an empty final batch can end the job now.
			c.Queue.DrainIfDone()
			idle()
			continue
		}
		c.runPoint(p)
	}
}

// runPoint executes scheduler steps 2-9 for a single popped point.
func (c *Controller) runPoint(p queue.Point) {
	leftLenMM, rightLenMM, err := c.resolveTarget(p)
	if err != nil {
		log.Printf("motion: invalid queued point, clearing queue: %v", err)
		c.Queue.StopExecuting()
		return
	}

	curLeft, curRight := c.State.Steps()
	targetLeft := kinematics.StepsForLength(c.Geom, leftLenMM)
	targetRight := kinematics.StepsForLength(c.Geom, rightLenMM)
	deltaLeft := targetLeft - curLeft
	deltaRight := targetRight - curRight

	if snap := c.State.Snapshot(); snap.PenDown != p.PenDown && c.Pen != nil {
		c.Pen.Set(machine.PenState(p.PenDown))
	}

	speed := effectiveSpeed(p.SpeedSteps, p.PenDown)
	err = pulse.Move(c.Pins, deltaLeft, deltaRight, speed, &c.cancel)
	switch {
	case err == nil:
		c.State.Apply(targetLeft, targetRight, p.PenDown)
		c.Queue.DrainIfDone()
	case errors.Is(err, pulse.ErrCancelled):
		c.cancel.Store(false)
		if c.Pen != nil {
			c.Pen.Set(pen.Up)
		}
		c.Queue.StopExecuting()
	default:
		log.Printf("motion: pulse engine failure, clearing queue: %v", err)
		c.Queue.StopExecuting()
	}
}

// resolveTarget turns a queued point into target string lengths,
// either using the lengths supplied directly or computing them from a
// Cartesian point via inverse kinematics.
func (c *Controller) resolveTarget(p queue.Point) (leftMM, rightMM float64, err error) {
	if p.HasLengths {
		return p.L1, p.L2, nil
	}
	return kinematics.Inverse(c.Geom, p.X, p.Y)
}

// effectiveSpeed applies the travel-speed policy: zero means "use the
// default", the result is clamped to [1, MaxSpeed], and pen-up moves
// are floored at TravelSpeed so rapid repositioning is fast.
func effectiveSpeed(requested int, penDown bool) float64 {
	speed := float64(requested)
	if speed == 0 {
		speed = DefaultSpeed
	}
	if speed < 1 {
		speed = 1
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	if !penDown && speed < TravelSpeed {
		speed = TravelSpeed
	}
	return speed
}

// Jog drives a single motor for a diagnostic step count at the given
// speed. It deliberately does not touch machine pose: it exists to test
// a motor in isolation, not to participate in drawing, and using it
// mid-job would desynchronize the step counters from reality.
func (c *Controller) Jog(motor Motor, steps int64, speedSteps int) error {
	var dir, step board.Setter
	var busy *bool
	switch motor {
	case Left:
		dir, step = c.Pins.LeftDir, c.Pins.LeftStep
		busy = &c.leftBusy
	case Right:
		dir, step = c.Pins.RightDir, c.Pins.RightStep
		busy = &c.rightBusy
	default:
		return ErrUnknownMotor
	}

	c.jogMu.Lock()
	if *busy {
		c.jogMu.Unlock()
		return ErrMotorBusy
	}
	*busy = true
	c.jogMu.Unlock()
	defer func() {
		c.jogMu.Lock()
		*busy = false
		c.jogMu.Unlock()
	}()

	speed := effectiveSpeed(speedSteps, true)
	invert := false
	if motor == Left {
		invert = c.Pins.InvertLeft
	} else {
		invert = c.Pins.InvertRight
	}
	return pulse.Single(dir, step, steps, speed, invert, nil)
}

// MotorBusy reports whether the given motor currently has a jog in
// flight, used by /api/move to return 409 instead of blocking.
func (c *Controller) MotorBusy(motor Motor) bool {
	c.jogMu.Lock()
	defer c.jogMu.Unlock()
	switch motor {
	case Left:
		return c.leftBusy
	case Right:
		return c.rightBusy
	default:
		return false
	}
}

// Park enqueues a single pen-up travel move to the configured park
// position and marks it as the end of the job, so the scheduler
// transitions back to idle once it completes.
func (c *Controller) Park() error {
	_, err := c.Queue.EnqueueMany([]queue.Point{{
		X:       c.ParkXMM,
		Y:       c.ParkYMM,
		PenDown: false,
	}}, true)
	return err
}
