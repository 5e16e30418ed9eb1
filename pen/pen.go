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

// Package pen drives the pen-lift servo with a software-PWM signal, the
// same bit-banged duty-cycle loop the reference daemon uses to drive an
// hour hand's position indicator.
package pen

import (
	"sync"
	"time"

	"github.com/aamcrae/polargraph/board"
)

// State is whether the pen is touching the drawing surface.
type State bool

const (
	Up   State = false
	Down State = true
)

// Config holds the servo duty cycles for each pen state and the time to
// wait for the servo to physically reach the commanded position before a
// queued move is allowed to start.
type Config struct {
	UpDutyPercent, DownDutyPercent int
	Period                        time.Duration
	Settle                        time.Duration
}

// DefaultConfig returns reasonable settings for a typical hobby servo
// driven with a 20ms PWM period.
func DefaultConfig() Config {
	return Config{
		UpDutyPercent:   5,
		DownDutyPercent: 10,
		Period:          20 * time.Millisecond,
		Settle:          300 * time.Millisecond,
	}
}

type pwmMsg struct {
	dutyPercent int
	stop        chan struct{}
}

// Actuator drives the pen servo and tracks the commanded state. It is
// safe for concurrent use: the motion scheduler and HTTP handlers may
// both call Set, and the two calls will simply serialize.
type Actuator struct {
	conf Config
	c    chan pwmMsg

	mu    sync.Mutex
	state State
	known bool
}

// New starts the PWM handler goroutine and drives the pen to the Up
// position.
func New(pin board.Setter, conf Config) *Actuator {
	a := &Actuator{conf: conf, c: make(chan pwmMsg, 1)}
	go a.handler(pin)
	a.Set(Up)
	return a
}

// Close stops the PWM handler goroutine.
func (a *Actuator) Close() {
	stop := make(chan struct{})
	a.c <- pwmMsg{stop: stop}
	<-stop
}

// Set commands the pen to the given state, blocking until the servo has
// had time to settle. Commanding the state the pen is already known to
// be in is a no-op: it neither resends the PWM signal nor waits out the
// settle delay, so repeated identical commands (e.g. redundant pen-down
// calls between adjacent queued points) do not introduce needless pauses.
func (a *Actuator) Set(s State) error {
	a.mu.Lock()
	if a.known && a.state == s {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	duty := a.conf.UpDutyPercent
	if s == Down {
		duty = a.conf.DownDutyPercent
	}
	a.c <- pwmMsg{dutyPercent: duty}

	a.mu.Lock()
	a.state = s
	a.known = true
	a.mu.Unlock()

	time.Sleep(a.conf.Settle)
	return nil
}

// State returns the last commanded pen state, and whether it has been
// initialized by a call to Set.
func (a *Actuator) State() (State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.known
}

// handler runs the duty-cycle bit-bang loop, checking for a new duty
// cycle or a stop request once per period.
func (a *Actuator) handler(pin board.Setter) {
	period := a.conf.Period
	on := period * time.Duration(a.conf.UpDutyPercent) / 100
	off := period - on
	level := false
	for {
		if on > 0 {
			if !level {
				pin.Set(true)
				level = true
			}
			time.Sleep(on)
		}
		if off > 0 {
			if level {
				pin.Set(false)
				level = false
			}
			time.Sleep(off)
		}
		select {
		case m := <-a.c:
			if m.stop != nil {
				pin.Set(false)
				close(m.stop)
				return
			}
			on = period * time.Duration(m.dutyPercent) / 100
			off = period - on
		default:
		}
	}
}
