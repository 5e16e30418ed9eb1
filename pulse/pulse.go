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

// Package pulse drives one or two stepper motors with a fixed-cadence
// pulse train. Two-motor moves are interleaved with Bresenham's line
// algorithm in step space so both axes complete simultaneously,
// producing a straight diagonal instead of one axis finishing early.
package pulse

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/aamcrae/polargraph/board"
)

const (
	// MinPulseWidth is how long a step pin is held high for one pulse.
	MinPulseWidth = 2 * time.Microsecond
	// yieldEvery matches the reference firmware's periodic yield so a
	// cooperatively scheduled network task is never starved by a long
	// pulse train; harmless (but kept) under Go's preemptive scheduler.
	yieldEvery = 100
)

// ErrCancelled is returned by Move when a cancel request aborts a move
// in progress.
var ErrCancelled = errors.New("pulse: move cancelled")

// ErrDeltaRange is returned when a requested step delta cannot be
// represented as a 32-bit signed integer.
var ErrDeltaRange = errors.New("pulse: step delta exceeds 32-bit range")

// Pins groups the four output pins needed to drive two stepper motors.
// InvertLeft/InvertRight flip the direction-pin polarity for a positive
// delta; the correct polarity is hardware-dependent and is therefore a
// per-machine configuration choice rather than a compile-time constant.
type Pins struct {
	LeftDir, LeftStep   board.Setter
	RightDir, RightStep board.Setter
	InvertLeft          bool
	InvertRight         bool
}

// Disable drives all four pins low, used when a move is cancelled or the
// controller is otherwise told to stop outputting. The four pins are
// electrically independent, so a failure on one must not suppress the
// attempt to clear the others.
func Disable(p Pins) error {
	return board.SetAll(
		[]board.Setter{p.LeftDir, p.LeftStep, p.RightDir, p.RightStep},
		[]bool{false, false, false, false},
	)
}

// Move drives both motors so that they complete their respective signed
// step counts simultaneously. cancel, if non-nil, is polled at the top
// of every iteration; a true value aborts the move and disables outputs.
func Move(p Pins, deltaLeft, deltaRight int64, stepsPerSecond float64, cancel *atomic.Bool) error {
	if outOfRange(deltaLeft) || outOfRange(deltaRight) {
		return ErrDeltaRange
	}
	nLeft := abs64(deltaLeft)
	nRight := abs64(deltaRight)
	n := max64(nLeft, nRight)
	if n == 0 {
		return nil
	}
	if err := board.SetAll(
		[]board.Setter{p.LeftDir, p.RightDir},
		[]bool{dirLevel(deltaLeft >= 0, p.InvertLeft), dirLevel(deltaRight >= 0, p.InvertRight)},
	); err != nil {
		return errors.Wrap(err, "pulse: direction pins")
	}

	delay := stepDelay(stepsPerSecond)
	var accLeft, accRight int64
	// Exactly n iterations: Bresenham conservation (the side that equals
	// n exactly must fire on every iteration, not n+1 of them) requires
	// a half-open range here.
	for i := int64(0); i < n; i++ {
		if cancel != nil && cancel.Load() {
			// The move is aborting regardless of whether every pin
			// write lands, so a disable failure here doesn't change
			// the outcome; it's still attempted on all four pins.
			Disable(p)
			return ErrCancelled
		}
		accLeft += nLeft
		accRight += nRight
		if accLeft >= n {
			accLeft -= n
			if err := strobe(p.LeftStep); err != nil {
				return errors.Wrap(err, "pulse: left step pin")
			}
		}
		if accRight >= n {
			accRight -= n
			if err := strobe(p.RightStep); err != nil {
				return errors.Wrap(err, "pulse: right step pin")
			}
		}
		if i%yieldEvery == 0 {
			runtime.Gosched()
		}
		time.Sleep(delay)
	}
	return nil
}

// Single drives one motor for a signed number of steps, used by the
// diagnostic single-motor jog. It does not affect machine pose.
func Single(dir, step board.Setter, steps int64, stepsPerSecond float64, invert bool, cancel *atomic.Bool) error {
	if outOfRange(steps) {
		return ErrDeltaRange
	}
	n := abs64(steps)
	if n == 0 {
		return nil
	}
	if err := dir.Set(dirLevel(steps >= 0, invert)); err != nil {
		return errors.Wrap(err, "pulse: direction pin")
	}
	delay := stepDelay(stepsPerSecond)
	for i := int64(0); i < n; i++ {
		if cancel != nil && cancel.Load() {
			step.Set(false)
			return ErrCancelled
		}
		if err := strobe(step); err != nil {
			return errors.Wrap(err, "pulse: step pin")
		}
		if i%yieldEvery == 0 {
			runtime.Gosched()
		}
		time.Sleep(delay)
	}
	return nil
}

func strobe(s board.Setter) error {
	if err := s.Set(true); err != nil {
		return err
	}
	time.Sleep(MinPulseWidth)
	return s.Set(false)
}

func dirLevel(positive, invert bool) bool {
	if invert {
		return !positive
	}
	return positive
}

// stepDelay converts a requested step rate to the per-iteration sleep,
// floored at four pulse widths so the pulse itself always fits within
// one period.
func stepDelay(stepsPerSecond float64) time.Duration {
	if stepsPerSecond <= 0 {
		stepsPerSecond = 1
	}
	us := 1_000_000.0 / stepsPerSecond
	min := float64(4 * MinPulseWidth / time.Microsecond)
	if us < min {
		us = min
	}
	return time.Duration(us) * time.Microsecond
}

func outOfRange(d int64) bool {
	return d > math.MaxInt32 || d < math.MinInt32
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
