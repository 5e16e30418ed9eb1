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

package pulse

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aamcrae/polargraph/simboard"
)

func testPins() (Pins, *simboard.Pin, *simboard.Pin) {
	leftStep := simboard.OutputPin("leftStep")
	rightStep := simboard.OutputPin("rightStep")
	return Pins{
		LeftDir:   simboard.OutputPin("leftDir"),
		LeftStep:  leftStep,
		RightDir:  simboard.OutputPin("rightDir"),
		RightStep: rightStep,
	}, leftStep, rightStep
}

func TestBresenhamConservation(t *testing.T) {
	cases := []struct {
		dl, dr int64
	}{
		{3, 7},
		{7, 3},
		{5, 5},
		{0, 10},
		{10, 0},
		{1, 1},
		{-4, 9},
	}
	for _, c := range cases {
		pins, leftStep, rightStep := testPins()
		// High speed to keep the test fast; the sleep floor still applies.
		if err := Move(pins, c.dl, c.dr, 1_000_000, nil); err != nil {
			t.Fatalf("Move(%d,%d): %v", c.dl, c.dr, err)
		}
		wantLeft := leftStep.Sets() / 2 // each pulse is two Set calls (high, low)
		wantRight := rightStep.Sets() / 2
		if int64(wantLeft) != abs64(c.dl) {
			t.Errorf("Move(%d,%d): left pulses = %d, want %d", c.dl, c.dr, wantLeft, abs64(c.dl))
		}
		if int64(wantRight) != abs64(c.dr) {
			t.Errorf("Move(%d,%d): right pulses = %d, want %d", c.dl, c.dr, wantRight, abs64(c.dr))
		}
	}
}

func TestZeroDeltaNoPulses(t *testing.T) {
	pins, leftStep, rightStep := testPins()
	if err := Move(pins, 0, 0, 1000, nil); err != nil {
		t.Fatalf("Move(0,0): %v", err)
	}
	if leftStep.Sets() != 0 || rightStep.Sets() != 0 {
		t.Errorf("Move(0,0) produced pulses: left=%d right=%d", leftStep.Sets(), rightStep.Sets())
	}
}

func TestDisableClearsAllFourPins(t *testing.T) {
	pins, leftStep, rightStep := testPins()
	leftDir := pins.LeftDir.(*simboard.Pin)
	rightDir := pins.RightDir.(*simboard.Pin)
	leftDir.Set(true)
	rightDir.Set(true)
	leftStep.Set(true)
	rightStep.Set(true)

	if err := Disable(pins); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if leftDir.Get() || rightDir.Get() || leftStep.Get() || rightStep.Get() {
		t.Error("a pin was left high after Disable")
	}
}

func TestDeltaRangeRejected(t *testing.T) {
	pins, _, _ := testPins()
	if err := Move(pins, math.MaxInt32+1, 0, 1000, nil); err != ErrDeltaRange {
		t.Errorf("Move with oversized delta: got %v, want ErrDeltaRange", err)
	}
}

func TestCancelHaltsPromptly(t *testing.T) {
	pins, leftStep, _ := testPins()
	var cancel atomic.Bool
	done := make(chan error, 1)
	go func() {
		// Slow enough that cancellation clearly interrupts it mid-move.
		done <- Move(pins, 10000, 10000, 50, &cancel)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel.Store(true)
	select {
	case err := <-done:
		if err != ErrCancelled {
			t.Errorf("Move after cancel: got %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Move did not observe cancel within bounded latency")
	}
	if leftStep.Get() {
		t.Error("left step pin left high after cancel")
	}
}
