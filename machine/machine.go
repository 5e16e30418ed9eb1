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

// Package machine holds the authoritative physical pose of the gondola:
// position, string lengths, step counters and pen state. It is the sole
// source of truth the motion task writes to; the HTTP task reads it and
// writes it only to declare a start position or to record the pen state
// after a synchronous pen command.
package machine

import (
	"sync"

	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/pen"
)

// State is a point-in-time snapshot of the machine pose, safe to copy
// and hand to callers outside the lock.
type State struct {
	XMM, YMM             float64
	LeftLenMM, RightLenMM float64
	LeftSteps, RightSteps int64
	PenDown               bool
	Initialized           bool
}

// Machine guards the authoritative pose behind a single lock, matching
// the "state lock" of the concurrency model: the motion task is its
// only writer of steps, lengths and pose after start-up, and the HTTP
// task reads it (or writes it to declare a start position or to record
// a synchronous pen command).
type Machine struct {
	geom kinematics.Geometry

	mu    sync.Mutex
	state State
}

// New creates a Machine for the given board geometry, uninitialized.
func New(geom kinematics.Geometry) *Machine {
	return &Machine{geom: geom}
}

// Snapshot returns a copy of the current pose.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Init declares the current physical pose of the gondola without moving
// it: it is how the controller resynchronizes its internal counters with
// reality after boot or an explicit reset.
func (m *Machine) Init(leftLenMM, rightLenMM float64, penDown bool) {
	x, y, err := kinematics.Forward(m.geom, leftLenMM, rightLenMM)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LeftLenMM = leftLenMM
	m.state.RightLenMM = rightLenMM
	m.state.LeftSteps = kinematics.StepsForLength(m.geom, leftLenMM)
	m.state.RightSteps = kinematics.StepsForLength(m.geom, rightLenMM)
	m.state.PenDown = penDown
	m.state.Initialized = true
	if err == nil {
		m.state.XMM = x
		m.state.YMM = y
	}
}

// Apply commits the result of a completed move: new step counters, the
// lengths they imply, the pose they imply via forward kinematics, and
// the pen state the move ran with. Step counters remain the integer
// source of truth; lengths and pose are always rederived from them, so
// they never themselves round-trip as authoritative across moves.
func (m *Machine) Apply(leftSteps, rightSteps int64, penDown bool) {
	leftLen := kinematics.LengthForSteps(m.geom, leftSteps)
	rightLen := kinematics.LengthForSteps(m.geom, rightSteps)
	x, y, err := kinematics.Forward(m.geom, leftLen, rightLen)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LeftSteps = leftSteps
	m.state.RightSteps = rightSteps
	m.state.LeftLenMM = leftLen
	m.state.RightLenMM = rightLen
	m.state.PenDown = penDown
	if err == nil {
		m.state.XMM = x
		m.state.YMM = y
	}
}

// SetPenDown updates the cached pen state without otherwise touching
// pose; used after a synchronous /api/pen command. Queued moves commit
// their pen state through Apply instead.
func (m *Machine) SetPenDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.PenDown = down
}

// Initialized reports whether a start position has been declared.
func (m *Machine) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Initialized
}

// Steps returns the current step counters, the integer truth the
// scheduler computes deltas against.
func (m *Machine) Steps() (left, right int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LeftSteps, m.state.RightSteps
}

// Geometry returns the board geometry the machine was created with.
func (m *Machine) Geometry() kinematics.Geometry {
	return m.geom
}

// PenState converts a machine-reported bool into the pen package's
// named State type, for callers that want the richer type.
func PenState(down bool) pen.State {
	if down {
		return pen.Down
	}
	return pen.Up
}
