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

package machine

import (
	"math"
	"testing"

	"github.com/aamcrae/polargraph/kinematics"
)

func testGeometry() kinematics.Geometry {
	return kinematics.Geometry{
		BoardWidthMM:    1200,
		BoardHeightMM:   900,
		PenOffsetMM:     50,
		MotorOffsetMM:   30,
		SpoolDiameterMM: 12.7,
		StepsPerRev:     200,
		Microsteps:      16,
	}
}

func TestInitUninitializedBeforeCall(t *testing.T) {
	m := New(testGeometry())
	if m.Initialized() {
		t.Fatal("new machine reports initialized")
	}
}

func TestInitSynchronizesWithoutMotion(t *testing.T) {
	g := testGeometry()
	m := New(g)
	l1, l2, err := kinematics.Inverse(g, 575, 365)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	m.Init(l1, l2, true)
	s := m.Snapshot()
	if !s.Initialized {
		t.Fatal("Init did not set Initialized")
	}
	if math.Abs(s.XMM-575) > 0.01 || math.Abs(s.YMM-365) > 0.01 {
		t.Errorf("pose = (%v,%v), want (575,365)", s.XMM, s.YMM)
	}
	if !s.PenDown {
		t.Error("PenDown not set by Init")
	}
}

func TestApplyPoseConsistency(t *testing.T) {
	g := testGeometry()
	m := New(g)
	l1, l2, _ := kinematics.Inverse(g, 575, 365)
	m.Init(l1, l2, false)

	l1b, l2b, err := kinematics.Inverse(g, 775, 365)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	leftSteps := kinematics.StepsForLength(g, l1b)
	rightSteps := kinematics.StepsForLength(g, l2b)
	m.Apply(leftSteps, rightSteps, true)

	s := m.Snapshot()
	if s.LeftSteps != leftSteps || s.RightSteps != rightSteps {
		t.Fatalf("steps = (%d,%d), want (%d,%d)", s.LeftSteps, s.RightSteps, leftSteps, rightSteps)
	}
	wantLeftSteps := int64(math.Round(s.LeftLenMM * g.StepsPerMM()))
	if wantLeftSteps != s.LeftSteps {
		t.Errorf("pose consistency: left_steps=%d, round(left_len*steps_per_mm)=%d", s.LeftSteps, wantLeftSteps)
	}
	if math.Abs(s.XMM-775) > 0.5 || math.Abs(s.YMM-365) > 0.5 {
		t.Errorf("pose after move = (%v,%v), want near (775,365)", s.XMM, s.YMM)
	}
	if !s.PenDown {
		t.Error("PenDown not committed by Apply")
	}
}

func TestSetPenDownOnly(t *testing.T) {
	m := New(testGeometry())
	m.SetPenDown(true)
	if s := m.Snapshot(); !s.PenDown {
		t.Error("SetPenDown(true) did not stick")
	}
}
