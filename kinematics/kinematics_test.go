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

package kinematics

import (
	"math"
	"testing"
)

func testGeometry() Geometry {
	return Geometry{
		BoardWidthMM:    1200,
		BoardHeightMM:   900,
		PenOffsetMM:     50,
		MotorOffsetMM:   30,
		SpoolDiameterMM: 12.7,
		StepsPerRev:     200,
		Microsteps:      16,
	}
}

func TestInverseRejectsOutOfBounds(t *testing.T) {
	g := testGeometry()
	cases := []struct {
		x, y float64
	}{
		{-1, 10},
		{10, -1},
	}
	for _, c := range cases {
		if _, _, err := Inverse(g, c.x, c.y); err != ErrInvalidPoint {
			t.Errorf("Inverse(%v,%v): got err %v, want ErrInvalidPoint", c.x, c.y, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	g := testGeometry()
	pts := [][2]float64{
		{g.PenOffsetMM, 0},
		{g.BoardWidthMM - g.PenOffsetMM, 0},
		{600, 450},
		{575, 365},
		{775, 365},
		{100, 100},
		{900, 600},
	}
	for _, p := range pts {
		l1, l2, err := Inverse(g, p[0], p[1])
		if err != nil {
			t.Fatalf("Inverse(%v): %v", p, err)
		}
		x, y, err := Forward(g, l1, l2)
		if err != nil {
			t.Fatalf("Forward after Inverse(%v): %v", p, err)
		}
		if math.Abs(x-p[0]) > 0.01 || math.Abs(y-p[1]) > 0.01 {
			t.Errorf("round trip %v -> (%v,%v), want within 0.01mm", p, x, y)
		}
	}
}

func TestStepsForLength(t *testing.T) {
	g := testGeometry()
	spm := g.StepsPerMM()
	got := StepsForLength(g, 100)
	want := int64(math.Round(100 * spm))
	if got != want {
		t.Errorf("StepsForLength(100) = %d, want %d", got, want)
	}
	if got2 := StepsForLength(g, 0); got2 != 0 {
		t.Errorf("StepsForLength(0) = %d, want 0", got2)
	}
}

func TestS1HorizontalLine(t *testing.T) {
	g := testGeometry()
	l1a, l2a, err := Inverse(g, 575, 365)
	if err != nil {
		t.Fatalf("start point: %v", err)
	}
	l1b, l2b, err := Inverse(g, 775, 365)
	if err != nil {
		t.Fatalf("end point: %v", err)
	}
	wantLeftSteps := int64(math.Round((l1b - l1a) * g.StepsPerMM()))
	gotLeftSteps := StepsForLength(g, l1b) - StepsForLength(g, l1a)
	if math.Abs(float64(gotLeftSteps-wantLeftSteps)) > 1 {
		t.Errorf("left delta steps = %d, want approx %d", gotLeftSteps, wantLeftSteps)
	}
	_ = l2a
	_ = l2b
}
