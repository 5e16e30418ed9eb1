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

// Package kinematics converts between pen positions and the string
// lengths and motor step counts of a two-motor polargraph.
package kinematics

import (
	"math"

	"github.com/pkg/errors"
)

// Geometry holds the fixed board and spool parameters of one machine.
// Origin is the top-left corner of the board, +x right, +y down.
type Geometry struct {
	BoardWidthMM    float64
	BoardHeightMM   float64
	PenOffsetMM     float64 // d: half the gondola's attachment-point spacing
	MotorOffsetMM   float64 // h: motor anchors sit this far above the board
	SpoolDiameterMM float64
	StepsPerRev     int
	Microsteps      int
}

// StepsPerMM is (STEPS_PER_REV * MICROSTEPS) / (pi * SPOOL_DIAMETER_MM).
func (g Geometry) StepsPerMM() float64 {
	return float64(g.StepsPerRev*g.Microsteps) / (math.Pi * g.SpoolDiameterMM)
}

// ErrInvalidPoint is returned by Inverse for points outside the board or
// that produce a non-finite string length.
var ErrInvalidPoint = errors.New("kinematics: invalid point")

// ErrSingular is returned by Forward when the lengths given do not
// resolve to a unique, real position.
var ErrSingular = errors.New("kinematics: singular forward solution")

// Inverse computes the left and right string lengths for a pen target
// (x, y). It fails on points behind or above the board, or that would
// otherwise produce a non-finite length.
func Inverse(g Geometry, x, y float64) (leftMM, rightMM float64, err error) {
	if x < 0 || y < 0 {
		return 0, 0, ErrInvalidPoint
	}
	d := g.PenOffsetMM
	my := y + g.MotorOffsetMM
	left := math.Hypot(x-d, my)
	right := math.Hypot(g.BoardWidthMM-(x+d), my)
	if !isFinite(left) || !isFinite(right) {
		return 0, 0, ErrInvalidPoint
	}
	return left, right, nil
}

// Forward recovers (x, y) from a pair of string lengths. It is used for
// status reporting only; the motion path drives off lengths directly.
func Forward(g Geometry, leftMM, rightMM float64) (x, y float64, err error) {
	d := g.PenOffsetMM
	wPrime := g.BoardWidthMM - d
	denom := 2 * (d - wPrime)
	if math.Abs(denom) < 1e-9 {
		return 0, 0, ErrSingular
	}
	x = (rightMM*rightMM - leftMM*leftMM + d*d - wPrime*wPrime) / denom
	radicand := leftMM*leftMM - (x-d)*(x-d)
	if radicand < 0 {
		return 0, 0, ErrSingular
	}
	y = math.Sqrt(radicand) - g.MotorOffsetMM
	return x, y, nil
}

// StepsForLength converts a string length in millimetres to the nearest
// integer motor step count.
func StepsForLength(g Geometry, lengthMM float64) int64 {
	return int64(math.Round(lengthMM * g.StepsPerMM()))
}

// LengthForSteps is the inverse of StepsForLength, used to recover the
// authoritative lengths from the integer step counters.
func LengthForSteps(g Geometry, steps int64) float64 {
	return float64(steps) / g.StepsPerMM()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
