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

package diagview

import (
	"bytes"
	"testing"

	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/machine"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderProducesPNG(t *testing.T) {
	geom := kinematics.Geometry{
		BoardWidthMM:    1200,
		BoardHeightMM:   900,
		PenOffsetMM:     50,
		MotorOffsetMM:   30,
		SpoolDiameterMM: 12.7,
		StepsPerRev:     200,
		Microsteps:      16,
	}
	state := machine.State{XMM: 600, YMM: 450, Initialized: true}
	var buf bytes.Buffer
	if err := Render(&buf, geom, state, 800, 600); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() < len(pngMagic) || !bytes.Equal(buf.Bytes()[:len(pngMagic)], pngMagic) {
		t.Error("Render did not produce a PNG-signed output")
	}
}
