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

// Package diagview renders a debug PNG of the current gondola pose,
// the way the reference clock daemon renders its hands onto a clock
// face image for its own status page, except here there is no
// background photo to draw onto: the board and strings are drawn from
// scratch.
package diagview

import (
	"io"

	"github.com/fogleman/gg"

	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/machine"
)

const (
	margin   = 40.0
	anchorR  = 6.0
	gondolaR = 10.0
)

// Render draws the board outline, both strings, the anchors and the
// gondola/pen position for the given pose, scaled to fit within
// maxWidth x maxHeight, and writes it as a PNG to w.
func Render(w io.Writer, geom kinematics.Geometry, state machine.State, maxWidth, maxHeight int) error {
	scale := scaleToFit(geom.BoardWidthMM, geom.BoardHeightMM, float64(maxWidth)-2*margin, float64(maxHeight)-2*margin)
	width := int(geom.BoardWidthMM*scale + 2*margin)
	height := int(geom.BoardHeightMM*scale + 2*margin)

	c := gg.NewContext(width, height)
	c.SetRGB(1, 1, 1)
	c.Clear()

	tx := func(x float64) float64 { return margin + x*scale }
	ty := func(y float64) float64 { return margin + y*scale }

	// Board outline.
	c.SetRGB(0.2, 0.2, 0.2)
	c.SetLineWidth(2)
	c.DrawRectangle(tx(0), ty(0), geom.BoardWidthMM*scale, geom.BoardHeightMM*scale)
	c.Stroke()

	// Motor anchors sit at the board's top corners, offset up by h; the
	// gondola's two string-attachment points are offset left/right of
	// its center by d. This mirrors kinematics.Inverse exactly, rather
	// than (incorrectly) placing the anchors inset by d.
	leftAnchorX, leftAnchorY := 0.0, -geom.MotorOffsetMM
	rightAnchorX, rightAnchorY := geom.BoardWidthMM, -geom.MotorOffsetMM
	leftAttachX, rightAttachX := state.XMM-geom.PenOffsetMM, state.XMM+geom.PenOffsetMM

	// Strings.
	c.SetRGB(0.6, 0.6, 0.6)
	c.SetLineWidth(1)
	c.DrawLine(tx(leftAnchorX), ty(leftAnchorY), tx(leftAttachX), ty(state.YMM))
	c.Stroke()
	c.DrawLine(tx(rightAnchorX), ty(rightAnchorY), tx(rightAttachX), ty(state.YMM))
	c.Stroke()

	// Anchors.
	c.SetRGB(0, 0, 0.8)
	drawDot(c, tx(leftAnchorX), ty(leftAnchorY), anchorR)
	drawDot(c, tx(rightAnchorX), ty(rightAnchorY), anchorR)

	// Gondola / pen.
	if state.PenDown {
		c.SetRGB(0.8, 0, 0)
	} else {
		c.SetRGB(0, 0.6, 0)
	}
	drawDot(c, tx(state.XMM), ty(state.YMM), gondolaR)

	return c.EncodePNG(w)
}

func drawDot(c *gg.Context, x, y, r float64) {
	c.DrawCircle(x, y, r)
	c.Fill()
}

func scaleToFit(wMM, hMM, maxW, maxH float64) float64 {
	if wMM <= 0 || hMM <= 0 {
		return 1
	}
	sx := maxW / wMM
	sy := maxH / hMM
	if sx < sy {
		return sx
	}
	return sy
}
