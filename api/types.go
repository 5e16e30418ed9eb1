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

package api

// The field casing below is deliberately inconsistent across endpoints
// (snake_case in some places, camelCase in others) because it mirrors
// the wire format the device's external interface is specified to
// produce bit-for-bit; it is not a mistake to be "fixed" uniformly.

type errorResponse struct {
	Error string `json:"error"`
}

type wifiJSON struct {
	IP string `json:"ip"`
}

type motorJSON struct {
	ID   string `json:"id"`
	Busy bool   `json:"busy"`
}

type lengthsJSON struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type stepsJSON struct {
	Left  int64 `json:"left"`
	Right int64 `json:"right"`
}

type stateJSON struct {
	Initialized bool        `json:"initialized"`
	XMM         float64     `json:"x_mm"`
	YMM         float64     `json:"y_mm"`
	PenDown     bool        `json:"penDown"`
	LengthsMM   lengthsJSON `json:"lengths_mm"`
	Steps       stepsJSON   `json:"steps"`
}

type queueJSON struct {
	Size        int  `json:"size"`
	IsExecuting bool `json:"isExecuting"`
}

type statusResponse struct {
	Wifi   wifiJSON    `json:"wifi"`
	Motors []motorJSON `json:"motors"`
	State  stateJSON   `json:"state"`
	Queue  queueJSON   `json:"queue"`
}

type moveRequest struct {
	Motor string `json:"motor"`
	Steps int64  `json:"steps"`
	Speed int    `json:"speed"`
}

type moveResponse struct {
	OK bool `json:"ok"`
}

type penRequest struct {
	PenDown bool `json:"pen_down"`
}

type penResponse struct {
	OK      bool `json:"ok"`
	PenDown bool `json:"penDown"`
}

// startPositionJSON declares the physical pose the device should
// synchronize to without moving. Accepted forms: (L1,L2), (leftLengthMm,
// rightLengthMm), (leftSteps,rightSteps) or (x,y); all fields are
// optional pointers so absence is distinguishable from a zero value.
type startPositionJSON struct {
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	L1            *float64 `json:"l1,omitempty"`
	L2            *float64 `json:"l2,omitempty"`
	LeftLengthMM  *float64 `json:"leftLengthMm,omitempty"`
	RightLengthMM *float64 `json:"rightLengthMm,omitempty"`
	LeftSteps     *int64   `json:"leftSteps,omitempty"`
	RightSteps    *int64   `json:"rightSteps,omitempty"`
	PenDown       *bool    `json:"penDown,omitempty"`
}

type pointJSON struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	L1      *float64 `json:"l1,omitempty"`
	L2      *float64 `json:"l2,omitempty"`
	PenDown *bool    `json:"penDown,omitempty"`
	Speed   *int     `json:"speed,omitempty"`
}

type pathRequest struct {
	Reset         bool                `json:"reset,omitempty"`
	EndOfJob      bool                `json:"endOfJob,omitempty"`
	Speed         int                 `json:"speed,omitempty"`
	StartPosition *startPositionJSON  `json:"startPosition,omitempty"`
	Points        []pointJSON         `json:"points"`
}

type pathResponse struct {
	Accepted    int       `json:"accepted"`
	QueueSize   int       `json:"queueSize"`
	IsExecuting bool      `json:"isExecuting"`
	State       stateJSON `json:"state"`
}

type cancelResponse struct {
	OK bool `json:"ok"`
}

type parkResponse struct {
	OK bool `json:"ok"`
}
