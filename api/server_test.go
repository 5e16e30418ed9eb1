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

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/pen"
	"github.com/aamcrae/polargraph/pulse"
	"github.com/aamcrae/polargraph/motion"
	"github.com/aamcrae/polargraph/simboard"
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

func testServer(t *testing.T) *Server {
	t.Helper()
	pins := pulse.Pins{
		LeftDir:   simboard.OutputPin("ld"),
		LeftStep:  simboard.OutputPin("ls"),
		RightDir:  simboard.OutputPin("rd"),
		RightStep: simboard.OutputPin("rs"),
	}
	penConf := pen.DefaultConfig()
	penConf.Period = time.Millisecond
	penConf.Settle = time.Millisecond
	actuator := pen.New(simboard.OutputPin("servo"), penConf)
	c := motion.New(testGeometry(), 3000, pins, actuator)
	return NewServer(c)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestPreflightReturnsNoContent(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusBeforeInit(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.State.Initialized)
	assert.Equal(t, 0, resp.Queue.Size)
}

func TestPathRequiresStartPositionWhenUninitialized(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/path", pathRequest{
		Points: []pointJSON{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func TestS1PathSubmissionRunsToCompletion(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/path", pathRequest{
		Reset:    true,
		EndOfJob: true,
		StartPosition: &startPositionJSON{
			X: floatPtr(575), Y: floatPtr(365), PenDown: boolPtr(false),
		},
		Points: []pointJSON{
			{X: floatPtr(775), Y: floatPtr(365), PenDown: boolPtr(true)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp pathResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	assert.True(t, resp.State.Initialized)

	// About 13,500 iterations at the default 400 steps/s: at least 34 s.
	deadline := time.Now().Add(90 * time.Second)
	stop := make(chan struct{})
	go s.c.Run(stop, func() { time.Sleep(time.Millisecond) })
	for time.Now().Before(deadline) {
		size, executing := s.c.Queue.Snapshot()
		if size == 0 && !executing {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(stop)

	statusRec := doJSON(t, s, http.MethodGet, "/api/status", nil)
	var status statusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.InDelta(t, 775, status.State.XMM, 0.5)
	assert.InDelta(t, 365, status.State.YMM, 0.5)
	assert.True(t, status.State.PenDown)
	assert.False(t, status.Queue.IsExecuting)
}

func TestQueueOverflowReturns429(t *testing.T) {
	s := testServer(t)
	pts := make([]pointJSON, 3001)
	for i := range pts {
		pts[i] = pointJSON{X: floatPtr(float64(i % 500)), Y: floatPtr(100)}
	}
	rec := doJSON(t, s, http.MethodPost, "/api/path", pathRequest{
		Reset:         true,
		StartPosition: &startPositionJSON{X: floatPtr(100), Y: floatPtr(100)},
		Points:        pts,
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	size := s.c.Queue.Size()
	assert.Equal(t, 0, size)
}

func TestMoveUnknownMotorReturns404(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/move", moveRequest{Motor: "up", Steps: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPenIdempotentCommand(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/pen", penRequest{PenDown: true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec2 := doJSON(t, s, http.MethodPost, "/api/pen", penRequest{PenDown: true})
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestCancelEndpoint(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	size, executing := s.c.Queue.Snapshot()
	assert.Equal(t, 0, size)
	assert.False(t, executing)
}
