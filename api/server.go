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

// Package api is the device HTTP surface: status, single-motor jog,
// pen command, path submission, cancel and park. It runs on a plain
// net/http server, exactly the way the reference clock daemon serves
// its status and clock-face endpoints, so the motion task and the
// network task remain on separate goroutines that only ever meet at
// the Controller's own locks.
package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/aamcrae/polargraph/diagview"
	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/machine"
	"github.com/aamcrae/polargraph/motion"
	"github.com/aamcrae/polargraph/queue"
)

// Server serves the device HTTP API for a single Controller.
type Server struct {
	c   *motion.Controller
	mux *http.ServeMux
}

// NewServer builds the device HTTP surface for c.
func NewServer(c *motion.Controller) *Server {
	s := &Server{c: c, mux: http.NewServeMux()}
	s.mux.Handle("/api/status", cors(http.HandlerFunc(s.handleStatus)))
	s.mux.Handle("/api/move", cors(http.HandlerFunc(s.handleMove)))
	s.mux.Handle("/api/pen", cors(http.HandlerFunc(s.handlePen)))
	s.mux.Handle("/api/path", cors(http.HandlerFunc(s.handlePath)))
	s.mux.Handle("/api/cancel", cors(http.HandlerFunc(s.handleCancel)))
	s.mux.Handle("/api/park", cors(http.HandlerFunc(s.handlePark)))
	s.mux.Handle("/api/debug.png", cors(http.HandlerFunc(s.handleDebugPNG)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// cors adds the permissive CORS headers the spec requires and answers
// preflight OPTIONS requests with 204, without reaching the wrapped
// handler.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func stateJSONOf(snap machine.State) stateJSON {
	return stateJSON{
		Initialized: snap.Initialized,
		XMM:         snap.XMM,
		YMM:         snap.YMM,
		PenDown:     snap.PenDown,
		LengthsMM:   lengthsJSON{Left: snap.LeftLenMM, Right: snap.RightLenMM},
		Steps:       stepsJSON{Left: snap.LeftSteps, Right: snap.RightSteps},
	}
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap := s.c.State.Snapshot()
	size, executing := s.c.Queue.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Wifi: wifiJSON{IP: localIP()},
		Motors: []motorJSON{
			{ID: "left", Busy: s.c.MotorBusy(motion.Left)},
			{ID: "right", Busy: s.c.MotorBusy(motion.Right)},
		},
		State: stateJSONOf(snap),
		Queue: queueJSON{Size: size, IsExecuting: executing},
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	var motor motion.Motor
	switch req.Motor {
	case "left":
		motor = motion.Left
	case "right":
		motor = motion.Right
	default:
		writeError(w, http.StatusNotFound, "unknown motor")
		return
	}
	err := s.c.Jog(motor, req.Steps, req.Speed)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, moveResponse{OK: true})
	case err == motion.ErrMotorBusy:
		writeError(w, http.StatusConflict, "motor busy")
	case err == motion.ErrUnknownMotor:
		writeError(w, http.StatusNotFound, "unknown motor")
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) handlePen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req penRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	state := machine.PenState(req.PenDown)
	if s.c.Pen != nil {
		s.c.Pen.Set(state)
	}
	s.c.State.SetPenDown(req.PenDown)
	writeJSON(w, http.StatusOK, penResponse{OK: true, PenDown: req.PenDown})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	s.c.Cancel()
	writeJSON(w, http.StatusOK, cancelResponse{OK: true})
}

func (s *Server) handlePark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if err := s.c.Park(); err != nil {
		if err == queue.ErrFull {
			writeError(w, http.StatusTooManyRequests, "queue full")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, parkResponse{OK: true})
}

func (s *Server) handleDebugPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := diagview.Render(w, s.c.Geom, s.c.State.Snapshot(), 800, 600); err != nil {
		log.Printf("api: error rendering debug png: %v", err)
	}
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	if req.Reset {
		s.c.Queue.Reset()
	}
	if req.Reset || !s.c.State.Initialized() {
		if req.StartPosition == nil {
			writeError(w, http.StatusBadRequest, "startPosition required")
			return
		}
		l1, l2, penDown, ok := resolveStartPosition(s.c.Geom, req.StartPosition)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "invalid startPosition")
			return
		}
		s.c.State.Init(l1, l2, penDown)
	}

	var accepted []queue.Point
	for _, pt := range req.Points {
		p, ok := resolvePoint(pt, req.Speed)
		if !ok {
			continue // malformed points are skipped, not fatal
		}
		accepted = append(accepted, p)
	}

	n, err := s.c.Queue.EnqueueMany(accepted, req.EndOfJob)
	if err == queue.ErrFull {
		writeError(w, http.StatusTooManyRequests, "queue full")
		return
	}

	size, executing := s.c.Queue.Snapshot()
	writeJSON(w, http.StatusOK, pathResponse{
		Accepted:    n,
		QueueSize:   size,
		IsExecuting: executing,
		State:       stateJSONOf(s.c.State.Snapshot()),
	})
}

// resolveStartPosition converts a startPosition payload into lengths
// and a pen state, trying each accepted form in turn: explicit
// lengths, explicit step counts, or a Cartesian point resolved through
// inverse kinematics.
func resolveStartPosition(geom kinematics.Geometry, sp *startPositionJSON) (l1, l2 float64, penDown bool, ok bool) {
	if sp.PenDown != nil {
		penDown = *sp.PenDown
	}
	switch {
	case sp.L1 != nil && sp.L2 != nil:
		return *sp.L1, *sp.L2, penDown, true
	case sp.LeftLengthMM != nil && sp.RightLengthMM != nil:
		return *sp.LeftLengthMM, *sp.RightLengthMM, penDown, true
	case sp.LeftSteps != nil && sp.RightSteps != nil:
		return kinematics.LengthForSteps(geom, *sp.LeftSteps), kinematics.LengthForSteps(geom, *sp.RightSteps), penDown, true
	case sp.X != nil && sp.Y != nil:
		left, right, err := kinematics.Inverse(geom, *sp.X, *sp.Y)
		if err != nil {
			return 0, 0, false, false
		}
		return left, right, penDown, true
	default:
		return 0, 0, false, false
	}
}

// resolvePoint converts one path-submission point into a queue.Point,
// reporting ok=false for a malformed point so the caller can skip it
// instead of failing the whole batch.
func resolvePoint(pt pointJSON, batchSpeed int) (queue.Point, bool) {
	speed := batchSpeed
	if pt.Speed != nil {
		speed = *pt.Speed
	}
	penDown := false
	if pt.PenDown != nil {
		penDown = *pt.PenDown
	}
	switch {
	case pt.L1 != nil && pt.L2 != nil:
		return queue.Point{L1: *pt.L1, L2: *pt.L2, HasLengths: true, PenDown: penDown, SpeedSteps: speed}, true
	case pt.X != nil && pt.Y != nil:
		return queue.Point{X: *pt.X, Y: *pt.Y, PenDown: penDown, SpeedSteps: speed}, true
	default:
		return queue.Point{}, false
	}
}
