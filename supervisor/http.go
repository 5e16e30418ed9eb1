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

package supervisor

import (
	"encoding/json"
	"log"
	"net/http"
)

// Server is the supervisor's own HTTP surface: job submission, status,
// and pause/resume/cancel, plus a visualize endpoint that can hand its
// point list straight to the job runner.
type Server struct {
	sup *Supervisor
	mux *http.ServeMux
}

// NewServer builds the supervisor HTTP surface for sup.
func NewServer(sup *Supervisor) *Server {
	s := &Server{sup: sup, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/send-path", s.handleSendPath)
	s.mux.HandleFunc("/api/send-path/status", s.handleStatus)
	s.mux.HandleFunc("/api/send-path/pause", s.handlePause)
	s.mux.HandleFunc("/api/send-path/resume", s.handleResume)
	s.mux.HandleFunc("/api/send-path/cancel", s.handleCancel)
	s.mux.HandleFunc("/api/visualize", s.handleVisualize)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("supervisor: error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: msg})
}

// envelope is the job envelope returned by the supervisor endpoints
// (spec §6.2), except a visualize request without sendToController,
// which returns only its point list. Fields that don't apply to a given response are left
// at their zero value and omitted by the json tags.
type envelope struct {
	Status           Status              `json:"status,omitempty"`
	JobID            string              `json:"jobId,omitempty"`
	TotalPoints      int                 `json:"totalPoints,omitempty"`
	SentPoints       int                 `json:"sentPoints,omitempty"`
	TotalBatches     int                 `json:"totalBatches,omitempty"`
	SentBatches      int                 `json:"sentBatches,omitempty"`
	StartedAt        int64               `json:"startedAt,omitempty"`
	FinishedAt       int64               `json:"finishedAt,omitempty"`
	Error            string              `json:"error,omitempty"`
	ControllerStatus *controllerStatusJS `json:"controllerStatus,omitempty"`
	Paused           bool                `json:"paused,omitempty"`
}

type controllerStatusJS struct {
	Initialized bool    `json:"initialized"`
	XMM         float64 `json:"x_mm"`
	YMM         float64 `json:"y_mm"`
	PenDown     bool    `json:"penDown"`
	QueueSize   int     `json:"queueSize"`
	IsExecuting bool    `json:"isExecuting"`
	FetchedAt   int64   `json:"fetchedAt"`
	Stale       bool    `json:"stale"`
}

func envelopeOf(snap Snapshot) envelope {
	e := envelope{
		Status:       snap.Status,
		JobID:        snap.ID,
		TotalPoints:  snap.TotalPoints,
		SentPoints:   snap.SentPoints,
		TotalBatches: snap.TotalBatches,
		SentBatches:  snap.SentBatches,
		StartedAt:    snap.StartedAt,
		FinishedAt:   snap.FinishedAt,
		Error:        snap.LastError,
		Paused:       snap.Paused,
	}
	if snap.ControllerStatus != nil {
		cs := snap.ControllerStatus
		e.ControllerStatus = &controllerStatusJS{
			Initialized: cs.Initialized,
			XMM:         cs.XMM,
			YMM:         cs.YMM,
			PenDown:     cs.PenDown,
			QueueSize:   cs.QueueSize,
			IsExecuting: cs.IsExecuting,
			FetchedAt:   cs.FetchedAt,
			Stale:       cs.Stale,
		}
	}
	return e
}

type pointJSON struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	PenDown bool    `json:"penDown"`
	Speed   int     `json:"speed,omitempty"`
}

type startPositionJSON struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	PenDown bool    `json:"penDown"`
}

type sendPathRequest struct {
	Speed         int               `json:"speed,omitempty"`
	StartPosition startPositionJSON `json:"startPosition"`
	Points        []pointJSON       `json:"points"`
}

func toSupervisorPoints(in []pointJSON, defaultSpeed int) []PathPoint {
	out := make([]PathPoint, len(in))
	for i, p := range in {
		speed := defaultSpeed
		if p.Speed != 0 {
			speed = p.Speed
		}
		out[i] = PathPoint{X: p.X, Y: p.Y, PenDown: p.PenDown, Speed: speed}
	}
	return out
}

func (s *Server) handleSendPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req sendPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	job, err := s.sup.SendPath(toSupervisorPoints(req.Points, req.Speed), StartPosition{
		X: req.StartPosition.X, Y: req.StartPosition.Y, PenDown: req.StartPosition.PenDown,
	}, req.Speed)
	if err == ErrJobActive {
		writeError(w, http.StatusConflict, "a job is already active")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelopeOf(job.Snapshot()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap, ok := s.sup.CurrentSnapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no job")
		return
	}
	writeJSON(w, http.StatusOK, envelopeOf(snap))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, s.sup.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, s.sup.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, s.sup.Cancel)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request, action func() error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if err := action(); err != nil {
		switch err {
		case ErrNoActiveJob:
			writeError(w, http.StatusNotFound, err.Error())
		case ErrIllegalTransition:
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}
	snap, _ := s.sup.CurrentSnapshot()
	writeJSON(w, http.StatusOK, envelopeOf(snap))
}

// visualizeRequest carries an already-generated point list (produced
// by the designer client) and, when SendToController is true, hands
// it straight to the job runner instead of only returning a preview.
type visualizeRequest struct {
	SendToController bool              `json:"sendToController,omitempty"`
	Speed            int               `json:"speed,omitempty"`
	StartPosition    startPositionJSON `json:"startPosition"`
	Points           []pointJSON       `json:"points"`
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req visualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}
	if !req.SendToController {
		writeJSON(w, http.StatusOK, struct {
			Points []pointJSON `json:"points"`
		}{Points: req.Points})
		return
	}
	job, err := s.sup.SendPath(toSupervisorPoints(req.Points, req.Speed), StartPosition{
		X: req.StartPosition.X, Y: req.StartPosition.Y, PenDown: req.StartPosition.PenDown,
	}, req.Speed)
	if err == ErrJobActive {
		writeError(w, http.StatusConflict, "a job is already active")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelopeOf(job.Snapshot()))
}
