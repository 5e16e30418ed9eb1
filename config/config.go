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

// Package config reads the section-based configuration file shared by
// polargraphd and supervisord, in the same format and with the same
// library the reference clock daemon uses for its hand sections.
package config

import (
	"fmt"
	"time"

	"github.com/aamcrae/config"
)

// Board holds the geometry constants and queue/park settings used to
// build a motion.Controller.
type Board struct {
	WidthMM, HeightMM     float64
	PenOffsetMM           float64
	MotorOffsetMM         float64
	SpoolDiameterMM       float64
	StepsPerRev           int
	Microsteps            int
	QueueCapacity         int
	ParkXMM, ParkYMM      float64
}

// Motors holds the GPIO pin names and direction polarity for both
// steppers. Polarity is configurable per spec Open Question 1: the
// correct direction-pin level for "positive delta" is hardware
// dependent.
type Motors struct {
	LeftDirPin, LeftStepPin   string
	RightDirPin, RightStepPin string
	InvertLeft, InvertRight   bool
}

// Pen holds the servo pin and duty-cycle/settle settings.
type Pen struct {
	ServoPin         string
	UpDutyPercent    int
	DownDutyPercent  int
	Period           time.Duration
	Settle           time.Duration
}

// Device is the full device-side configuration, read from a single
// file with `[board]`, `[motors]` and `[pen]` sections.
//
// Sample config:
//  [board]
//  width_mm=1200
//  height_mm=900
//  pen_offset_mm=50
//  motor_offset_mm=30
//  spool_diameter_mm=12.7
//  steps_per_rev=200
//  microsteps=16
//  queue_capacity=3000
//  park_x_mm=50
//  park_y_mm=50
//
//  [motors]
//  left=GPIO17,GPIO27,false
//  right=GPIO22,GPIO23,false
//
//  [pen]
//  servo=GPIO18
//  duty=5,10
//  period=20ms
//  settle=300ms
type Device struct {
	Board  Board
	Motors Motors
	Pen    Pen
}

// LoadDevice parses the device configuration file.
func LoadDevice(path string) (*Device, error) {
	conf, err := config.ParseFile(path)
	if err != nil {
		return nil, err
	}
	var d Device
	if err := parseBoard(conf, &d.Board); err != nil {
		return nil, fmt.Errorf("board: %v", err)
	}
	if err := parseMotors(conf, &d.Motors); err != nil {
		return nil, fmt.Errorf("motors: %v", err)
	}
	if err := parsePen(conf, &d.Pen); err != nil {
		return nil, fmt.Errorf("pen: %v", err)
	}
	return &d, nil
}

func parseBoard(conf *config.Config, b *Board) error {
	s := conf.GetSection("board")
	if s == nil {
		return fmt.Errorf("no [board] section")
	}
	if _, err := s.Parse("width_mm", "%f", &b.WidthMM); err != nil {
		return err
	}
	if _, err := s.Parse("height_mm", "%f", &b.HeightMM); err != nil {
		return err
	}
	if _, err := s.Parse("pen_offset_mm", "%f", &b.PenOffsetMM); err != nil {
		return err
	}
	if _, err := s.Parse("motor_offset_mm", "%f", &b.MotorOffsetMM); err != nil {
		return err
	}
	if _, err := s.Parse("spool_diameter_mm", "%f", &b.SpoolDiameterMM); err != nil {
		return err
	}
	if _, err := s.Parse("steps_per_rev", "%d", &b.StepsPerRev); err != nil {
		return err
	}
	if _, err := s.Parse("microsteps", "%d", &b.Microsteps); err != nil {
		return err
	}
	if _, err := s.Parse("queue_capacity", "%d", &b.QueueCapacity); err != nil {
		return err
	}
	if _, err := s.Parse("park_x_mm", "%f", &b.ParkXMM); err != nil {
		return err
	}
	if _, err := s.Parse("park_y_mm", "%f", &b.ParkYMM); err != nil {
		return err
	}
	return nil
}

func parseMotors(conf *config.Config, m *Motors) error {
	s := conf.GetSection("motors")
	if s == nil {
		return fmt.Errorf("no [motors] section")
	}
	if _, err := s.Parse("left", "%s,%s,%t", &m.LeftDirPin, &m.LeftStepPin, &m.InvertLeft); err != nil {
		return err
	}
	if _, err := s.Parse("right", "%s,%s,%t", &m.RightDirPin, &m.RightStepPin, &m.InvertRight); err != nil {
		return err
	}
	return nil
}

func parsePen(conf *config.Config, p *Pen) error {
	s := conf.GetSection("pen")
	if s == nil {
		return fmt.Errorf("no [pen] section")
	}
	if _, err := s.Parse("servo", "%s", &p.ServoPin); err != nil {
		return err
	}
	if _, err := s.Parse("duty", "%d,%d", &p.UpDutyPercent, &p.DownDutyPercent); err != nil {
		return err
	}
	period, err := s.GetArg("period")
	if err != nil {
		return err
	}
	p.Period, err = time.ParseDuration(period)
	if err != nil {
		return fmt.Errorf("period: %v", err)
	}
	settle, err := s.GetArg("settle")
	if err != nil {
		return err
	}
	p.Settle, err = time.ParseDuration(settle)
	if err != nil {
		return fmt.Errorf("settle: %v", err)
	}
	return nil
}

// Supervisor is the supervisor-side configuration: where the device
// lives and how batching/polling is paced.
//
// Sample config:
//  [supervisor]
//  device_url=http://polargraph.local:8080
//  batch_size=100
//  request_timeout=5s
//  poll_interval=3s
//  poll_timeout=2s
//  stale_after=10s
//  max_retries=5
type Supervisor struct {
	DeviceURL      string
	BatchSize      int
	RequestTimeout time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration
	StaleAfter     time.Duration
	MaxRetries     int
}

// LoadSupervisor parses the supervisor configuration file.
func LoadSupervisor(path string) (*Supervisor, error) {
	conf, err := config.ParseFile(path)
	if err != nil {
		return nil, err
	}
	s := conf.GetSection("supervisor")
	if s == nil {
		return nil, fmt.Errorf("no [supervisor] section")
	}
	var sup Supervisor
	if _, err := s.Parse("device_url", "%s", &sup.DeviceURL); err != nil {
		return nil, err
	}
	if _, err := s.Parse("batch_size", "%d", &sup.BatchSize); err != nil {
		return nil, err
	}
	if _, err := s.Parse("max_retries", "%d", &sup.MaxRetries); err != nil {
		return nil, err
	}
	for _, d := range []struct {
		key string
		out *time.Duration
	}{
		{"request_timeout", &sup.RequestTimeout},
		{"poll_interval", &sup.PollInterval},
		{"poll_timeout", &sup.PollTimeout},
		{"stale_after", &sup.StaleAfter},
	} {
		v, err := s.GetArg(d.key)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", d.key, err)
		}
		*d.out, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", d.key, err)
		}
	}
	return &sup, nil
}
