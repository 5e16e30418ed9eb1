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

// polargraphd program
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aamcrae/polargraph/api"
	"github.com/aamcrae/polargraph/board"
	"github.com/aamcrae/polargraph/config"
	"github.com/aamcrae/polargraph/kinematics"
	"github.com/aamcrae/polargraph/motion"
	"github.com/aamcrae/polargraph/pen"
	"github.com/aamcrae/polargraph/pulse"
)

var configFile = flag.String("config", "", "Configuration file")
var port = flag.Int("port", 8080, "Web server port number")

func main() {
	flag.Parse()
	conf, err := config.LoadDevice(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	if err := board.Init(); err != nil {
		log.Fatalf("board init: %v", err)
	}
	c, err := setup(conf)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	stop := make(chan struct{})
	go c.Run(stop, func() { time.Sleep(5 * time.Millisecond) })

	srv := api.NewServer(c)
	log.Printf("polargraphd listening on :%d", *port)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *port), srv))
}

// setup builds the pin set, pen actuator and motion controller
// described by conf.
func setup(conf *config.Device) (*motion.Controller, error) {
	leftDir, err := board.OutputPin(conf.Motors.LeftDirPin)
	if err != nil {
		return nil, fmt.Errorf("left dir pin: %v", err)
	}
	leftStep, err := board.OutputPin(conf.Motors.LeftStepPin)
	if err != nil {
		return nil, fmt.Errorf("left step pin: %v", err)
	}
	rightDir, err := board.OutputPin(conf.Motors.RightDirPin)
	if err != nil {
		return nil, fmt.Errorf("right dir pin: %v", err)
	}
	rightStep, err := board.OutputPin(conf.Motors.RightStepPin)
	if err != nil {
		return nil, fmt.Errorf("right step pin: %v", err)
	}
	servoPin, err := board.OutputPin(conf.Pen.ServoPin)
	if err != nil {
		return nil, fmt.Errorf("servo pin: %v", err)
	}

	penActuator := pen.New(servoPin, pen.Config{
		UpDutyPercent:   conf.Pen.UpDutyPercent,
		DownDutyPercent: conf.Pen.DownDutyPercent,
		Period:          conf.Pen.Period,
		Settle:          conf.Pen.Settle,
	})

	pins := pulse.Pins{
		LeftDir: leftDir, LeftStep: leftStep,
		RightDir: rightDir, RightStep: rightStep,
		InvertLeft: conf.Motors.InvertLeft, InvertRight: conf.Motors.InvertRight,
	}
	geom := kinematics.Geometry{
		BoardWidthMM:    conf.Board.WidthMM,
		BoardHeightMM:   conf.Board.HeightMM,
		PenOffsetMM:     conf.Board.PenOffsetMM,
		MotorOffsetMM:   conf.Board.MotorOffsetMM,
		SpoolDiameterMM: conf.Board.SpoolDiameterMM,
		StepsPerRev:     conf.Board.StepsPerRev,
		Microsteps:      conf.Board.Microsteps,
	}

	c := motion.New(geom, conf.Board.QueueCapacity, pins, penActuator)
	c.ParkXMM, c.ParkYMM = conf.Board.ParkXMM, conf.Board.ParkYMM
	return c, nil
}
