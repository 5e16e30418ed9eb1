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

// Package simboard implements the board.Setter interface with pure Go
// state instead of real GPIO pins, so the full daemon can run and be
// tested on a host with no hardware attached. Adapted from the reference
// clock daemon's simulator, which stands in for real stepper/encoder
// hardware in the same way.
package simboard

import "sync"

// Pin is a simulated digital output pin. Its observable effects are the
// last value written, which tests can inspect via Get, and the number of
// writes, via Sets.
type Pin struct {
	name string

	mu    sync.Mutex
	level bool
	sets  int
}

// OutputPin creates a new simulated output pin, initially low.
func OutputPin(name string) *Pin {
	return &Pin{name: name}
}

func (p *Pin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = high
	p.sets++
	return nil
}

// Get returns the last value written to the pin.
func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Sets returns the number of times Set has been called, useful for
// asserting on pulse counts in tests.
func (p *Pin) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

func (p *Pin) Name() string { return p.name }
