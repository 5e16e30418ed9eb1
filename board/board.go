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

// Package board manages the GPIO pins the controller drives, on top of
// the periph.io host/conn stack.
package board

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Setter is the minimal interface the rest of the controller needs from
// an output: a single digital level write.
type Setter interface {
	Set(high bool) error
}

// Init loads the periph.io host drivers. It must be called once, before
// any call to OutputPin, when driving real hardware.
func Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "board: host init")
	}
	return nil
}

// pin adapts a periph.io gpio.PinIO to Setter.
type pin struct {
	p    gpio.PinIO
	name string
}

// OutputPin looks up a GPIO pin by its periph.io name (e.g. "GPIO17")
// and configures it as a digital output, initially low.
func OutputPin(name string) (Setter, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("board: unknown pin %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "board: pin %s", name)
	}
	return &pin{p: p, name: name}, nil
}

func (g *pin) Set(high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	if err := g.p.Out(l); err != nil {
		return errors.Wrapf(err, "board: set pin %s", g.name)
	}
	return nil
}

// SetAll writes multiple pins together and combines any independent
// errors instead of stopping at the first, since the pins are
// electrically unrelated and each write should still be attempted.
func SetAll(pins []Setter, values []bool) error {
	var err error
	for i, p := range pins {
		err = multierr.Append(err, p.Set(values[i]))
	}
	return err
}
