// Package midicc translates MIDI control change messages into sixteen smoothed
// control voltages.
//
// A Module drains its Input once per processing cycle, tracks the latest value
// of all 128 controllers, and drives one output per slot from the controller
// learned for that slot. Continuous controllers are smoothed with a one-pole
// filter; a 0 <-> 127 transition is treated as a button and jumps immediately.
//
// A Module is not safe for concurrent use. The host must not run
// ProcessCycle concurrently with itself or with Serialize/Deserialize.
package midicc

import (
	"errors"
	"fmt"
)

const (
	NumSlots       = 16
	NumControllers = 128

	// MaxVoltage is the output for a controller value of 127.
	MaxVoltage = 10.0

	// lambdaScale converts the sample period into the filter time constant.
	lambdaScale = 100
)

var (
	ErrSlotRange       = errors.New("midicc: slot out of range")
	ErrControllerRange = errors.New("midicc: controller out of range")
)

// ActiveFunc reports whether anything is connected to a slot's output.
type ActiveFunc func(slot int) bool

// Module is the MIDI-CC to CV engine.
type Module struct {
	input Input

	values  [NumControllers]int8
	mapping [NumSlots]int
	cursor  Cursor

	filters    [NumSlots]ExponentialFilter
	lastValues [NumSlots]int8
	voltages   [NumSlots]float64
}

// New returns a reset Module reading from in.
func New(in Input) *Module {
	m := &Module{input: in}
	m.Reset()
	return m
}

// Reset zeroes the value table, restores the identity mapping, stops learning
// and resets the input.
func (m *Module) Reset() {
	for i := range m.values {
		m.values[i] = 0
	}
	for i := range m.mapping {
		m.mapping[i] = i
	}
	m.cursor = NoSlot
	m.filters = [NumSlots]ExponentialFilter{}
	m.lastValues = [NumSlots]int8{}
	m.voltages = [NumSlots]float64{}
	if m.input != nil {
		m.input.Reset()
	}
}

// ProcessCycle drains pending messages and advances every active output by
// one step. sampleTime is the elapsed time in seconds since the previous
// cycle. A nil active treats every output as connected.
//
// Inactive outputs are skipped entirely: their filters do not advance and
// their button detection keeps the value seen on the last active cycle.
func (m *Module) ProcessCycle(sampleTime float64, active ActiveFunc) {
	if m.input != nil {
		for {
			msg, ok := m.input.Shift()
			if !ok {
				break
			}
			m.processMessage(msg)
		}
	}

	lambda := sampleTime * lambdaScale
	for i := 0; i < NumSlots; i++ {
		if active != nil && !active(i) {
			continue
		}

		cc := m.mapping[i]
		raw := m.values[cc]
		value := Rescale(float64(raw), 0, 127, 0, MaxVoltage)
		f := &m.filters[i]
		f.Lambda = lambda

		// MIDI buttons send 0 and 127 only.
		if (m.lastValues[i] == 0 && raw == 127) || (m.lastValues[i] == 127 && raw == 0) {
			f.Jump(value)
		} else {
			f.Process(value)
		}
		m.lastValues[i] = raw
		m.voltages[i] = f.Out
	}
}

func (m *Module) processMessage(msg Message) {
	switch msg.StatusNibble() {
	case StatusControlChange:
		cc := int(msg.Note())
		if cc < 0 || cc >= NumControllers {
			return
		}
		value := msg.Value()
		m.learn(cc, value)
		m.values[cc] = value
	default:
	}
}

// Voltage returns the last output of slot, or 0 for an invalid slot.
func (m *Module) Voltage(slot int) float64 {
	if !validSlot(slot) {
		return 0
	}
	return m.voltages[slot]
}

func (m *Module) Voltages() [NumSlots]float64 {
	return m.voltages
}

// Mapping returns the controller number learned for each slot.
func (m *Module) Mapping() [NumSlots]int {
	return m.mapping
}

// SetMapping binds slot to controller cc directly.
func (m *Module) SetMapping(slot, cc int) error {
	if !validSlot(slot) {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	if cc < 0 || cc >= NumControllers {
		return fmt.Errorf("%w: %d", ErrControllerRange, cc)
	}
	m.mapping[slot] = cc
	return nil
}

// Value returns the raw value last received for controller cc.
func (m *Module) Value(cc int) int8 {
	if cc < 0 || cc >= NumControllers {
		return 0
	}
	return m.values[cc]
}

func (m *Module) Values() [NumControllers]int8 {
	return m.values
}

func (m *Module) Input() Input {
	return m.input
}
