package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"midicccv/midicc"
)

const defaultRate = 1000 // processing cycles per second

// Host owns a Module and plays the part of the modular host: it supplies the
// sample clock, reports which outputs are connected and keeps persistence
// calls from running during a processing cycle.
type Host struct {
	lock   sync.Mutex
	module *midicc.Module
	queue  *midicc.InputQueue
	active [midicc.NumSlots]bool
	last   time.Time
}

func NewHost() *Host {
	q := midicc.NewInputQueue()
	h := &Host{
		module: midicc.New(q),
		queue:  q,
	}
	for i := range h.active {
		h.active[i] = true
	}
	return h
}

func (h *Host) Queue() *midicc.InputQueue {
	return h.queue
}

// isActive is passed to ProcessCycle and must only be called with h.lock held.
func (h *Host) isActive(slot int) bool {
	return h.active[slot]
}

// Step runs one processing cycle with the given sample period in seconds.
func (h *Host) Step(sampleTime float64) {
	h.lock.Lock()
	h.module.ProcessCycle(sampleTime, h.isActive)
	h.lock.Unlock()
}

// Run steps the module at rate cycles per second until ctx is done. The sample
// period passed to each cycle is the measured time since the previous one.
// onTick, if set, is called after every cycle.
func (h *Host) Run(ctx context.Context, rate int, onTick func()) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %d", rate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	h.last = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(h.last).Seconds()
			h.last = now
			h.Step(dt)
			if onTick != nil {
				onTick()
			}
		}
	}
}

// Do runs fn with exclusive access to the module.
func (h *Host) Do(fn func(m *midicc.Module) error) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return fn(h.module)
}

func (h *Host) Voltages() [midicc.NumSlots]float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.module.Voltages()
}

// SetActive marks an output as connected or disconnected.
func (h *Host) SetActive(slot int, active bool) error {
	if slot < 0 || slot >= midicc.NumSlots {
		return fmt.Errorf("%w: %d", midicc.ErrSlotRange, slot)
	}
	h.lock.Lock()
	h.active[slot] = active
	h.lock.Unlock()
	return nil
}

func (h *Host) Active() [midicc.NumSlots]bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.active
}

func (h *Host) Learn(slot int) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.module.Learn(slot)
}

func (h *Host) CancelLearn() {
	h.lock.Lock()
	h.module.CancelLearn()
	h.lock.Unlock()
}

// Status returns a snapshot of every slot with 1-based slot numbers.
func (h *Host) Status() []SlotStatus {
	h.lock.Lock()
	defer h.lock.Unlock()

	mapping := h.module.Mapping()
	voltages := h.module.Voltages()
	learning, isLearning := h.module.Learning()

	status := make([]SlotStatus, midicc.NumSlots)
	for i := range status {
		status[i] = SlotStatus{
			Slot:       i + 1,
			Controller: mapping[i],
			Voltage:    voltages[i],
			Active:     h.active[i],
			Learning:   isLearning && learning == i,
		}
	}
	return status
}

// Reset resets the module. Output connections are host state and are kept.
func (h *Host) Reset() {
	h.lock.Lock()
	h.module.Reset()
	h.lock.Unlock()
}
