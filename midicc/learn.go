package midicc

import "fmt"

// Cursor records which output slot, if any, is waiting for a CC binding.
// The zero value is NoSlot.
type Cursor struct {
	slot     int
	learning bool
}

// NoSlot is the idle cursor.
var NoSlot = Cursor{}

// SlotCursor returns a cursor learning the given slot.
func SlotCursor(slot int) Cursor {
	return Cursor{slot: slot, learning: true}
}

// Slot returns the slot being learned and whether learning is active.
func (c Cursor) Slot() (int, bool) {
	return c.slot, c.learning
}

func (c Cursor) String() string {
	if !c.learning {
		return "idle"
	}
	return fmt.Sprintf("learning(%d)", c.slot)
}

// Cursor returns the current learning cursor.
func (m *Module) Cursor() Cursor {
	return m.cursor
}

// SetCursor replaces the learning cursor. Cursors pointing outside the slot
// range are rejected.
func (m *Module) SetCursor(c Cursor) error {
	if slot, ok := c.Slot(); ok && !validSlot(slot) {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	m.cursor = c
	return nil
}

// Learn makes slot wait for the next CC that changes value.
func (m *Module) Learn(slot int) error {
	return m.SetCursor(SlotCursor(slot))
}

func (m *Module) CancelLearn() {
	m.cursor = NoSlot
}

// Learning reports the slot currently awaiting a binding.
func (m *Module) Learning() (int, bool) {
	return m.cursor.Slot()
}

// learn binds the learning slot to cc if value differs from what the table
// currently holds. It runs before the table is overwritten.
func (m *Module) learn(cc int, value int8) {
	slot, ok := m.cursor.Slot()
	if !ok || m.values[cc] == value {
		return
	}
	m.mapping[slot] = cc
	m.cursor = NoSlot
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < NumSlots
}
