package midicc

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

const (
	StatusNoteOff       = 0x8
	StatusNoteOn        = 0x9
	StatusControlChange = 0xb

	statusMask  = 0xf0
	channelMask = 0x0f
)

// Message is a decoded three byte channel message. The data bytes are kept
// exactly as received, including a set 8th bit.
type Message struct {
	Status byte
	Data1  byte
	Data2  byte
}

// StatusNibble returns the message type, e.g. 0xb for control change.
func (m Message) StatusNibble() byte {
	return (m.Status & statusMask) >> 4
}

func (m Message) Channel() byte {
	return m.Status & channelMask
}

// Note returns the note or controller number.
func (m Message) Note() byte {
	return m.Data1
}

// Value returns data2 as a signed byte. Some drivers (gamepads in particular)
// set the 8th bit to send negative values.
func (m Message) Value() int8 {
	return int8(m.Data2)
}

func (m Message) String() string {
	return fmt.Sprintf("Message{status:0x%x, ch:%d, d1:%d, d2:%d}",
		m.StatusNibble(), m.Channel(), m.Data1, m.Data2)
}

// DecodeMessage converts a raw gomidi message. Only three byte channel
// messages are accepted; sysex, realtime and system common messages are not.
//
// The bytes are read directly rather than through GetControlChange, which
// masks the value to 7 bits.
func DecodeMessage(msg midi.Message) (Message, bool) {
	if len(msg) != 3 {
		return Message{}, false
	}
	if msg[0] < 0x80 || msg[0] >= 0xf0 {
		return Message{}, false
	}
	return Message{Status: msg[0], Data1: msg[1], Data2: msg[2]}, true
}

// ControlChange builds a CC message with a raw (possibly negative) value.
func ControlChange(channel, controller uint8, value int8) Message {
	return Message{
		Status: StatusControlChange<<4 | channel&channelMask,
		Data1:  controller,
		Data2:  byte(value),
	}
}
