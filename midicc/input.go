package midicc

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	// QueueCapacity is the number of pending messages an InputQueue holds
	// before it starts refusing new ones.
	QueueCapacity = 8192

	// AllChannels disables channel filtering.
	AllChannels = -1
)

// Input is the message source the Module drains on every cycle. Shift must not
// block.
type Input interface {
	Shift() (Message, bool)
	Reset()
	MarshalRecord() (json.RawMessage, error)
	UnmarshalRecord(data json.RawMessage) error
}

// InputQueue is a bounded FIFO filled by a MIDI transport thread and drained by
// the processing thread.
type InputQueue struct {
	lock    sync.Mutex
	buf     []Message
	head    int
	size    int
	dropped int64

	driver     string
	deviceName string
	channel    int
}

// inputRecord is the persisted form of an InputQueue.
type inputRecord struct {
	Driver     *string `json:"driver,omitempty"`
	DeviceName *string `json:"deviceName,omitempty"`
	Channel    *int    `json:"channel,omitempty"`
}

func NewInputQueue() *InputQueue {
	return &InputQueue{
		buf:     make([]Message, QueueCapacity),
		channel: AllChannels,
	}
}

// Push enqueues a message. It returns false when the message was filtered out
// by channel or refused because the queue is full.
func (q *InputQueue) Push(msg Message) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.channel != AllChannels && int(msg.Channel()) != q.channel {
		return false
	}
	if q.size == len(q.buf) {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.size)%len(q.buf)] = msg
	q.size++
	return true
}

func (q *InputQueue) Shift() (Message, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.size == 0 {
		return Message{}, false
	}
	msg := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return msg, true
}

// Len returns the number of pending messages.
func (q *InputQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

// Dropped returns how many messages were refused because the queue was full.
func (q *InputQueue) Dropped() int64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.dropped
}

// Reset empties the queue and clears the channel filter. The device binding
// is kept.
func (q *InputQueue) Reset() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.head = 0
	q.size = 0
	q.dropped = 0
	q.channel = AllChannels
}

func (q *InputQueue) Channel() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.channel
}

// SetChannel restricts the queue to one MIDI channel (0-15), or to all of them
// with AllChannels.
func (q *InputQueue) SetChannel(channel int) error {
	if channel != AllChannels && (channel < 0 || channel > 15) {
		return fmt.Errorf("midi channel %d out of range", channel)
	}
	q.lock.Lock()
	q.channel = channel
	q.lock.Unlock()
	return nil
}

// Device returns the driver and device name the queue was last bound to.
func (q *InputQueue) Device() (driver, deviceName string) {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.driver, q.deviceName
}

func (q *InputQueue) SetDevice(driver, deviceName string) {
	q.lock.Lock()
	q.driver = driver
	q.deviceName = deviceName
	q.lock.Unlock()
}

// Listen starts feeding the queue from a gomidi input port. The port is opened
// by midi.ListenTo if necessary; call stop to detach.
func (q *InputQueue) Listen(in drivers.In) (stop func(), err error) {
	stop, err = midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		if m, ok := DecodeMessage(msg); ok {
			q.Push(m)
		}
	}, midi.HandleError(func(listenErr error) {
		log.Printf("[midi] listener error on %q: %v", in.String(), listenErr)
	}))
	if err != nil {
		return nil, fmt.Errorf("listen to %q: %w", in.String(), err)
	}

	q.lock.Lock()
	q.deviceName = in.String()
	q.lock.Unlock()
	return stop, nil
}

func (q *InputQueue) MarshalRecord() (json.RawMessage, error) {
	q.lock.Lock()
	rec := inputRecord{
		Driver:     &q.driver,
		DeviceName: &q.deviceName,
		Channel:    &q.channel,
	}
	data, err := json.Marshal(&rec)
	q.lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal midi input: %w", err)
	}
	return data, nil
}

// UnmarshalRecord applies a persisted record. Absent fields keep their current
// value; an out of range channel is ignored.
func (q *InputQueue) UnmarshalRecord(data json.RawMessage) error {
	var rec inputRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal midi input: %w", err)
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	if rec.Driver != nil {
		q.driver = *rec.Driver
	}
	if rec.DeviceName != nil {
		q.deviceName = *rec.DeviceName
	}
	if rec.Channel != nil && (*rec.Channel == AllChannels || (*rec.Channel >= 0 && *rec.Channel <= 15)) {
		q.channel = *rec.Channel
	}
	return nil
}
