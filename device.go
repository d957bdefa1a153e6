package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrNoPorts = errors.New("no MIDI ports available")

func findInPort(nameFragment string) (drivers.In, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("inputs: %w", ErrNoPorts)
	}
	if nameFragment == "" {
		return ins[0], nil
	}

	lower := strings.ToLower(nameFragment)
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), lower) {
			return in, nil
		}
	}

	return nil, fmt.Errorf("no MIDI input contains %q", nameFragment)
}

func findOutPort(nameFragment string) (drivers.Out, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("outputs: %w", ErrNoPorts)
	}
	if nameFragment == "" {
		return outs[0], nil
	}

	lower := strings.ToLower(nameFragment)
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), lower) {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no MIDI output contains %q", nameFragment)
}

// attachInput connects the host's queue to the first input port whose name
// contains nameFragment. The returned closer detaches the listener and shuts
// the driver down.
func attachInput(h *Host, nameFragment string) (func(), error) {
	in, err := findInPort(nameFragment)
	if err != nil {
		return nil, err
	}

	stop, err := h.Queue().Listen(in)
	if err != nil {
		return nil, err
	}
	h.Queue().SetDevice("rtmidi", in.String())

	closer := func() {
		stop()
		_ = in.Close()
		drivers.Close()
	}
	log.Println("Listening on MIDI input port", in.Number(), in.String())
	return closer, nil
}

func printPorts() {
	log.Println("Available MIDI inputs:")
	log.Print(midi.GetInPorts().String())
	log.Println("Available MIDI outputs:")
	log.Print(midi.GetOutPorts().String())
}

// sendSweep sends a slow ramp on cc followed by a few button presses on
// cc+1. Pointed at a loopback port it exercises both the smoothing and the
// jump detection of a running instance.
func sendSweep(out drivers.Out, channel uint8, cc uint8) error {
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return err
		}
	}
	send := func(msg midi.Message) error {
		return out.Send(msg.Bytes())
	}

	for v := 0; v < 128; v += 4 {
		if err := send(midi.ControlChange(channel, cc, uint8(v))); err != nil {
			return fmt.Errorf("control change %d=%d failed: %w", cc, v, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	for i := 0; i < 4; i++ {
		if err := send(midi.ControlChange(channel, cc+1, 127)); err != nil {
			return fmt.Errorf("button press on %d failed: %w", cc+1, err)
		}
		time.Sleep(200 * time.Millisecond)
		if err := send(midi.ControlChange(channel, cc+1, 0)); err != nil {
			return fmt.Errorf("button release on %d failed: %w", cc+1, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}
