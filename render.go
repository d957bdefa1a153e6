package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midicccv/midicc"
)

type timedMessage struct {
	micros int64
	msg    midicc.Message
}

// readSMF returns the channel messages of every track in r ordered by time.
func readSMF(r io.Reader) ([]timedMessage, error) {
	var events []timedMessage
	rd := smf.ReadTracksFrom(r).Do(func(ev smf.TrackEvent) {
		msg, ok := midicc.DecodeMessage(midi.Message(ev.Message))
		if !ok {
			return
		}
		events = append(events, timedMessage{micros: ev.AbsMicroSeconds, msg: msg})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].micros < events[j].micros
	})
	return events, nil
}

// renderOptions controls an offline render.
type renderOptions struct {
	Rate  int     // cycles per second
	Every int     // write one row every N cycles
	Tail  float64 // seconds rendered after the last event
}

// render plays events through h at a fixed sample rate and writes a CSV row
// of all slot voltages every opts.Every cycles.
func render(h *Host, events []timedMessage, opts renderOptions, w io.Writer) error {
	if opts.Rate <= 0 {
		return fmt.Errorf("invalid rate %d", opts.Rate)
	}
	if opts.Every <= 0 {
		opts.Every = 1
	}

	var end float64
	if len(events) > 0 {
		end = float64(events[len(events)-1].micros) / 1e6
	}
	end += opts.Tail
	sampleTime := 1 / float64(opts.Rate)
	cycles := int(end*float64(opts.Rate)) + 1

	bw := bufio.NewWriter(w)
	bw.WriteString("time")
	for i := 1; i <= midicc.NumSlots; i++ {
		fmt.Fprintf(bw, ",out%d", i)
	}
	bw.WriteString("\n")

	next := 0
	buf := make([]byte, 0, 32)
	for k := 0; k < cycles; k++ {
		now := int64(k) * 1e6 / int64(opts.Rate)
		for next < len(events) && events[next].micros <= now {
			h.Queue().Push(events[next].msg)
			next++
		}
		h.Step(sampleTime)

		if k%opts.Every != 0 {
			continue
		}
		buf = strconv.AppendFloat(buf[:0], float64(k)*sampleTime, 'f', 6, 64)
		bw.Write(buf)
		for _, v := range h.Voltages() {
			buf = append(buf[:0], ',')
			buf = strconv.AppendFloat(buf, v, 'f', 6, 64)
			bw.Write(buf)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}
