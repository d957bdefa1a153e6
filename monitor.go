package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"midicccv/midicc"
)

const minBarWidth = 10

// monitor draws the slot voltages. On a terminal it redraws one bar per slot
// in place; otherwise it logs a single line per call.
type monitor struct {
	w       io.Writer
	fd      int
	isTerm  bool
	started bool
}

func newMonitor(f *os.File) *monitor {
	fd := int(f.Fd())
	return &monitor{w: f, fd: fd, isTerm: term.IsTerminal(fd)}
}

func (m *monitor) barWidth() int {
	width, _, err := term.GetSize(m.fd)
	if err != nil {
		return 40
	}
	// "16 cc127 -10.000V [" + bar + "]"
	width -= 22
	if width < minBarWidth {
		return minBarWidth
	}
	return width
}

func (m *monitor) draw(status []SlotStatus) {
	if !m.isTerm {
		parts := make([]string, len(status))
		for i, s := range status {
			parts[i] = fmt.Sprintf("%d:%.2f", s.Slot, s.Voltage)
		}
		log.Println("[monitor]", strings.Join(parts, " "))
		return
	}

	var sb strings.Builder
	if m.started {
		// Move back up over the previous frame.
		fmt.Fprintf(&sb, "\x1b[%dA", len(status))
	}
	m.started = true

	width := m.barWidth()
	for _, s := range status {
		sb.WriteString("\x1b[2K")
		marker := " "
		if s.Learning {
			marker = "*"
		} else if !s.Active {
			marker = "-"
		}
		fmt.Fprintf(&sb, "%2d%s cc%-3d %7.3fV [%s]\n", s.Slot, marker, s.Controller, s.Voltage, bar(s.Voltage, width))
	}
	fmt.Fprint(m.w, sb.String())
}

// bar renders v in [0, MaxVoltage] as a fixed width bar. Values outside the
// range are clipped for display only.
func bar(v float64, width int) string {
	n := int(v / midicc.MaxVoltage * float64(width))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return strings.Repeat("#", n) + strings.Repeat(" ", width-n)
}
