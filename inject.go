package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"midicccv/midicc"
)

// parseInjectText parses a list of control changes such as "10:127 10:0 2/74:-5".
// Each token is cc:value or channel/cc:value with a 1-based channel. Values
// may be negative to reach the 8th bit.
func parseInjectText(text string) ([]midicc.Message, error) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '|'
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	msgs := make([]midicc.Message, 0, len(tokens))
	for _, tok := range tokens {
		msg, err := parseInjectToken(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid message %q: %w", tok, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func parseInjectToken(tok string) (midicc.Message, error) {
	t := strings.TrimSpace(tok)
	ccPart, valuePart, ok := strings.Cut(t, ":")
	if !ok {
		return midicc.Message{}, fmt.Errorf("missing ':'")
	}

	channel := 1
	if chPart, rest, hasChannel := strings.Cut(ccPart, "/"); hasChannel {
		ch, err := strconv.Atoi(chPart)
		if err != nil {
			return midicc.Message{}, fmt.Errorf("invalid channel: %w", err)
		}
		if ch < 1 || ch > 16 {
			return midicc.Message{}, fmt.Errorf("channel out of range: %d", ch)
		}
		channel = ch
		ccPart = rest
	}

	cc, err := strconv.Atoi(ccPart)
	if err != nil {
		return midicc.Message{}, fmt.Errorf("invalid controller: %w", err)
	}
	if cc < 0 || cc >= midicc.NumControllers {
		return midicc.Message{}, fmt.Errorf("controller out of range: %d", cc)
	}

	value, err := strconv.Atoi(valuePart)
	if err != nil {
		return midicc.Message{}, fmt.Errorf("invalid value: %w", err)
	}
	if value < -128 || value > 127 {
		return midicc.Message{}, fmt.Errorf("value out of range: %d", value)
	}

	return midicc.ControlChange(uint8(channel-1), uint8(cc), int8(value)), nil
}

// inject pushes msgs into the host's input queue and returns how many were
// accepted.
func inject(h *Host, msgs []midicc.Message) int {
	n := 0
	for _, msg := range msgs {
		if h.Queue().Push(msg) {
			n++
		}
	}
	return n
}
