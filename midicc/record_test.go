package midicc

import (
	"encoding/json"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	m, q := newTestModule()

	for cc := 0; cc < NumControllers; cc++ {
		q.Push(Message{Status: 0xb0, Data1: byte(cc), Data2: byte(cc * 2)})
	}
	m.ProcessCycle(testSampleTime, nil)
	for slot := 0; slot < NumSlots; slot++ {
		if err := m.SetMapping(slot, 127-slot*3); err != nil {
			t.Fatalf("SetMapping failed: %v", err)
		}
	}
	if err := q.SetChannel(9); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}

	rec, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		t.Fatalf("failed to marshal record: %v", err)
	}

	m2, q2 := newTestModule()
	var rec2 Record
	if err := json.Unmarshal(data, &rec2); err != nil {
		t.Fatalf("failed to unmarshal record: %v", err)
	}
	if err := m2.Deserialize(rec2); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if m2.Mapping() != m.Mapping() {
		t.Errorf("mapping mismatch: expected %v, got %v", m.Mapping(), m2.Mapping())
	}
	if m2.Values() != m.Values() {
		t.Errorf("values mismatch: expected %v, got %v", m.Values(), m2.Values())
	}
	if q2.Channel() != 9 {
		t.Errorf("expected midi channel 9, got %d", q2.Channel())
	}

	// Values above 63 were sent with the 8th bit set.
	if got := m2.Value(100); got != int8(-56) {
		t.Errorf("expected controller 100 to hold -56, got %d", got)
	}
}

func TestRecordKeys(t *testing.T) {
	m, _ := newTestModule()

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal module: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal module JSON: %v", err)
	}
	for _, key := range []string{"ccs", "values", "midi"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("key %q missing from %s", key, data)
		}
	}

	var ccs []int
	if err := json.Unmarshal(raw["ccs"], &ccs); err != nil {
		t.Fatalf("failed to decode ccs: %v", err)
	}
	if len(ccs) != NumSlots {
		t.Errorf("expected %d ccs, got %d", NumSlots, len(ccs))
	}
	var values []int
	if err := json.Unmarshal(raw["values"], &values); err != nil {
		t.Fatalf("failed to decode values: %v", err)
	}
	if len(values) != NumControllers {
		t.Errorf("expected %d values, got %d", NumControllers, len(values))
	}
}

func TestDeserializePartial(t *testing.T) {
	m, q := newTestModule()
	q.Push(ControlChange(0, 5, 42))
	m.ProcessCycle(testSampleTime, nil)
	before := m.Values()

	if err := m.UnmarshalJSON([]byte(`{"ccs": [20, 21]}`)); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}

	if m.Values() != before {
		t.Errorf("values changed by a record without values")
	}
	mapping := m.Mapping()
	if mapping[0] != 20 || mapping[1] != 21 {
		t.Errorf("expected slots 0 and 1 bound to 20 and 21, got %v", mapping[:2])
	}
	for slot := 2; slot < NumSlots; slot++ {
		if mapping[slot] != slot {
			t.Errorf("slot %d changed to %d by short record", slot, mapping[slot])
		}
	}
}

func TestDeserializeTolerance(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMapping func(m [NumSlots]int) bool
		wantValue   int8
	}{
		{
			name:        "empty object",
			input:       `{}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 && m[15] == 15 },
			wantValue:   0,
		},
		{
			name:        "long arrays",
			input:       `{"ccs": [1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1], "values": [` + repeat("9", 140) + `]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 1 && m[15] == 1 },
			wantValue:   9,
		},
		{
			name:        "out of range mapping",
			input:       `{"ccs": [300, -1, 7]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 && m[1] == 1 && m[2] == 7 },
			wantValue:   0,
		},
		{
			name:        "fractional value",
			input:       `{"ccs": [20, 21], "values": [1.5]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 20 && m[1] == 21 },
			wantValue:   0,
		},
		{
			name:        "scalar values",
			input:       `{"ccs": [20], "values": 5}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 20 && m[1] == 1 },
			wantValue:   0,
		},
		{
			name:        "string among values",
			input:       `{"ccs": [20, 21], "values": [3, "x", null]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 20 && m[1] == 21 },
			wantValue:   3,
		},
		{
			name:        "bad mapping entries",
			input:       `{"ccs": ["a", 2.5, null, 30, {}], "values": [4]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 && m[1] == 1 && m[2] == 2 && m[3] == 30 && m[4] == 4 },
			wantValue:   4,
		},
		{
			name:        "ccs not an array",
			input:       `{"ccs": {"0": 20}, "values": [-3]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 && m[15] == 15 },
			wantValue:   -3,
		},
		{
			name:        "not an object",
			input:       `[20, 21]`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 && m[1] == 1 },
			wantValue:   0,
		},
		{
			name:        "negative values",
			input:       `{"values": [-100]}`,
			wantMapping: func(m [NumSlots]int) bool { return m[0] == 0 },
			wantValue:   -100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModule()
			if err := m.UnmarshalJSON([]byte(tt.input)); err != nil {
				t.Fatalf("UnmarshalJSON failed: %v", err)
			}
			if !tt.wantMapping(m.Mapping()) {
				t.Errorf("unexpected mapping %v", m.Mapping())
			}
			if got := m.Value(0); got != tt.wantValue {
				t.Errorf("expected value %d, got %d", tt.wantValue, got)
			}
		})
	}
}

func TestDeserializeSkipsBadValueIndex(t *testing.T) {
	m, q := newTestModule()
	q.Push(ControlChange(0, 1, 50))
	m.ProcessCycle(testSampleTime, nil)

	if err := m.UnmarshalJSON([]byte(`{"values": [7, "x", 9]}`)); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if got := m.Value(0); got != 7 {
		t.Errorf("expected controller 0 = 7, got %d", got)
	}
	if got := m.Value(1); got != 50 {
		t.Errorf("expected controller 1 to keep 50, got %d", got)
	}
	if got := m.Value(2); got != 9 {
		t.Errorf("expected controller 2 = 9, got %d", got)
	}
}

func TestUnmarshalInvalidJSON(t *testing.T) {
	m, _ := newTestModule()
	if err := m.UnmarshalJSON([]byte(`{"ccs": [20`)); err == nil {
		t.Errorf("expected error for truncated JSON")
	}
}

func TestDeserializeKeepsCursor(t *testing.T) {
	m, _ := newTestModule()
	if err := m.Learn(6); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if err := m.UnmarshalJSON([]byte(`{"ccs": [1, 2, 3]}`)); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if slot, ok := m.Learning(); !ok || slot != 6 {
		t.Errorf("expected cursor learning(6), got %v", m.Cursor())
	}
}

func TestDeserializeBadMIDIRecord(t *testing.T) {
	m, _ := newTestModule()
	err := m.UnmarshalJSON([]byte(`{"ccs": [9], "midi": "not an object"}`))
	if err == nil {
		t.Fatalf("expected error for malformed midi record")
	}
	if got := m.Mapping()[0]; got != 9 {
		t.Errorf("mapping not applied before midi error, slot 0 = %d", got)
	}
}

func repeat(s string, n int) string {
	out := s
	for i := 1; i < n; i++ {
		out += "," + s
	}
	return out
}
