package midicc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Record is the persisted state of a Module. Every field is optional when
// read back; a nil field leaves that part of the module untouched.
type Record struct {
	CCs    []int           `json:"ccs,omitempty"`
	Values []int           `json:"values,omitempty"`
	MIDI   json.RawMessage `json:"midi,omitempty"`

	// skipCCs and skipValues mark decoded array elements that were not
	// integers. Those indices are left alone by Deserialize.
	skipCCs    []bool
	skipValues []bool
}

// UnmarshalJSON decodes each field on its own. A field of the wrong type is
// treated as absent and array elements that are not integers are skipped, so a
// bad entry never discards the rest of the record.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = Record{}
	r.CCs, r.skipCCs = decodeInts(fields["ccs"])
	r.Values, r.skipValues = decodeInts(fields["values"])
	if raw, ok := fields["midi"]; ok && string(raw) != "null" {
		r.MIDI = raw
	}
	return nil
}

// decodeObject splits a JSON object into its raw fields. Valid JSON that is not
// an object yields no fields.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, nil
		}
		return nil, err
	}
	return fields, nil
}

// decodeInts decodes a JSON array element by element. It returns nil when raw
// is missing or not an array.
func decodeInts(raw json.RawMessage) ([]int, []bool) {
	var elems []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &elems) != nil || elems == nil {
		return nil, nil
	}
	ints := make([]int, len(elems))
	var skip []bool
	for i, e := range elems {
		if string(e) != "null" && json.Unmarshal(e, &ints[i]) == nil {
			continue
		}
		if skip == nil {
			skip = make([]bool, len(elems))
		}
		skip[i] = true
	}
	return ints, skip
}

func skipped(skip []bool, i int) bool {
	return i < len(skip) && skip[i]
}

// Serialize captures the mapping, the value table and the input's own record.
// The learning cursor is not part of the record.
func (m *Module) Serialize() (Record, error) {
	rec := Record{
		CCs:    make([]int, NumSlots),
		Values: make([]int, NumControllers),
	}
	for i, cc := range m.mapping {
		rec.CCs[i] = cc
	}
	for i, v := range m.values {
		rec.Values[i] = int(v)
	}
	if m.input != nil {
		midiJ, err := m.input.MarshalRecord()
		if err != nil {
			return rec, err
		}
		rec.MIDI = midiJ
	}
	return rec, nil
}

// Deserialize applies rec. Short arrays only update the indices they carry,
// extra entries are ignored, and mapping entries outside the controller range
// are skipped, as are elements that did not decode as integers. Values are
// stored as signed bytes.
//
// The only error is a failure of the input to decode its sub-record; the
// mapping and values have already been applied by then.
func (m *Module) Deserialize(rec Record) error {
	if rec.CCs != nil {
		for i := 0; i < NumSlots && i < len(rec.CCs); i++ {
			cc := rec.CCs[i]
			if skipped(rec.skipCCs, i) || cc < 0 || cc >= NumControllers {
				continue
			}
			m.mapping[i] = cc
		}
	}

	if rec.Values != nil {
		for i := 0; i < NumControllers && i < len(rec.Values); i++ {
			if skipped(rec.skipValues, i) {
				continue
			}
			m.values[i] = int8(rec.Values[i])
		}
	}

	if rec.MIDI != nil && m.input != nil {
		if err := m.input.UnmarshalRecord(rec.MIDI); err != nil {
			return fmt.Errorf("midi record: %w", err)
		}
	}
	return nil
}

func (m *Module) MarshalJSON() ([]byte, error) {
	rec, err := m.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(&rec)
}

func (m *Module) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal module state: %w", err)
	}
	return m.Deserialize(rec)
}
