package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"midicccv/midicc"
)

// HostState is the layout of the state file.
type HostState struct {
	Module *midicc.Record `json:"module,omitempty"`
	Active []bool         `json:"active,omitempty"`

	// skipActive marks entries of Active that were not booleans in the file.
	skipActive []bool
}

// UnmarshalJSON decodes "module" and "active" independently. A field of the
// wrong type is treated as absent and non-boolean entries of "active" are
// skipped.
func (st *HostState) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return err
		}
	}
	*st = HostState{}

	if raw, ok := fields["module"]; ok && string(raw) != "null" {
		var rec midicc.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal module state: %w", err)
		}
		st.Module = &rec
	}

	var elems []json.RawMessage
	if raw, ok := fields["active"]; ok && json.Unmarshal(raw, &elems) == nil && elems != nil {
		st.Active = make([]bool, len(elems))
		for i, e := range elems {
			if string(e) != "null" && json.Unmarshal(e, &st.Active[i]) == nil {
				continue
			}
			if st.skipActive == nil {
				st.skipActive = make([]bool, len(elems))
			}
			st.skipActive[i] = true
		}
	}
	return nil
}

// State captures the module and the output connections.
func (h *Host) State() (*HostState, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	rec, err := h.module.Serialize()
	if err != nil {
		return nil, err
	}
	st := &HostState{Module: &rec, Active: make([]bool, midicc.NumSlots)}
	copy(st.Active, h.active[:])
	return st, nil
}

// SetState applies st. Missing parts are left alone.
func (h *Host) SetState(st *HostState) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	for i := 0; i < midicc.NumSlots && i < len(st.Active); i++ {
		if i < len(st.skipActive) && st.skipActive[i] {
			continue
		}
		h.active[i] = st.Active[i]
	}
	if st.Module != nil {
		return h.module.Deserialize(*st.Module)
	}
	return nil
}

func decodeState(r io.Reader) (*HostState, error) {
	st := &HostState{}
	if err := json.NewDecoder(r).Decode(st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state JSON: %w", err)
	}
	return st, nil
}

// LoadStateFile applies the state stored at path. A missing file is not an
// error; the host keeps its defaults.
func (h *Host) LoadStateFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("no state file at %s, starting from defaults", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	st, err := decodeState(f)
	if err != nil {
		return err
	}
	return h.SetState(st)
}

func (h *Host) SaveStateFile(path string) error {
	if path == "" {
		return nil
	}
	st, err := h.State()
	if err != nil {
		return err
	}
	asJson, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state to JSON: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, asJson, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// dumpState prints the state stored at path, normalized through a fresh host.
func dumpState(path string, w io.Writer) error {
	h := NewHost()
	if err := h.LoadStateFile(path); err != nil {
		return err
	}
	st, err := h.State()
	if err != nil {
		return err
	}
	asJson, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(asJson))
	return err
}

// loadState reads a state record from r, applies it on top of the state at
// path and writes the result back.
func loadState(path string, r io.Reader) error {
	h := NewHost()
	if err := h.LoadStateFile(path); err != nil {
		return err
	}
	st, err := decodeState(r)
	if err != nil {
		return err
	}
	if err := h.SetState(st); err != nil {
		return err
	}
	return h.SaveStateFile(path)
}
