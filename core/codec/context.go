package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
)

// EncodeValues writes the values-only form: a flat path to value map.
// This is the recommended persisted form of a context.
func EncodeValues(values map[string]value.Value) ([]byte, error) {
	return json.Marshal(values)
}

// DecodeValues reads the values-only form.
func DecodeValues(data []byte) (map[string]value.Value, error) {
	var values map[string]value.Value
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	if values == nil {
		values = make(map[string]value.Value)
	}
	return values, nil
}

// StateDoc is the full-state form of a context, for debugging and snapshots.
type StateDoc struct {
	SchemaVersion string                 `json:"schema_version" yaml:"schema_version"`
	Context       string                 `json:"context,omitempty" yaml:"context,omitempty"`
	Values        map[string]value.Value `json:"values" yaml:"values"`
	State         map[string]PathState   `json:"state" yaml:"state"`
	Errors        map[string][]ErrorDoc  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// PathState is the per-path bookkeeping of the full-state form.
type PathState struct {
	Dirty   bool `json:"dirty" yaml:"dirty"`
	Touched bool `json:"touched" yaml:"touched"`
	Valid   bool `json:"valid" yaml:"valid"`
	Visible bool `json:"visible" yaml:"visible"`
}

// ErrorDoc is one validation error of the full-state form.
type ErrorDoc struct {
	Rule     string `json:"rule" yaml:"rule"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Fault    bool   `json:"fault,omitempty" yaml:"fault,omitempty"`
	Mismatch bool   `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`
}

// StateToDoc converts a snapshot to its full-state document.
func StateToDoc(snap state.Snapshot) StateDoc {
	doc := StateDoc{
		SchemaVersion: snap.SchemaVersion,
		Context:       snap.Context,
		Values:        make(map[string]value.Value, len(snap.States)),
		State:         make(map[string]PathState, len(snap.States)),
	}
	for _, st := range snap.States {
		doc.Values[st.Path] = st.Value
		doc.State[st.Path] = PathState{Dirty: st.Dirty, Touched: st.Touched, Valid: st.Valid, Visible: st.Visible}
		if len(st.Errors) == 0 {
			continue
		}
		if doc.Errors == nil {
			doc.Errors = make(map[string][]ErrorDoc)
		}
		for _, fe := range st.Errors {
			doc.Errors[st.Path] = append(doc.Errors[st.Path], ErrorDoc{
				Rule:     string(fe.Rule),
				Name:     fe.Name,
				Message:  fe.Message,
				Fault:    fe.Fault,
				Mismatch: fe.Mismatch,
			})
		}
	}
	return doc
}

// DocToState converts a full-state document back to a snapshot. States are
// ordered by path; Restore matches them by path, not position.
func DocToState(doc StateDoc) (state.Snapshot, error) {
	if doc.SchemaVersion == "" {
		return state.Snapshot{}, fmt.Errorf("%w: state has no schema_version", ErrUnsupportedVersion)
	}
	paths := make([]string, 0, len(doc.State))
	for p := range doc.State {
		paths = append(paths, p)
	}
	for p := range doc.Values {
		if _, ok := doc.State[p]; !ok {
			return state.Snapshot{}, fmt.Errorf("%w: %s has a value but no state", schema.ErrUnknownPath, p)
		}
	}
	sort.Strings(paths)

	snap := state.Snapshot{SchemaVersion: doc.SchemaVersion, Context: doc.Context}
	for _, p := range paths {
		ps := doc.State[p]
		st := state.FieldState{
			Path:    p,
			Value:   doc.Values[p],
			Dirty:   ps.Dirty,
			Touched: ps.Touched,
			Valid:   ps.Valid,
			Visible: ps.Visible,
		}
		for _, ed := range doc.Errors[p] {
			st.Errors = append(st.Errors, validation.FieldError{
				Path:     p,
				Rule:     schema.RuleType(ed.Rule),
				Name:     ed.Name,
				Message:  ed.Message,
				Fault:    ed.Fault,
				Mismatch: ed.Mismatch,
			})
		}
		snap.States = append(snap.States, st)
	}
	return snap, nil
}

// EncodeState writes the full-state form of a snapshot as JSON.
func EncodeState(snap state.Snapshot) ([]byte, error) {
	return json.MarshalIndent(StateToDoc(snap), "", "  ")
}

// DecodeState reads the full-state form. Unknown fields are rejected.
func DecodeState(data []byte) (state.Snapshot, error) {
	var doc StateDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode state: %w", err)
	}
	return DocToState(doc)
}
