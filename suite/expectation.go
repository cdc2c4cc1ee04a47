package suite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pithecene-io/torture/condition"
	"github.com/pithecene-io/torture/iox"
)

// Expectation is the parsed output.json of a suite.
// Ports and Flags are opaque to the harness and forwarded verbatim to the
// generated program; the condition trees declare tolerated failures.
type Expectation struct {
	Ports          json.RawMessage        `json:"ports,omitempty"`
	Flags          json.RawMessage        `json:"flags,omitempty"`
	CompileFailsIf *condition.CompileTree `json:"compile-fails-if,omitempty"`
	RunFailsIf     *condition.RunTree     `json:"run-fails-if,omitempty"`
}

// LoadExpectation reads and validates the suite's output.json.
// A suite without the file has no expectations.
func (s *Suite) LoadExpectation() (*Expectation, error) {
	f, err := os.Open(filepath.Join(s.Path, ExpectationFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Expectation{}, nil
	}
	if err != nil {
		return nil, &ValidationError{Path: s.Path, Err: err}
	}
	defer iox.DiscardClose(f)

	exp, err := ParseExpectation(f)
	if err != nil {
		return nil, &ValidationError{Path: s.Path, Err: fmt.Errorf("invalid %s: %w", ExpectationFile, err)}
	}
	return exp, nil
}

// ParseExpectation decodes a descriptor, rejecting unknown fields and
// trailing data.
func ParseExpectation(r io.Reader) (*Expectation, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var exp Expectation
	if err := dec.Decode(&exp); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after descriptor")
	}
	if bytes.Equal(exp.Ports, []byte("null")) {
		exp.Ports = nil
	}
	if len(exp.Ports) > 0 {
		var events []json.RawMessage
		if err := json.Unmarshal(exp.Ports, &events); err != nil {
			return nil, fmt.Errorf("ports must be a list: %w", err)
		}
	}
	return &exp, nil
}

// Canonical returns the descriptor re-serialized in canonical form.
// This is the copy the runtime harness reads.
func (e *Expectation) Canonical() ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
