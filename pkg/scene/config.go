package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadParameters reads a JSON parameter file. Fields missing from the file
// keep their DefaultParameters values.
func LoadParameters(filename string) (Parameters, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer file.Close()

	params, err := DecodeParameters(file, DefaultParameters())
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	return params, nil
}

// DecodeParameters decodes JSON from r on top of base and validates the
// result. Unknown fields are rejected so typos do not go unnoticed.
func DecodeParameters(r io.Reader, base Parameters) (Parameters, error) {
	params := base.Clone()

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&params); err != nil {
		return Parameters{}, fmt.Errorf("invalid parameter JSON: %w", err)
	}

	if err := params.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("invalid parameters: %w", err)
	}
	return params, nil
}

// SaveParameters writes params as indented JSON
func SaveParameters(filename string, params Parameters) error {
	data, err := MarshalParameters(params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write parameter file: %w", err)
	}
	return nil
}

// MarshalParameters encodes params as indented JSON with a trailing newline
func MarshalParameters(params Parameters) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(params); err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	return buf.Bytes(), nil
}
