package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode reads a YAML catalog snapshot. Unknown fields are rejected so
// typos in hand-written catalogs surface early.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadFile reads a YAML catalog snapshot from path.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	snap, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// WriteFile writes snap to path as YAML.
func WriteFile(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Validate checks that every connection is named and names are unique.
func (s *Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Connections))
	for i, c := range s.Connections {
		if c.Name == "" {
			return fmt.Errorf("connection %d: name is required", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate connection name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// WithDefaultConnection returns the snapshot's connections with the
// built-in engine prepended when the snapshot does not declare it.
func (s *Snapshot) WithDefaultConnection() *Snapshot {
	for _, c := range s.Connections {
		if c.Name == DefaultEngine {
			return s
		}
	}
	out := *s
	out.Connections = append([]Connection{*DefaultConnection()}, s.Connections...)
	return &out
}
