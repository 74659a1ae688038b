package language

import "strings"

// PythonAdapter is the identity view: host text is already Python.
type PythonAdapter struct{}

func (PythonAdapter) adapter() {}

// Type implements Adapter.
func (PythonAdapter) Type() Type { return Python }

// DefaultMetadata implements Adapter.
func (PythonAdapter) DefaultMetadata() Metadata { return PythonMetadata{} }

// DefaultCode implements Adapter.
func (PythonAdapter) DefaultCode() string { return "" }

// IsSupported always reports true: Python is the last-resort view.
func (PythonAdapter) IsSupported(string) bool { return true }

// TransformIn implements Adapter.
func (PythonAdapter) TransformIn(host string) (string, int, Metadata) {
	return strings.TrimSpace(host), 0, PythonMetadata{}
}

// TransformOut implements Adapter.
func (PythonAdapter) TransformOut(sub string, _ Metadata) (string, int) {
	return sub, 0
}

// Extension implements Adapter.
func (PythonAdapter) Extension() Extension {
	return Extension{Language: Python}
}
