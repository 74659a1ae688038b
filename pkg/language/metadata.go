package language

import (
	"encoding/json"
	"fmt"
)

// Metadata is the per-cell state an adapter threads through a round trip.
// It is one of PythonMetadata, MarkdownMetadata or SQLMetadata.
type Metadata interface {
	Language() Type
	metadata()
}

// PythonMetadata is empty: Python cells carry nothing extra.
type PythonMetadata struct{}

// MarkdownMetadata records the prose literal's quote style.
type MarkdownMetadata struct {
	QuotePrefix string `json:"quotePrefix"`
}

// SQLMetadata records everything needed to re-synthesize an mo.sql call.
type SQLMetadata struct {
	DataframeName string   `json:"dataframeName"`
	QuotePrefix   string   `json:"quotePrefix"`
	CommentLines  []string `json:"commentLines"`
	ShowOutput    bool     `json:"showOutput"`
	Engine        string   `json:"engine"`
}

func (PythonMetadata) Language() Type   { return Python }
func (MarkdownMetadata) Language() Type { return Markdown }
func (SQLMetadata) Language() Type      { return SQL }

func (PythonMetadata) metadata()   {}
func (MarkdownMetadata) metadata() {}
func (SQLMetadata) metadata()      {}

// Clone returns a copy that shares no slices with m.
func (m SQLMetadata) Clone() SQLMetadata {
	m.CommentLines = append([]string{}, m.CommentLines...)
	return m
}

// MarshalMetadata encodes m as JSON.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s metadata: %w", m.Language(), err)
	}
	return data, nil
}

// UnmarshalMetadata decodes JSON produced by MarshalMetadata for the given
// language. Empty data yields the zero metadata of that language.
func UnmarshalMetadata(t Type, data []byte) (Metadata, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	var (
		out Metadata
		err error
	)
	switch t {
	case Python:
		out = PythonMetadata{}
	case Markdown:
		var m MarkdownMetadata
		err = json.Unmarshal(data, &m)
		out = m
	case SQL:
		var m SQLMetadata
		err = json.Unmarshal(data, &m)
		if m.CommentLines == nil {
			m.CommentLines = []string{}
		}
		out = m
	default:
		return nil, &UnknownLanguageError{Name: string(t), Available: typeNames()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s metadata: %w", t, err)
	}
	return out, nil
}
