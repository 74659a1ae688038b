package language

import (
	"sync"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// EngineState is the process-wide "latest engine selected" slot. New query
// cells default to it, and the SQL adapter updates it whenever it reads a
// cell bound to a non-default engine.
type EngineState struct {
	mu       sync.Mutex
	latest   string
	explicit bool
	onChange func(string)
}

// NewEngineState returns a slot holding the default engine.
func NewEngineState() *EngineState {
	return &EngineState{latest: catalog.DefaultEngine}
}

// Latest returns the latest selected engine.
func (s *EngineState) Latest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// SetLatest records name as the latest selected engine. Empty names are
// ignored.
func (s *EngineState) SetLatest(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	changed := s.latest != name
	s.latest = name
	s.explicit = true
	hook := s.onChange
	s.mu.Unlock()

	if changed && hook != nil {
		hook(name)
	}
}

// InitFromConnections seeds the slot with the first connection name unless
// an engine was already selected explicitly.
func (s *EngineState) InitFromConnections(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explicit || len(names) == 0 || names[0] == "" {
		return
	}
	s.latest = names[0]
}

// OnChange registers fn to run after SetLatest changes the slot.
func (s *EngineState) OnChange(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}
