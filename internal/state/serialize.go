package state

import (
	"encoding/json"
	"fmt"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

// envelope is the wire form of a Session: the state tree plus the write
// counter, so replay detection survives a process boundary.
type envelope struct {
	Version uint64               `json:"version"`
	State   *domain.SessionState `json:"state"`
}

// Marshal serializes the session. Marshal and Unmarshal round-trip
// exactly; the state holds only JSON-tree values by construction.
func (s *Session) Marshal() ([]byte, error) {
	data, err := json.Marshal(envelope{Version: s.version, State: s.state})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

// Unmarshal reconstructs a session from Marshal output.
func Unmarshal(data []byte) (*Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if env.State == nil {
		return nil, fmt.Errorf("unmarshal session: missing state")
	}
	return &Session{state: env.State, version: env.Version}, nil
}
