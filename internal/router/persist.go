package router

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/mediaroute/internal/persist"
)

var _ persist.Persistable = (*Sender)(nil)

// PersistKey returns the key the sender registers under with the
// persistence manager.
func (s *Sender) PersistKey() string {
	return PersistKey
}

// MarshalState encodes a snapshot of the sender as JSON.
func (s *Sender) MarshalState() ([]byte, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalState decodes a JSON snapshot and restores it.
func (s *Sender) UnmarshalState(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Restore(snap)
}
