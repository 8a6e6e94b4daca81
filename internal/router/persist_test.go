package router

import (
	"errors"
	"testing"
)

func TestSender_MarshalUnmarshalState(t *testing.T) {
	s := NewSender(DefaultConfig(), nil, nil, nil)
	s.Listen("r1")
	s.SendText("r1", "hello")
	s.SendText("r2", "world")

	if s.PersistKey() != PersistKey {
		t.Errorf("PersistKey() = %q, want %q", s.PersistKey(), PersistKey)
	}

	data, err := s.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState() error = %v", err)
	}

	restored := NewSender(DefaultConfig(), nil, nil, nil)
	if err := restored.UnmarshalState(data); err != nil {
		t.Fatalf("UnmarshalState() error = %v", err)
	}

	stats := restored.Stats()
	if stats.QueuedMessages != 2 || stats.ListeningRoutes != 1 || stats.TotalMessageSize != 10 {
		t.Errorf("restored stats = %+v, want 2 queued, 1 listening, size 10", stats)
	}
}

func TestSender_MarshalStateWithBinary(t *testing.T) {
	s := NewSender(DefaultConfig(), nil, nil, nil)
	s.SendBinary("r1", []byte{1, 2, 3})

	if _, err := s.MarshalState(); !errors.Is(err, ErrBinaryPersistence) {
		t.Errorf("MarshalState() error = %v, want ErrBinaryPersistence", err)
	}
}

func TestSender_UnmarshalStateRejectsBinaryJSON(t *testing.T) {
	s := NewSender(DefaultConfig(), nil, nil, nil)

	data := []byte(`{"queues":{"r1":[{"text":"","binary":"AQI="}]},"listening_routes":[],"total_message_size":0}`)
	if err := s.UnmarshalState(data); !errors.Is(err, ErrBinaryPersistence) {
		t.Errorf("UnmarshalState() error = %v, want ErrBinaryPersistence", err)
	}
}

func TestSender_UnmarshalStateInvalidJSON(t *testing.T) {
	s := NewSender(DefaultConfig(), nil, nil, nil)

	if err := s.UnmarshalState([]byte(`{invalid json}`)); err == nil {
		t.Error("UnmarshalState() expected error for invalid JSON")
	}
}
