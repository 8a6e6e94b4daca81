package connection

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/mediaroute/internal/model"
)

// EncodeBatch builds a route_messages frame for msgs.
func EncodeBatch(routeID string, msgs []model.RouteMessage) ([]byte, error) {
	frame := RouteMessagesFrame{
		Type:     TypeRouteMessages,
		RouteID:  routeID,
		Messages: make([]WireMessage, len(msgs)),
	}
	for i, m := range msgs {
		wm := WireMessage{ID: m.ID().String()}
		if m.IsBinary() {
			data := m.Data()
			wm.Binary = &data
		} else {
			text := m.Text()
			wm.Text = &text
		}
		frame.Messages[i] = wm
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode route_messages: %w", err)
	}
	return data, nil
}

// DecodeCommand parses an inbound frame and checks it is a known command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}

	switch cmd.Type {
	case TypeListen, TypeStopListening, TypeRouteRemoved:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	if cmd.RouteID == "" {
		return Command{}, ErrMissingRouteID
	}
	return cmd, nil
}
