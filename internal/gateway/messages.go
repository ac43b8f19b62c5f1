package gateway

import (
	"encoding/json"
	"fmt"
)

// Client -> server message types.
const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgPing        = "ping"
)

// clientMessage is the envelope of every inbound client message.
type clientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

// parseClientMessage validates one inbound frame. Unknown types and missing
// symbol lists are rejected so the client gets an explicit error instead of
// silence.
func parseClientMessage(raw []byte) (*clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %v", err)
	}

	switch msg.Type {
	case msgSubscribe, msgUnsubscribe:
		if len(msg.Symbols) == 0 {
			return nil, fmt.Errorf("%s requires a symbols list", msg.Type)
		}
	case msgPing:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
