package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"mess/internal/ledger"
)

// ChangeMessage is the wire form of a ledger change event.
type ChangeMessage struct {
	ledger.ChangeEvent
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage stamps ev with the current time.
func NewChangeMessage(ev ledger.ChangeEvent) *ChangeMessage {
	return &ChangeMessage{
		ChangeEvent: ev,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and checks that it names a
// table and a change type.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Table == "" || msg.Type == "" {
		return nil, fmt.Errorf("change message missing table or type")
	}
	return &msg, nil
}
