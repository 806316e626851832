package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// MonthFinalizedMessage announces that a month's final balance was computed
// and saved. It carries only the month key; the worker reloads the month from
// the ledger so a stale message never writes stale figures.
type MonthFinalizedMessage struct {
	Month             string    `json:"month"`
	FinalBalanceCents int64     `json:"final_balance_cents"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewMonthFinalizedMessage creates a message stamped with the current time.
func NewMonthFinalizedMessage(month string, finalBalanceCents int64) *MonthFinalizedMessage {
	return &MonthFinalizedMessage{
		Month:             month,
		FinalBalanceCents: finalBalanceCents,
		Timestamp:         time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MonthFinalizedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthFinalizedMessageFromJSON decodes a message and rejects one without a month.
func MonthFinalizedMessageFromJSON(data []byte) (*MonthFinalizedMessage, error) {
	var msg MonthFinalizedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month == "" {
		return nil, fmt.Errorf("message has no month")
	}
	return &msg, nil
}
