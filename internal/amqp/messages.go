package amqp

import (
	"encoding/json"
	"time"
)

const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// BillRef points at the bill period a card transaction falls in. The worker
// resolves it to a stored bill, if one was materialized.
type BillRef struct {
	CreditCardID string    `json:"creditCardId"`
	UserID       string    `json:"userId"`
	Date         time.Time `json:"date"`
}

// TransactionChangedMessage announces a committed transaction mutation.
// Bills lists every card period the change touched, before and after.
type TransactionChangedMessage struct {
	TransactionID string    `json:"transactionId"`
	Operation     string    `json:"operation"`
	Bills         []BillRef `json:"bills,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionChangedMessage(id, op string, bills []BillRef) *TransactionChangedMessage {
	return &TransactionChangedMessage{
		TransactionID: id,
		Operation:     op,
		Bills:         bills,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangedMessageFromJSON decodes a message body.
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
