package amqp

import (
	"encoding/json"
	"time"
)

// RecordsChangedMessage tells every panel that the records of a table are
// stale. An empty Table means every table.
type RecordsChangedMessage struct {
	Table     string    `json:"table"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordsChangedMessage(table, source string) *RecordsChangedMessage {
	return &RecordsChangedMessage{
		Table:     table,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordsChangedMessageFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
