package frame

import (
	"encoding/json"
	"time"
)

// Message is the JSON object sent to every subscriber, one per frame.
// Field names are part of the subscriber contract.
type Message struct {
	DeviceID  uint64     `json:"device_id"`
	Type      SignalType `json:"type"`
	Signals   []int64    `json:"signals"`
	Timestamp float64    `json:"timestamp"`
}

// NewMessage builds the wire form of f. The timestamp is seconds since the
// Unix epoch with a fractional part.
func NewMessage(f SensorFrame) Message {
	signals := f.Channels
	if signals == nil {
		signals = []int64{}
	}
	return Message{
		DeviceID:  f.DeviceID,
		Type:      f.Type,
		Signals:   signals,
		Timestamp: float64(f.Timestamp.UnixNano()) / float64(time.Second),
	}
}

// Encode serializes f to a single UTF-8 JSON text message.
func Encode(f SensorFrame) ([]byte, error) {
	return json.Marshal(NewMessage(f))
}

// Decode parses a wire message. It is used by subscribers such as the
// terminal client and by tests.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// Time converts the fractional epoch timestamp back to a time.Time.
func (m Message) Time() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
