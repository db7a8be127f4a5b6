// Package frame defines the validated sensor reading that flows through the
// relay, the line codec that produces it, and its wire encoding.
package frame

import "time"

// SignalType identifies what kind of biosignal a frame carries.
type SignalType string

const (
	EMG SignalType = "EMG"
	ECG SignalType = "ECG"
	PPG SignalType = "PPG"
)

// Channel count limits per signal type.
const (
	MinEMGChannels = 1
	MaxEMGChannels = 9
)

// Valid reports whether t is one of the known signal types.
func (t SignalType) Valid() bool {
	switch t {
	case EMG, ECG, PPG:
		return true
	}
	return false
}

// AcceptsChannels reports whether n readings is a legal channel count for t.
func (t SignalType) AcceptsChannels(n int) bool {
	switch t {
	case EMG:
		return n >= MinEMGChannels && n <= MaxEMGChannels
	case ECG, PPG:
		return n == 1
	}
	return false
}

// SensorFrame is one parsed, validated reading. Frames are values; the
// Channels slice is owned by the frame and must not be modified.
type SensorFrame struct {
	DeviceID  uint64
	Type      SignalType
	Channels  []int64
	Timestamp time.Time
	Raw       string
}
