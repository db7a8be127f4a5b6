package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// headerLabels are id-column names a capture file or sensor may emit as a
// header row. A line whose first field matches one is not data.
var headerLabels = map[string]bool{
	"id":             true,
	"device_id":      true,
	"id_dispositivo": true,
}

// Codec turns raw text lines into validated frames. The zero value is not
// usable; construct with NewCodec.
type Codec struct {
	aliases map[string]SignalType
	now     func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithAliases registers extra type tokens that resolve to a known signal type,
// e.g. {"PPH": PPG}. Keys are matched case-insensitively.
func WithAliases(aliases map[string]SignalType) CodecOption {
	return func(c *Codec) {
		for k, v := range aliases {
			c.aliases[strings.ToUpper(strings.TrimSpace(k))] = v
		}
	}
}

// WithClock overrides the time source used to stamp frames.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec returns a codec that accepts the canonical signal types plus any
// configured aliases. Alias targets must be valid signal types.
func NewCodec(opts ...CodecOption) (*Codec, error) {
	c := &Codec{
		aliases: make(map[string]SignalType),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for alias, target := range c.aliases {
		if !target.Valid() {
			return nil, fmt.Errorf("alias %q targets unknown signal type %q", alias, target)
		}
	}
	return c, nil
}

// Parse validates one line of the form DEVICE_ID,TYPE,VALUE[,VALUE...].
// It reports false for anything that is not a complete, valid data line:
// blank lines, header rows, bad ids, unknown types, unparsable readings and
// channel counts the type does not allow. No partial frames are produced.
func (c *Codec) Parse(line string) (SensorFrame, bool) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return SensorFrame{}, false
	}

	fields := strings.Split(raw, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	if headerLabels[strings.ToLower(fields[0])] {
		return SensorFrame{}, false
	}
	if len(fields) < 3 {
		return SensorFrame{}, false
	}

	deviceID, ok := parseDeviceID(fields[0])
	if !ok {
		return SensorFrame{}, false
	}

	typ, ok := c.resolveType(fields[1])
	if !ok {
		return SensorFrame{}, false
	}

	values := fields[2:]
	if !typ.AcceptsChannels(len(values)) {
		return SensorFrame{}, false
	}

	channels := make([]int64, len(values))
	for i, v := range values {
		n, ok := parseReading(v)
		if !ok {
			return SensorFrame{}, false
		}
		channels[i] = n
	}

	return SensorFrame{
		DeviceID:  deviceID,
		Type:      typ,
		Channels:  channels,
		Timestamp: c.now(),
		Raw:       raw,
	}, true
}

func (c *Codec) resolveType(token string) (SignalType, bool) {
	upper := strings.ToUpper(token)
	if t := SignalType(upper); t.Valid() {
		return t, true
	}
	t, ok := c.aliases[upper]
	return t, ok
}

// parseDeviceID accepts only plain decimal digits that fit in a uint64.
func parseDeviceID(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseReading parses an integral reading. Decimal fractions are accepted and
// truncated toward zero; hex, NaN, infinities and values outside int64 are not.
func parseReading(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= '0' && b <= '9':
		case b == '.', b == '+', b == '-', b == 'e', b == 'E':
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// DecodeLine converts transport bytes to text, replacing invalid UTF-8
// sequences instead of failing.
func DecodeLine(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
