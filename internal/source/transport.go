package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

const (
	readChunkSize = 256
	// maxLineLength bounds a line with no terminator. Anything longer is
	// line noise and is discarded.
	maxLineLength = 4096
)

// SerialConfig describes the serial link to the sensor.
type SerialConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// OpenSerial opens the device 8N1 at the configured speed, applies the read
// timeout and discards whatever was buffered before the relay attached.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("resetting input buffer on %s: %w", cfg.Port, err)
	}
	return newLineReader(port), nil
}

// SerialOpener adapts OpenSerial to an Opener.
func SerialOpener(cfg SerialConfig) Opener {
	return func() (Transport, error) {
		return OpenSerial(cfg)
	}
}

// OpenReplay feeds a capture file through the physical path, waiting pace
// between lines. End of file is reported as a transport error.
func OpenReplay(path string, pace time.Duration) (Transport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	return &pacedTransport{Transport: newLineReader(f), pace: pace}, nil
}

// ReplayOpener adapts OpenReplay to an Opener.
func ReplayOpener(path string, pace time.Duration) Opener {
	return func() (Transport, error) {
		return OpenReplay(path, pace)
	}
}

// lineReader splits a byte stream into lines. The underlying reader may
// return (0, nil) when a read times out; ReadLine then returns an empty line
// so the caller can idle. Partial lines are kept until their terminator
// arrives.
type lineReader struct {
	r     io.ReadCloser
	buf   []byte
	chunk []byte
	err   error
}

func newLineReader(r io.ReadCloser) *lineReader {
	return &lineReader{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

func (l *lineReader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(l.buf, '\n'); i >= 0 {
			line := make([]byte, i)
			copy(line, l.buf[:i])
			l.buf = append(l.buf[:0], l.buf[i+1:]...)
			return line, nil
		}
		if l.err != nil {
			if len(l.buf) > 0 {
				line := l.buf
				l.buf = nil
				return line, nil
			}
			return nil, l.err
		}

		n, err := l.r.Read(l.chunk)
		if n > 0 {
			l.buf = append(l.buf, l.chunk[:n]...)
			if len(l.buf) > maxLineLength && bytes.IndexByte(l.buf, '\n') < 0 {
				l.buf = l.buf[:0]
			}
		}
		if err != nil {
			l.err = err
			continue
		}
		if n == 0 {
			return nil, nil
		}
	}
}

func (l *lineReader) Close() error {
	return l.r.Close()
}

type pacedTransport struct {
	Transport
	pace time.Duration
}

func (p *pacedTransport) ReadLine() ([]byte, error) {
	if p.pace > 0 {
		time.Sleep(p.pace)
	}
	return p.Transport.ReadLine()
}
