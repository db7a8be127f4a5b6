package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chunkReader returns scripted chunks; an empty chunk simulates a serial
// read timeout (0, nil).
type chunkReader struct {
	chunks []string
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, c), nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

func readAllLines(t *testing.T, lr *lineReader) (got []string, timeouts int, err error) {
	t.Helper()
	for i := 0; i < 100; i++ {
		line, err := lr.ReadLine()
		if err != nil {
			return got, timeouts, err
		}
		if len(line) == 0 {
			timeouts++
			continue
		}
		got = append(got, string(line))
	}
	t.Fatal("line reader did not terminate")
	return nil, 0, nil
}

func TestLineReaderSplitsAcrossChunks(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"1,EMG,1", "00,2\r\n2,E", "", "CG,5\n3,PPG,", "7\n",
	}}
	got, timeouts, err := readAllLines(t, newLineReader(r))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	want := []string{"1,EMG,100,2\r", "2,ECG,5", "3,PPG,7"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
	if timeouts != 1 {
		t.Errorf("timeouts = %d, want 1", timeouts)
	}
}

func TestLineReaderFlushesPartialLineAtEOF(t *testing.T) {
	r := &chunkReader{chunks: []string{"1,EMG,1\n2,EMG,2"}}
	got, _, err := readAllLines(t, newLineReader(r))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 2 || got[1] != "2,EMG,2" {
		t.Errorf("lines = %q", got)
	}
}

func TestLineReaderDiscardsOversizedNoise(t *testing.T) {
	noise := strings.Repeat("x", maxLineLength+10)
	r := &chunkReader{chunks: []string{noise, "1,EMG,1\n"}}
	lr := newLineReader(r)
	lr.chunk = make([]byte, maxLineLength+10)

	got, _, _ := readAllLines(t, lr)
	if len(got) != 1 || got[0] != "1,EMG,1" {
		t.Errorf("lines = %q, want only the valid line", got)
	}
}

func TestLineReaderClose(t *testing.T) {
	r := &chunkReader{}
	if err := newLineReader(r).Close(); err != nil {
		t.Fatal(err)
	}
	if !r.closed {
		t.Error("Close should close the underlying reader")
	}
}

func TestReplayTransportEndsWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	data := "id_dispositivo,tipo,valor\n203333,EMG,100,100,100\n42,ppg,650\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := OpenReplay(path, 0)
	if err != nil {
		t.Fatalf("OpenReplay() error: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := NewPhysical(tr, newCodec(t), 0)
	var devices []uint64
	for {
		f, err := p.Next(ctx)
		if err != nil {
			if !errors.Is(err, ErrSourceFailed) || !errors.Is(err, io.EOF) {
				t.Fatalf("err = %v, want source failure wrapping io.EOF", err)
			}
			break
		}
		devices = append(devices, f.DeviceID)
	}
	if len(devices) != 2 || devices[0] != 203333 || devices[1] != 42 {
		t.Errorf("devices = %v", devices)
	}
}

func TestOpenReplayMissingFile(t *testing.T) {
	if _, err := OpenReplay(filepath.Join(t.TempDir(), "nope"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenSerialMissingDevice(t *testing.T) {
	_, err := OpenSerial(SerialConfig{Port: "/dev/biorelay-does-not-exist", Baud: 115200})
	if err == nil {
		t.Error("expected error opening a missing device")
	}
}
