package source

import (
	"errors"
	"sync"
)

// readStep is one scripted ReadLine result.
type readStep struct {
	line string
	err  error
}

// fakeTransport replays a script of ReadLine results. Once the script is
// exhausted it keeps returning final (nil means timeouts forever).
type fakeTransport struct {
	mu     sync.Mutex
	steps  []readStep
	final  error
	reads  int
	closed int
}

func newFakeTransport(final error, steps ...readStep) *fakeTransport {
	return &fakeTransport{steps: steps, final: final}
}

func lines(ss ...string) []readStep {
	out := make([]readStep, len(ss))
	for i, s := range ss {
		out[i] = readStep{line: s}
	}
	return out
}

func (f *fakeTransport) ReadLine() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.steps) == 0 {
		return nil, f.final
	}
	st := f.steps[0]
	f.steps = f.steps[1:]
	if st.err != nil {
		return nil, st.err
	}
	if st.line == "" {
		return nil, nil
	}
	return []byte(st.line), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var errUnplugged = errors.New("device unplugged")
