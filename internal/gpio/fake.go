package gpio

import (
	"errors"
	"sync"
)

// FakePins is a test double that returns scripted input levels and records
// every output write.
type FakePins struct {
	mu sync.Mutex

	// Level, if set, computes the input level for the n-th read and takes
	// precedence over Samples.
	Level func(n int) bool

	// Samples contains scripted input levels. Each call to ReadInput consumes
	// the next sample; the last one repeats once they are exhausted.
	Samples []bool

	// reads counts calls to ReadInput.
	reads int

	// Writes contains every SetOutput call in order.
	Writes []Write

	// outputs holds the current level of each line.
	outputs map[Line]bool

	// ReadError, if set, will be returned by ReadInput.
	ReadError error

	// WriteError, if set, will be returned by SetOutput.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// Write is a single recorded output change.
type Write struct {
	Read  int // number of input reads before the write
	Line  Line
	Level bool
}

// NewFakePins creates FakePins with the given input samples.
func NewFakePins(samples []bool) *FakePins {
	return &FakePins{Samples: samples, outputs: make(map[Line]bool)}
}

// ReadInput returns the next scripted level.
func (f *FakePins) ReadInput() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}

	n := f.reads
	f.reads++
	if f.Level != nil {
		return f.Level(n), nil
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	if n >= len(f.Samples) {
		n = len(f.Samples) - 1
	}
	return f.Samples[n], nil
}

// SetOutput records the write.
func (f *FakePins) SetOutput(line Line, level bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	if f.outputs == nil {
		f.outputs = make(map[Line]bool)
	}
	f.outputs[line] = level
	f.Writes = append(f.Writes, Write{Read: f.reads, Line: line, Level: level})
	return nil
}

// Output returns the current level of a line.
func (f *FakePins) Output(line Line) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[line]
}

// Reads returns how many times ReadInput was called.
func (f *FakePins) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// WritesTo returns the recorded writes for one line.
func (f *FakePins) WritesTo(line Line) []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Write
	for _, w := range f.Writes {
		if w.Line == line {
			out = append(out, w)
		}
	}
	return out
}

// Close drives the outputs low and marks the pins as closed.
func (f *FakePins) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outputs == nil {
		f.outputs = make(map[Line]bool)
	}
	f.outputs[LineGate] = false
	f.outputs[LineHeartbeat] = false
	f.Closed = true
	return nil
}

// Reset rewinds the input script and clears recorded writes.
func (f *FakePins) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = 0
	f.Writes = nil
	f.outputs = make(map[Line]bool)
	f.Closed = false
}
