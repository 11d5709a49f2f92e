package gpio

import (
	"sync"
	"time"
)

// FakeButton is a test double whose presses are injected by the test.
type FakeButton struct {
	presses chan Press

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeButton creates a FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{presses: make(chan Press, pressBuffer)}
}

// Press queues a press at the given time.
func (f *FakeButton) Press(at time.Time) {
	f.presses <- Press{Time: at}
}

// Fail queues a press carrying a driver error.
func (f *FakeButton) Fail(at time.Time, err error) {
	f.presses <- Press{Time: at, Err: err}
}

// Presses returns the press channel.
func (f *FakeButton) Presses() <-chan Press {
	return f.presses
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// FakeOutput records every value written to it.
// Safe for concurrent use; the indicator writes from its blink goroutine.
type FakeOutput struct {
	mu      sync.Mutex
	value   int
	history []int
	closed  bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// NewFakeOutput creates a FakeOutput driven low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetValue records the value.
func (f *FakeOutput) SetValue(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if v != 0 {
		v = 1
	}
	f.value = v
	f.history = append(f.history, v)
	return nil
}

// Value returns the last written value.
func (f *FakeOutput) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, nil
}

// Close marks the output as closed and drives it low.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.value = 0
	return nil
}

// Current returns the last written value without an error.
func (f *FakeOutput) Current() int {
	v, _ := f.Value()
	return v
}

// History returns a copy of every value written so far.
func (f *FakeOutput) History() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.history))
	copy(out, f.history)
	return out
}

// IsClosed reports whether Close was called.
func (f *FakeOutput) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears the recorded history.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = 0
	f.history = nil
	f.closed = false
	f.SetError = nil
}
