//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealButton watches a button line for debounced rising edges.
type RealButton struct {
	line    *gpiocdev.Line
	presses chan Press

	mu        sync.Mutex
	lastSeqno uint32
}

// NewRealButton requests the button line on the given chip with edge detection
// and kernel-side debouncing.
func NewRealButton(chip string, pin int, debounce time.Duration) (*RealButton, error) {
	b := &RealButton{presses: make(chan Press, pressBuffer)}

	// Pull-down so a floating input reads low until the button closes to 3V3.
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(b.handle),
	)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line
	return b, nil
}

func (b *RealButton) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}

	p := Press{Time: time.Now()}

	b.mu.Lock()
	if b.lastSeqno != 0 && evt.LineSeqno > b.lastSeqno+1 {
		p.Err = fmt.Errorf("lost %d edge events", evt.LineSeqno-b.lastSeqno-1)
	}
	b.lastSeqno = evt.LineSeqno
	b.mu.Unlock()

	select {
	case b.presses <- p:
	default:
		// Consumer is busy; a press burst collapses into the queued ones.
	}
}

// Presses returns the press channel.
func (b *RealButton) Presses() <-chan Press {
	return b.presses
}

// Close releases the button line.
// The line is reconfigured as a plain pulled-down input (Pi boot default) first.
func (b *RealButton) Close() error {
	if b.line == nil {
		return nil
	}
	var errs []error
	if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
	}
	if err := b.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close button pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives an LED line.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests the given pin as an output, initially low.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}
	return &RealOutput{line: line}, nil
}

// SetValue drives the line.
func (o *RealOutput) SetValue(v int) error {
	if v != 0 {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set led pin: %w", err)
	}
	return nil
}

// Value returns the currently driven value.
func (o *RealOutput) Value() (int, error) {
	v, err := o.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read led pin: %w", err)
	}
	return v, nil
}

// Close drives the line low and releases it.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// so the LED stays dark after the process exits.
func (o *RealOutput) Close() error {
	if o.line == nil {
		return nil
	}
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear led pin: %w", err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure led pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close led pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
