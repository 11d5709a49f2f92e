package mqtt

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Measurements contains all measurement batches that were published.
	Measurements []Measurements

	// Sessions contains all session events that were published.
	Sessions []SessionEvent

	// Payloads contains the JSON payloads of measurements and session events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishMeasurements and PublishSession.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishMeasurements records the batch.
func (f *FakePublisher) PublishMeasurements(m Measurements) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatMeasurements(m)
	if err != nil {
		return err
	}
	f.Measurements = append(f.Measurements, m)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSession records the session event.
func (f *FakePublisher) PublishSession(s SessionEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatSession(s)
	if err != nil {
		return err
	}
	f.Sessions = append(f.Sessions, s)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Measurements = nil
	f.Sessions = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
