package ble

import "context"

// FakeScanner replays scripted advertisements.
type FakeScanner struct {
	// Advertisements are delivered in order when Scan starts.
	Advertisements []Advertisement

	// ScanError, if set, is returned by Scan immediately.
	ScanError error

	// Stopped tracks if Stop was called.
	Stopped bool
}

// NewFakeScanner creates a FakeScanner delivering ads.
func NewFakeScanner(ads ...Advertisement) *FakeScanner {
	return &FakeScanner{Advertisements: ads}
}

// Scan delivers the scripted advertisements and then blocks until ctx is done.
func (f *FakeScanner) Scan(ctx context.Context, onAdvertisement func(Advertisement)) error {
	if f.ScanError != nil {
		return swallowDone(f.ScanError)
	}
	for _, a := range f.Advertisements {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		onAdvertisement(a)
	}
	<-ctx.Done()
	return swallowDone(ctx.Err())
}

// Stop marks the scanner as stopped.
func (f *FakeScanner) Stop() error {
	f.Stopped = true
	return nil
}
