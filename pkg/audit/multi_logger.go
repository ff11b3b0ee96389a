package audit

import "context"

// MultiSink fans events out to multiple sinks. A failing sink does not
// stop delivery to the others; the first error is returned so the Logger
// can count the drop.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink writing to every given sink in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append implements Sink.
func (m *MultiSink) Append(ctx context.Context, event *Event) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink, returning the first error encountered.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
