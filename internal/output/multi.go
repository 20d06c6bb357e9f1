package output

import "log/slog"

type namedSink struct {
	name string
	sink Sink
}

// Multi fans output out to a primary sink and any number of best-effort
// secondary sinks. Primary errors are returned; a failing secondary is
// logged and dropped.
type Multi struct {
	primary   Sink
	secondary []namedSink
}

// NewMulti creates a fan-out around primary.
func NewMulti(primary Sink) *Multi {
	return &Multi{primary: primary}
}

// Add attaches a best-effort sink.
func (m *Multi) Add(name string, s Sink) {
	m.secondary = append(m.secondary, namedSink{name: name, sink: s})
}

// Len returns the number of attached secondary sinks.
func (m *Multi) Len() int { return len(m.secondary) }

func (m *Multi) Init(h Header) error {
	m.each("init", func(s Sink) error { return s.Init(h) })
	return m.primary.Init(h)
}

func (m *Multi) WriteFrame(f *Frame) error {
	m.each("frame", func(s Sink) error { return s.WriteFrame(f) })
	return m.primary.WriteFrame(f)
}

func (m *Multi) WriteStatistics(f Final) error {
	m.each("statistics", func(s Sink) error { return s.WriteStatistics(f) })
	return m.primary.WriteStatistics(f)
}

// Close closes every sink. Only the primary's error is returned.
func (m *Multi) Close() error {
	for _, ns := range m.secondary {
		if err := ns.sink.Close(); err != nil {
			slog.Warn("sink close failed", "sink", ns.name, "error", err)
		}
	}
	m.secondary = nil
	return m.primary.Close()
}

func (m *Multi) each(op string, fn func(Sink) error) {
	kept := m.secondary[:0]
	for _, ns := range m.secondary {
		if err := fn(ns.sink); err != nil {
			slog.Warn("sink dropped", "sink", ns.name, "op", op, "error", err)
			_ = ns.sink.Close()
			continue
		}
		kept = append(kept, ns)
	}
	m.secondary = kept
}
