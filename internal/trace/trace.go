// Package trace provides the structured event stream emitted by evaluators.
// Evaluation logic never logs or prints directly; it emits events into a
// Sink so the computation stays pure and unit-testable. The service layer
// installs a zerolog-backed sink, tests install a Collector.
package trace

import (
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies what happened during an evaluation run.
type EventType string

const (
	EventObservationEvaluated EventType = "observation_evaluated"
	EventAutocallTriggered    EventType = "autocall_triggered"
	EventCouponPaid           EventType = "coupon_paid"
	EventCouponCarried        EventType = "coupon_carried"
	EventHimalayaLocked       EventType = "himalaya_locked"
	EventBarrierTouched       EventType = "barrier_touched"
	EventRedemptionComputed   EventType = "redemption_computed"
	EventDataError            EventType = "data_error"
)

// Event is one evaluation diagnostic.
type Event struct {
	Type EventType
	ISIN string
	// Date is the observation or touch date the event refers to.
	Date time.Time
	// Ticker is set for per-underlying events (Himalaya lock-ins).
	Ticker string
	// Value carries the event's primary number: basket level, coupon
	// percentage, locked return, redemption value.
	Value float64
	// Detail is free-form context for the audit trail.
	Detail string
}

// Sink receives evaluation events. Implementations must be safe for use
// from a single evaluation goroutine; they are not shared across products.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// Collector accumulates events in order, for tests and audit reports.
type Collector struct {
	events []Event
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit implements Sink.
func (c *Collector) Emit(e Event) {
	c.events = append(c.events, e)
}

// Events returns the collected events in emission order.
func (c *Collector) Events() []Event {
	return c.events
}

// OfType returns the collected events matching t, in emission order.
func (c *Collector) OfType(t EventType) []Event {
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// LoggerSink mirrors events into a zerolog logger at debug level.
type LoggerSink struct {
	log zerolog.Logger
}

// NewLoggerSink creates a sink writing to the given logger.
func NewLoggerSink(log zerolog.Logger) *LoggerSink {
	return &LoggerSink{log: log.With().Str("component", "trace").Logger()}
}

// Emit implements Sink.
func (s *LoggerSink) Emit(e Event) {
	ev := s.log.Debug().
		Str("event", string(e.Type)).
		Str("isin", e.ISIN)
	if !e.Date.IsZero() {
		ev = ev.Time("date", e.Date)
	}
	if e.Ticker != "" {
		ev = ev.Str("ticker", e.Ticker)
	}
	ev.Float64("value", e.Value).Msg(e.Detail)
}

// Tee fans one event out to several sinks.
type Tee []Sink

// Emit implements Sink.
func (t Tee) Emit(e Event) {
	for _, s := range t {
		s.Emit(e)
	}
}
