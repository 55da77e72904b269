package audit

import "presalepool/internal/model"

// Sink receives audit events emitted by the pool engine.
type Sink interface {
	PutEvents(events []model.AuditEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PutEvents([]model.AuditEvent) error { return nil }
