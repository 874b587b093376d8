package reactivedomain

import "github.com/google/uuid"

// Message is any correlated message: it has a unique id and carries the causal
// chain it belongs to. Commands implement it directly; event envelopes expose
// the same triple through their fields.
type Message interface {
	// MsgID returns the unique id of this message instance.
	MsgID() uuid.UUID

	// CorrelationID returns the id shared by every message in one causal
	// chain. It is set once, by the chain's root, and copied unchanged to
	// every descendant.
	CorrelationID() uuid.UUID

	// CausationID returns the MsgID of the immediate parent message. For a
	// chain root it equals the message's own MsgID.
	CausationID() uuid.UUID
}

// Correlation is the (correlation id, causation id) pair stamped onto events
// raised by an aggregate. The zero value means "unseeded": each raised event
// then roots its own chain.
type Correlation struct {
	correlation uuid.UUID
	causation   uuid.UUID
}

// CorrelationFrom derives the correlation to stamp on messages caused by source:
// the correlation id is copied, the causation id is source's own message id.
func CorrelationFrom(source Message) Correlation {
	return Correlation{
		correlation: source.CorrelationID(),
		causation:   source.MsgID(),
	}
}

// IsZero reports whether the correlation has not been seeded.
func (c Correlation) IsZero() bool {
	return c.correlation == uuid.Nil && c.causation == uuid.Nil
}
