package reactivedomain

import "github.com/google/uuid"

// Command is an immutable request to change the state of one aggregate. It is
// intent, not fact: commands are never persisted as history, but they seed the
// correlation chain carried by the events they produce.
type Command interface {
	AggregateID() string
}

// CorrelatedCommand is the embeddable base for commands that participate in a
// causal chain. It implements Message.
type CorrelatedCommand struct {
	ID          uuid.UUID
	Correlation uuid.UUID
	Causation   uuid.UUID
}

// NewCorrelatedCommand creates the root of a new causal chain: the command's
// correlation and causation ids both equal its own message id.
func NewCorrelatedCommand() CorrelatedCommand {
	id := uuid.New()
	return CorrelatedCommand{ID: id, Correlation: id, Causation: id}
}

// NewCorrelatedCommandFrom creates a command caused by source, continuing its
// chain: the correlation id is copied, the causation id is source's message id.
func NewCorrelatedCommandFrom(source Message) CorrelatedCommand {
	return CorrelatedCommand{
		ID:          uuid.New(),
		Correlation: source.CorrelationID(),
		Causation:   source.MsgID(),
	}
}

func (c CorrelatedCommand) MsgID() uuid.UUID         { return c.ID }
func (c CorrelatedCommand) CorrelationID() uuid.UUID { return c.Correlation }
func (c CorrelatedCommand) CausationID() uuid.UUID   { return c.Causation }
