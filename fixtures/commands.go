package fixtures

import (
	"github.com/google/uuid"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// TestCommand is a configurable test command implementing the Command
// interface.
type TestCommand struct {
	ID   string
	Data string
}

func (c TestCommand) AggregateID() string { return c.ID }

// TestCommandBuilder provides a fluent API for constructing test commands.
type TestCommandBuilder struct {
	id   string
	data string
}

// NewTestCommand creates a new TestCommandBuilder with sensible defaults.
func NewTestCommand() *TestCommandBuilder {
	return &TestCommandBuilder{id: "aggregate-1"}
}

// WithID sets the aggregate ID.
func (b *TestCommandBuilder) WithID(id string) *TestCommandBuilder {
	b.id = id
	return b
}

// WithData sets custom data on the command.
func (b *TestCommandBuilder) WithData(data string) *TestCommandBuilder {
	b.data = data
	return b
}

// Build constructs the TestCommand.
func (b *TestCommandBuilder) Build() TestCommand {
	return TestCommand{ID: b.id, Data: b.data}
}

// CorrelatedTestCommand is a test command carrying a causal chain, for
// exercising correlation propagation.
type CorrelatedTestCommand struct {
	rd.CorrelatedCommand
	TargetID string
	Data     string
}

func (c CorrelatedTestCommand) AggregateID() string { return c.TargetID }

// NewCorrelatedTestCommand creates a chain-rooting correlated command.
func NewCorrelatedTestCommand(targetID string) CorrelatedTestCommand {
	return CorrelatedTestCommand{
		CorrelatedCommand: rd.NewCorrelatedCommand(),
		TargetID:          targetID,
	}
}

// NewCorrelatedTestCommandFrom creates a command continuing source's chain.
func NewCorrelatedTestCommandFrom(targetID string, source rd.Message) CorrelatedTestCommand {
	return CorrelatedTestCommand{
		CorrelatedCommand: rd.NewCorrelatedCommandFrom(source),
		TargetID:          targetID,
	}
}

// MessageStub is a bare Message with fixed ids, for seeding correlation
// without a full command.
type MessageStub struct {
	ID          uuid.UUID
	Correlation uuid.UUID
	Causation   uuid.UUID
}

func (m MessageStub) MsgID() uuid.UUID         { return m.ID }
func (m MessageStub) CorrelationID() uuid.UUID { return m.Correlation }
func (m MessageStub) CausationID() uuid.UUID   { return m.Causation }

// NewMessageStub creates a MessageStub rooting its own chain.
func NewMessageStub() MessageStub {
	id := uuid.New()
	return MessageStub{ID: id, Correlation: id, Causation: id}
}
