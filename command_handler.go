package reactivedomain

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// StreamNamer produces the stream name for a command, with access to context.
type StreamNamer func(ctx context.Context, cmd Command) string

// DefaultStreamNamer derives the stream name from the command's aggregate id.
// Override it globally, or per handler via WithStreamNamer, to apply the
// StreamNameBuilder's conventions or multi-tenant prefixes.
var DefaultStreamNamer StreamNamer = func(ctx context.Context, cmd Command) string {
	return cmd.AggregateID()
}

// CommandHandler handles commands of one concrete type: it validates the
// request against current state and expresses any state change as events.
type CommandHandler[C Command] func(ctx context.Context, command C) (AppendResult, error)

// Evolver folds one historical envelope into the aggregate state T.
type Evolver[T any] func(currentState T, envelope *Envelope) T

// Decider determines which events should occur given the current state and a
// command. Returning no events means the command had no effect (idempotent);
// a non-nil error is a business rule violation and nothing is persisted.
// The decider must not mutate state directly.
type Decider[T any, C Command] func(state T, cmd C) ([]Event, error)

// CommandHandlerOption customizes NewCommandHandler.
type CommandHandlerOption func(*handlerOptions)

// NewCommandHandler builds a command handler over the functional
// evolve/decide shape:
//
//  1. Load the stream's history and fold it into state with evolve.
//  2. Decide which new events the command produces.
//  3. Wrap them in envelopes carrying the command's causal chain.
//  4. Append under the stream's loaded revision.
//
// On a revision conflict the loop reloads and re-decides according to the
// configured retry strategy (none by default); every retry re-checks business
// rules against fresh state, so stale invariants are never silently reapplied.
func NewCommandHandler[T any, C Command](
	store EventStore,
	initialState T,
	evolve Evolver[T],
	decide Decider[T, C],
	opts ...CommandHandlerOption,
) CommandHandler[C] {
	cfg := &handlerOptions{
		retryStrategy: &backoff.StopBackOff{},
		streamNamer:   DefaultStreamNamer,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx context.Context, command C) (AppendResult, error) {
		stream := cfg.streamNamer(ctx, command)

		return backoff.RetryWithData(func() (AppendResult, error) {
			state := initialState
			var revision uint64

			iter, err := store.LoadStream(ctx, stream)
			if err != nil && !errors.Is(err, ErrStreamNotFound) {
				return AppendResult{}, backoff.Permanent(
					fmt.Errorf("handle %T for stream %q: load failed: %w", command, stream, err))
			}
			if iter != nil {
				for iter.Next(ctx) {
					env := iter.Value()
					revision = env.Version
					state = evolve(state, env)
				}
				if err := iter.Err(); err != nil {
					return AppendResult{}, fmt.Errorf("handle %T for stream %q: iteration failed: %w", command, stream, err)
				}
			}

			events, err := decide(state, command)
			if err != nil {
				return AppendResult{}, backoff.Permanent(
					fmt.Errorf("handle %T for stream %q: %w", command, stream, err))
			}

			if len(events) == 0 {
				return AppendResult{Successful: true, NextExpectedVersion: revision}, nil
			}

			metadata := make(map[string]any)
			for _, fn := range cfg.metadataFuncs {
				for k, v := range fn(ctx) {
					metadata[k] = v
				}
			}

			correlation := causalChainOf(command)

			envelopes := make([]Envelope, len(events))
			version := revision
			for i, event := range events {
				version++
				env := Envelope{
					EventID:       uuid.New(),
					StreamID:      stream,
					CorrelationID: correlation.correlation,
					CausationID:   correlation.causation,
					Metadata:      metadata,
					Event:         event,
					Version:       version,
					OccurredAt:    now(),
				}
				if correlation.IsZero() {
					env.CorrelationID = env.EventID
					env.CausationID = env.EventID
				}
				envelopes[i] = env
			}

			var streamState StreamState = Revision(revision)
			if revision == 0 {
				streamState = NoStream{}
			}

			result, err := store.Save(ctx, envelopes, streamState)
			if err != nil {
				var conflict *StreamRevisionConflictError
				if errors.As(err, &conflict) {
					// retryable per the configured strategy
					return AppendResult{}, conflict
				}
				return result, backoff.Permanent(
					fmt.Errorf("handle %T for stream %q: append failed: %w", command, stream, err))
			}
			return result, nil
		}, cfg.retryStrategy)
	}
}

// causalChainOf extracts the correlation pair from commands that implement
// Message. Commands that do not participate in a chain yield the zero
// Correlation and each produced event roots its own.
func causalChainOf(cmd Command) Correlation {
	if msg, ok := any(cmd).(Message); ok {
		return CorrelationFrom(msg)
	}
	return Correlation{}
}

// handlerOptions configures a command handler: retry strategy for revision
// conflicts, metadata enrichment, and stream naming.
type handlerOptions struct {
	retryStrategy backoff.BackOff
	metadataFuncs []func(ctx context.Context) map[string]any
	streamNamer   StreamNamer
}

// WithRetryStrategy sets how the handler retries on revision conflicts.
// The default is no retries: the conflict surfaces to the caller.
func WithRetryStrategy(strategy backoff.BackOff) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.retryStrategy = strategy }
}

// WithMetadataExtractor registers a function contributing metadata to every
// envelope the handler persists. Extractors run in registration order.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]any) CommandHandlerOption {
	return func(cfg *handlerOptions) {
		cfg.metadataFuncs = append(cfg.metadataFuncs, fn)
	}
}

// WithStreamNamer overrides the stream naming for this handler.
func WithStreamNamer(namer StreamNamer) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.streamNamer = namer }
}
