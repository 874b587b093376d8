package reactivedomain

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// queuedCommand is a command enqueued for processing, together with the
// caller's context and the channel the result is reported on.
type queuedCommand struct {
	ctx        context.Context
	command    Command
	responseCh chan<- commandResult
}

type commandResult struct {
	result AppendResult
	err    error
}

// CommandBus is an in-memory, sharded command dispatcher. Commands for the
// same aggregate id always land on the same shard and are therefore processed
// one at a time, which keeps one aggregate instance confined to one in-flight
// unit of work without any locking in the handlers themselves.
type CommandBus struct {
	handlers   map[string]func(ctx context.Context, command Command) (AppendResult, error)
	queues     []chan queuedCommand
	wg         sync.WaitGroup
	workersWg  sync.WaitGroup
	mu         sync.RWMutex
	shardCount int

	// stateMu orders the stopped check and the in-flight registration
	// against Stop, so a dispatch can never enqueue on a closed shard queue.
	stateMu sync.RWMutex
	stopped bool
}

// NewCommandBus creates a bus with the given per-shard queue capacity and
// shard count. Shard workers start immediately.
func NewCommandBus(bufferSize, shardCount int) *CommandBus {
	if shardCount <= 0 {
		shardCount = 1
	}

	bus := &CommandBus{
		handlers:   make(map[string]func(ctx context.Context, command Command) (AppendResult, error)),
		queues:     make([]chan queuedCommand, shardCount),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		bus.workersWg.Add(1)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch enqueues a command on its aggregate's shard and waits for the
// result. Safe for concurrent use. Returns immediately with an error when the
// bus has been stopped or the context expires before processing completes.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (AppendResult, error) {
	b.stateMu.RLock()
	if b.stopped {
		b.stateMu.RUnlock()
		return AppendResult{}, fmt.Errorf("command bus is stopped")
	}
	b.wg.Add(1)
	b.stateMu.RUnlock()
	defer b.wg.Done()

	responseCh := make(chan commandResult, 1)

	shard := b.shardFor(cmd.AggregateID())

	select {
	case b.queues[shard] <- queuedCommand{ctx: ctx, command: cmd, responseCh: responseCh}:
		select {
		case res := <-responseCh:
			return res.result, res.err
		case <-ctx.Done():
			return AppendResult{}, ctx.Err()
		}
	case <-ctx.Done():
		return AppendResult{}, ctx.Err()
	}
}

// worker processes commands from a single shard queue. Handler panics are
// converted into errors so one bad command cannot take the bus down.
func (b *CommandBus) worker(queue chan queuedCommand) {
	defer b.workersWg.Done()
	for qc := range queue {
		cmdName := TypeName(qc.command)

		b.mu.RLock()
		h, exists := b.handlers[cmdName]
		b.mu.RUnlock()

		if !exists {
			qc.responseCh <- commandResult{
				err: fmt.Errorf("no handler for command %s", cmdName),
			}
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					qc.responseCh <- commandResult{
						err: fmt.Errorf("panic in handler for %s: %v", cmdName, r),
					}
				}
			}()

			res, err := h(qc.ctx, qc.command)
			qc.responseCh <- commandResult{result: res, err: err}
		}()
	}
}

func (b *CommandBus) shardFor(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32()) % b.shardCount
}

// Register adds a typed command handler to the bus, keyed by the command's
// type name. Panics on duplicate registration, a wiring-time programming error.
func Register[C Command](b *CommandBus, handler CommandHandler[C]) {
	var zero C
	cmdName := TypeName(zero)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[cmdName]; exists {
		panic(fmt.Sprintf("handler already registered for command type %s", cmdName))
	}

	b.handlers[cmdName] = func(ctx context.Context, cmd Command) (AppendResult, error) {
		c, ok := cmd.(C)
		if !ok {
			return AppendResult{}, fmt.Errorf("expected command type %s, got %T", cmdName, cmd)
		}
		return handler(ctx, c)
	}
}

// Stop shuts the bus down: no new commands are accepted, in-flight dispatches
// finish, then the shard queues are closed and drained before Stop returns.
// Idempotent.
func (b *CommandBus) Stop() {
	b.stateMu.Lock()
	if b.stopped {
		b.stateMu.Unlock()
		return
	}
	b.stopped = true
	b.stateMu.Unlock()

	b.wg.Wait()
	for _, q := range b.queues {
		close(q)
	}
	b.workersWg.Wait()
}
