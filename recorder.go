package reactivedomain

// EventRecorder buffers the events an aggregate has raised but not yet
// persisted. It is exclusively owned by its aggregate: a single writer,
// no locking, no validation.
type EventRecorder struct {
	pending []Envelope
}

// Record appends an envelope to the buffer.
func (r *EventRecorder) Record(env Envelope) {
	r.pending = append(r.pending, env)
}

// Len returns the number of buffered envelopes.
func (r *EventRecorder) Len() int {
	return len(r.pending)
}

// DrainAndReset returns the buffered envelopes in recorded order and clears
// the buffer. This read-and-clear contract is deliberate: it is what gives
// each recorded event at-most-once delivery to the store. A second drain with
// no intervening Record returns nil.
func (r *EventRecorder) DrainAndReset() []Envelope {
	if len(r.pending) == 0 {
		return nil
	}
	drained := r.pending
	r.pending = nil
	return drained
}
