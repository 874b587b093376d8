package reactivedomain

// StreamState is the concurrency requirement supplied on append. It is a
// closed set of variants; stores reject anything else with ErrInvalidRevision.
type StreamState interface {
	streamState()
}

// Any means append without checking the current revision.
type Any struct{}

func (Any) streamState() {}

// NoStream means the stream must not exist yet. It is the store-side sentinel
// for an aggregate that has never been persisted.
type NoStream struct{}

func (NoStream) streamState() {}

// StreamExists means the stream must already exist, at any revision.
type StreamExists struct{}

func (StreamExists) streamState() {}

// Revision requires the stream to hold exactly this many events.
type Revision uint64

func (Revision) streamState() {}
