package reactivedomain

// ReadModel marks a query-side data model: derived state built by folding
// events, read-optimized, never written to directly by commands.
type ReadModel interface {
}
