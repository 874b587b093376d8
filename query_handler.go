package reactivedomain

import "context"

// Query is the interface implemented by any type dispatched as a query.
type Query interface {
	ID() []byte
}

// QueryHandler handles a specific query type T and produces a result of type
// R, typically a ReadModel or an Iterator over read models.
type QueryHandler[T Query, R any] interface {
	HandleQuery(ctx context.Context, qry T) (R, error)
}

type queryHandlerFunc[T Query, R any] func(ctx context.Context, qry T) (R, error)

func (f queryHandlerFunc[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	return f(ctx, qry)
}

// NewQueryHandlerFunc creates a QueryHandler from a function.
//
//	handler := NewQueryHandlerFunc(func(ctx context.Context, q AccountBalanceQuery) (*AccountBalance, error) {
//	    return &AccountBalance{Amount: 120}, nil
//	})
func NewQueryHandlerFunc[T Query, R any](fn func(ctx context.Context, qry T) (R, error)) QueryHandler[T, R] {
	return queryHandlerFunc[T, R](fn)
}
