package reactivedomain

import (
	"context"
	"fmt"

	"github.com/io-da/query"
)

// GenericQueryHandler adapts a read model lookup to the io-da query bus.
type GenericQueryHandler[T query.Query, R ReadModel] interface {
	HandleQuery(ctx context.Context, qry T) (R, error)
}

// QueryProvider bridges registered read-model handlers onto a query.Handler,
// so read models built from event streams can be served through the io-da
// query bus alongside the rest of the application.
type QueryProvider interface {
	query.Handler
	RegisterHandler(name string, handler GenericQueryHandler[query.Query, ReadModel])
}

type queryProvider struct {
	handlers map[string]GenericQueryHandler[query.Query, ReadModel]
}

// NewQueryProvider creates an empty provider.
func NewQueryProvider() QueryProvider {
	return &queryProvider{
		handlers: make(map[string]GenericQueryHandler[query.Query, ReadModel]),
	}
}

// RegisterHandler registers a handler under the query type name it serves.
// Panics on duplicates: registration happens at wiring time.
func (p *queryProvider) RegisterHandler(name string, handler GenericQueryHandler[query.Query, ReadModel]) {
	if _, ok := p.handlers[name]; ok {
		panic("duplicate query handler: " + name)
	}
	p.handlers[name] = handler
}

// Handle implements query.Handler: it routes the query to the registered
// read-model handler and feeds the result into res.
func (p *queryProvider) Handle(ctx context.Context, qry query.Query, res *query.Result) error {
	handler, exists := p.handlers[TypeName(qry)]
	if !exists {
		return fmt.Errorf("unknown query type: %s", TypeName(qry))
	}

	result, err := handler.HandleQuery(ctx, qry)
	if err != nil {
		return err
	}

	res.Add(result)
	res.Done()
	return nil
}
