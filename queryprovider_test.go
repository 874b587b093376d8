package reactivedomain

import (
	"context"
	"testing"

	"github.com/io-da/query"
)

type ownerTasksQuery struct {
	Owner string
}

func (q ownerTasksQuery) ID() []byte { return []byte(q.Owner) }

type ownerTasksReadModel struct {
	Tasks []string
}

type ownerTasksHandler struct{}

func (h ownerTasksHandler) HandleQuery(ctx context.Context, qry query.Query) (ReadModel, error) {
	q := qry.(ownerTasksQuery)
	return ownerTasksReadModel{Tasks: []string{"task for " + q.Owner}}, nil
}

func TestQueryProvider_RegisterHandler(t *testing.T) {
	p := NewQueryProvider()
	p.RegisterHandler("ownerTasksQuery", ownerTasksHandler{})
}

func TestQueryProvider_DuplicatePanics(t *testing.T) {
	p := NewQueryProvider()
	p.RegisterHandler("ownerTasksQuery", ownerTasksHandler{})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	p.RegisterHandler("ownerTasksQuery", ownerTasksHandler{})
}

func TestQueryProvider_UnknownQuery(t *testing.T) {
	p := NewQueryProvider()

	if err := p.Handle(context.Background(), ownerTasksQuery{Owner: "alice"}, nil); err == nil {
		t.Fatalf("expected error for unregistered query type")
	}
}
