package logging

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

type queryHandlerLogger[T rd.Query, R any] struct {
	logger *logrus.Entry
	next   rd.QueryHandler[T, R]
}

func (q *queryHandlerLogger[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	l := q.logger.WithField("query", rd.TypeName(qry))
	l.Info("executing query")

	start := time.Now()
	result, err := q.next.HandleQuery(ctx, qry)
	l = l.WithField("duration", time.Since(start))

	if err != nil {
		l.WithError(err).Error("query failed")
		return result, err
	}

	l.Debug("query executed")
	return result, nil
}

// WithQueryLogging wraps a QueryHandler, logging each execution with the
// query type and the outcome with its duration.
func WithQueryLogging[T rd.Query, R any](logger *logrus.Entry, next rd.QueryHandler[T, R]) rd.QueryHandler[T, R] {
	return &queryHandlerLogger[T, R]{
		logger: logger,
		next:   next,
	}
}
