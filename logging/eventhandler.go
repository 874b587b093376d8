package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// WithEventLogging wraps an EventHandler, logging each delivery with the
// envelope fields carried in the context.
func WithEventLogging(logger *logrus.Entry, next rd.EventHandler) rd.EventHandler {
	return rd.NewEventHandlerFunc(func(ctx context.Context, event rd.Event) error {
		l := logger.WithFields(logrus.Fields{
			"stream":      rd.StreamIDFromContext(ctx),
			"event":       event.EventType(),
			"version":     rd.VersionFromContext(ctx),
			"correlation": rd.CorrelationIDFromContext(ctx),
			"causation":   rd.CausationIDFromContext(ctx),
		})

		l.Debug("event processing started")

		err := next.Handle(ctx, event)
		if err != nil {
			l.WithError(err).Error("error processing event")
		} else {
			l.Debug("event processed successfully")
		}

		return err
	})
}
