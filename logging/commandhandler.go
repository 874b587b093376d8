package logging

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// WithCommandLogging wraps a CommandHandler, logging each dispatch with the
// command type and target aggregate, and the outcome with its duration.
func WithCommandLogging[C rd.Command](logger *logrus.Entry, next rd.CommandHandler[C]) rd.CommandHandler[C] {
	return func(ctx context.Context, command C) (rd.AppendResult, error) {
		l := logger.WithFields(logrus.Fields{
			"command":   rd.TypeName(command),
			"aggregate": command.AggregateID(),
		})
		l.Info("dispatching command")

		start := time.Now()
		result, err := next(ctx, command)
		l = l.WithField("duration", time.Since(start))

		if err != nil {
			l.WithError(err).Error("command failed")
			return result, err
		}

		l.WithField("next_version", result.NextExpectedVersion).Debug("command handled")
		return result, nil
	}
}
