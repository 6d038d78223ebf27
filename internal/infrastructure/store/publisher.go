package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FanOut delivers every event to each publisher in order and joins their errors.
// It stands in for the bus when everything runs in one process.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, key string, event any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, key, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort logs publish failures instead of returning them. Stores wrap
// their bus with it so a stored event is never reported as a failed write.
func BestEffort(p Publisher, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return bestEffort{next: p, logger: logger.Named("publisher")}
}

type bestEffort struct {
	next   Publisher
	logger *zap.Logger
}

func (b bestEffort) Publish(ctx context.Context, key string, event any) error {
	if err := b.next.Publish(ctx, key, event); err != nil {
		b.logger.Warn("event not published", zap.String("key", key), zap.Error(err))
	}
	return nil
}
