package background

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks off the request path while still
// letting the server drain them on shutdown.
type Background struct {
	wg  sync.WaitGroup
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(fn func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithField("message", rec).Error("background task panicked")
			}
		}()

		if err := fn(); err != nil {
			b.log.WithField("message", err).Error("background task failed")
		}
	}()
}

// Shutdown waits for in-flight tasks, or gives up when ctx expires.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
