package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WithSignals cancels the returned context on SIGINT or SIGTERM.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Drain runs every hook with a fresh context bounded by timeout and joins
// their errors. Hooks run in order; a failing hook does not stop the rest.
func Drain(timeout time.Duration, hooks ...func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	for _, hook := range hooks {
		err = errors.Join(err, hook(ctx))
	}
	return err
}
