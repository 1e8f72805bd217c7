package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

type pingCloser interface {
	Ping(context.Context) error
	Close() error
}

// lastSuccessful remembers the factory that worked the last time, so that
// the next attempt does not need to probe all the backends again.
type lastSuccessful[F any] struct {
	locker  sync.Mutex
	factory *F
}

func (l *lastSuccessful[F]) get() *F {
	l.locker.Lock()
	defer l.locker.Unlock()
	return l.factory
}

func (l *lastSuccessful[F]) set(f F) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.factory = &f
}

func selectBackend[F any, T pingCloser](
	ctx context.Context,
	kind string,
	last *lastSuccessful[F],
	factories []F,
	newBackend func(F) (T, error),
) (T, error) {
	if factory := last.get(); factory != nil {
		backend, err := newBackend(*factory)
		if err == nil {
			if err := backend.Ping(ctx); err == nil {
				return backend, nil
			}
			_ = backend.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range factories {
		backend, err := newBackend(factory)
		logger.Debugf(ctx, "initializing %s %T result is %v", kind, backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", factory, err))
			continue
		}

		err = backend.Ping(ctx)
		logger.Debugf(ctx, "pinging %s %T result is %v", kind, backend, err)
		if err != nil {
			_ = backend.Close()
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", backend, err))
			continue
		}

		last.set(factory)
		return backend, nil
	}

	var zero T
	if mErr == nil {
		return zero, fmt.Errorf("no %s backends are registered", kind)
	}
	return zero, mErr.ErrorOrNil()
}
