package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelcron/reelcron/pkg/logger"
)

// Default processing wait.
const (
	DefaultPollInterval      = 10 * time.Second
	DefaultProcessingTimeout = 300 * time.Second
)

// StatusChecker reads the processing status of a container.
type StatusChecker interface {
	ContainerStatus(ctx context.Context, containerID string) (Status, error)
}

// WaitOptions tunes WaitForProcessing.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   logger.Logger
	// OnStatus, when set, is called after every poll.
	OnStatus func(st Status, elapsed time.Duration)
}

func (o *WaitOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultProcessingTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
}

// WaitForProcessing polls the container until it reaches FINISHED or
// PUBLISHED, fails with ERROR or EXPIRED, or the timeout elapses. Other
// states keep polling. Transient request errors are logged and polled
// again; fatal ones are returned.
func WaitForProcessing(ctx context.Context, api StatusChecker, containerID string, opts WaitOptions) (Status, error) {
	opts.defaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	var last Status
	for {
		st, err := api.ContainerStatus(ctx, containerID)
		switch {
		case err != nil && ctx.Err() != nil:
			// the request was cut by the deadline
		case err != nil:
			if ClassifyError(err) == ErrCategoryFatal {
				return last, err
			}
			opts.Logger.Warning("Status check for %s failed, retrying: %v", containerID, err)
		default:
			last = st
			if opts.OnStatus != nil {
				opts.OnStatus(st, time.Since(start))
			}
			switch st.Code {
			case StatusFinished, StatusPublished:
				opts.Logger.Info("Media processing completed: %s", st.Code)
				return st, nil
			case StatusError, StatusExpired:
				return st, fmt.Errorf("%w: container %s: %s %s", ErrProcessingFailed, containerID, st.Code, st.Detail)
			case StatusInProgress:
				opts.Logger.Debug("Processing status: %s", st.Code)
			default:
				opts.Logger.Warning("Unknown status for %s: %q %s", containerID, st.Code, st.Detail)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, fmt.Errorf("%w: container %s after %s", ErrProcessingTimeout, containerID, opts.Timeout)
			}
			return last, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
