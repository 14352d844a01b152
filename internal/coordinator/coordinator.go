package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/airctrl/airctrl/internal/client"
	"github.com/airctrl/airctrl/internal/logging"
)

const (
	// DefaultReconnectDelay is the pause before resubscribing after a
	// stream ends
	DefaultReconnectDelay = 2 * time.Second
)

// errWatchdogExpired signals that no status update arrived within the
// watchdog interval.
var errWatchdogExpired = errors.New("no status update within watchdog interval")

// Listener receives status snapshots as the device pushes them.
type Listener func(client.DeviceStatus)

// Coordinator owns the observe lifecycle for one device.
type Coordinator struct {
	client         *client.Client
	log            *zap.Logger
	watchdog       time.Duration
	reconnectDelay time.Duration

	mu        sync.Mutex
	status    client.DeviceStatus
	listeners map[int]Listener
	nextID    int
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWatchdog enables the stalled-transport watchdog: if no status
// arrives for d, the coordinator resyncs and resubscribes. Zero
// disables the watchdog (default).
func WithWatchdog(d time.Duration) Option {
	return func(co *Coordinator) { co.watchdog = d }
}

// WithReconnectDelay sets the pause between a stream ending and the
// next subscription attempt
func WithReconnectDelay(d time.Duration) Option {
	return func(co *Coordinator) { co.reconnectDelay = d }
}

// WithLogger sets the coordinator's logger
func WithLogger(log *zap.Logger) Option {
	return func(co *Coordinator) { co.log = log }
}

// New creates a coordinator for an already-connected client.
func New(c *client.Client, opts ...Option) *Coordinator {
	co := &Coordinator{
		client:         c,
		log:            logging.GetLogger(),
		reconnectDelay: DefaultReconnectDelay,
		listeners:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// FirstRefresh populates the snapshot with a one-shot status read.
// Call once before relying on Status.
func (co *Coordinator) FirstRefresh(ctx context.Context) error {
	status, err := co.client.GetStatus(ctx)
	if err != nil {
		return err
	}
	co.mu.Lock()
	co.status = status
	co.mu.Unlock()
	return nil
}

// Status returns the most recent snapshot, or nil before the first
// refresh or update.
func (co *Coordinator) Status() client.DeviceStatus {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.status
}

// AddListener registers a status listener and returns its removal
// function. The first listener starts the observation loop; removing
// the last one stops it and waits for the loop to exit.
func (co *Coordinator) AddListener(fn Listener) (remove func()) {
	co.mu.Lock()
	id := co.nextID
	co.nextID++
	start := len(co.listeners) == 0
	co.listeners[id] = fn

	if start {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		co.cancel = cancel
		co.done = done
		go co.run(ctx, done)
	}
	co.mu.Unlock()

	return func() { co.removeListener(id) }
}

func (co *Coordinator) removeListener(id int) {
	co.mu.Lock()
	if _, ok := co.listeners[id]; !ok {
		co.mu.Unlock()
		return
	}
	delete(co.listeners, id)

	var cancel context.CancelFunc
	var done chan struct{}
	if len(co.listeners) == 0 && co.cancel != nil {
		cancel = co.cancel
		done = co.done
		co.cancel = nil
		co.done = nil
	}
	co.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Close stops the observation loop regardless of remaining listeners
// and waits for it to exit. The wrapped client is not shut down.
func (co *Coordinator) Close() {
	co.mu.Lock()
	cancel := co.cancel
	done := co.done
	co.cancel = nil
	co.done = nil
	co.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run keeps one subscription alive until ctx is cancelled.
func (co *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		stream, err := co.client.ObserveStatus(ctx)
		if err != nil {
			co.log.Warn("Status subscription failed", zap.Error(err))
			if !co.pause(ctx) {
				return
			}
			continue
		}

		err = co.consume(ctx, stream)
		_ = stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		co.log.Warn("Status observation interrupted", zap.Error(err))

		// A terminated stream usually means the session desynced;
		// refresh the token before subscribing again.
		if err := co.client.Sync(ctx); err != nil {
			co.log.Warn("Resync after interruption failed", zap.Error(err))
		}
		if !co.pause(ctx) {
			return
		}
	}
}

// consume dispatches stream updates until the stream ends, the
// watchdog expires, or ctx is cancelled.
func (co *Coordinator) consume(ctx context.Context, stream *client.StatusStream) error {
	g, ctx := errgroup.WithContext(ctx)
	updates := make(chan client.DeviceStatus)

	g.Go(func() error {
		for {
			status, err := stream.Next(ctx)
			if err != nil {
				return err
			}
			select {
			case updates <- status:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		var timer *time.Timer
		var expire <-chan time.Time
		if co.watchdog > 0 {
			timer = time.NewTimer(co.watchdog)
			defer timer.Stop()
			expire = timer.C
		}

		for {
			select {
			case status := <-updates:
				co.dispatch(status)
				if timer != nil {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(co.watchdog)
				}
			case <-expire:
				return errWatchdogExpired
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// dispatch stores the snapshot and notifies listeners outside the
// lock.
func (co *Coordinator) dispatch(status client.DeviceStatus) {
	co.mu.Lock()
	co.status = status
	fns := make([]Listener, 0, len(co.listeners))
	for _, fn := range co.listeners {
		fns = append(fns, fn)
	}
	co.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

// pause sleeps for the reconnect delay; returns false if ctx ended
// first.
func (co *Coordinator) pause(ctx context.Context) bool {
	if co.reconnectDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(co.reconnectDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
