package client

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStreamClosed is returned by Next after the stream was closed
// cleanly (by Close, Shutdown, or transport cancellation).
var ErrStreamClosed = errors.New("status stream closed")

// StatusStream is a lazy sequence of decoded status snapshots from a
// single observe relationship.
//
// The stream is not restartable: once Next returns an error, whether
// from cancellation or a corrupt payload, the stream is finished, and
// a new call to ObserveStatus is required to resume. A corrupt payload
// usually means the session desynced, so consumers should re-sync
// before resubscribing; the coordinator package does exactly that.
type StatusStream struct {
	sub     Subscription
	log     *zap.Logger
	onClose func() // deregisters the stream from its client

	statuses chan DeviceStatus
	pumped   chan struct{} // closed when the pump goroutine exits

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

func newStatusStream(sub Subscription, log *zap.Logger) *StatusStream {
	s := &StatusStream{
		sub:      sub,
		log:      log,
		statuses: make(chan DeviceStatus),
		pumped:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump decrypts and decodes raw payloads until the subscription is
// cancelled or a payload fails to decode.
func (s *StatusStream) pump() {
	defer close(s.statuses)
	defer close(s.pumped)

	for {
		select {
		case raw := <-s.sub.Payloads():
			status, err := decodeStatus(raw)
			if err != nil {
				// A single corrupt message likely means session
				// desync; surface it instead of skipping so the
				// caller can decide to resync.
				s.log.Warn("Status observation terminated", zap.Error(err))
				s.setErr(NewStreamError(err))
				if cerr := s.sub.Cancel(context.Background()); cerr != nil {
					s.log.Warn("Failed to cancel subscription", zap.Error(cerr))
				}
				return
			}
			select {
			case s.statuses <- status:
			case <-s.sub.Done():
				return
			}
		case <-s.sub.Done():
			return
		}
	}
}

// Next blocks until the next status snapshot arrives, the stream ends,
// or ctx is done. After an abnormal termination every subsequent call
// returns the same stream error; after a clean close it returns
// ErrStreamClosed.
func (s *StatusStream) Next(ctx context.Context) (DeviceStatus, error) {
	select {
	case status, ok := <-s.statuses:
		if !ok {
			if err := s.Err(); err != nil {
				return nil, err
			}
			return nil, ErrStreamClosed
		}
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the terminal error if the stream ended abnormally, or
// nil for a live or cleanly closed stream.
func (s *StatusStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *StatusStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close cancels the underlying subscription and waits for the
// delivery goroutine to finish, so no callback can outlive the
// transport. Idempotent.
func (s *StatusStream) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.sub.Cancel(ctx)
		<-s.pumped
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}
