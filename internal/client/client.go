package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/airctrl/airctrl/internal/envelope"
	"github.com/airctrl/airctrl/internal/logging"
	"github.com/airctrl/airctrl/internal/session"
)

// Device resource paths
const (
	StatusPath  = "/sys/dev/status"
	ControlPath = "/sys/dev/control"
	SyncPath    = "/sys/dev/sync"
)

const (
	// DefaultPort is the CoAP port the purifiers listen on
	DefaultPort = 5683

	// DefaultTimeout bounds each request/response round-trip
	DefaultTimeout = 10 * time.Second

	// DefaultRetryCount is the number of retries after the initial
	// control attempt
	DefaultRetryCount = 5
)

// Client speaks the purifier's session-encrypted CoAP protocol. It
// owns a single transport session, the session token lifecycle, and
// the retry/resync policy for control commands.
//
// A Client is safe for concurrent use: the key manager serializes
// token advancement so concurrent control requests never reuse a
// token.
type Client struct {
	host       string
	port       int
	timeout    time.Duration
	retryCount int
	resync     bool
	retryDelay time.Duration
	transport  Transport
	keys       *session.KeyManager
	log        *zap.Logger

	mu      sync.Mutex
	closed  bool
	streams []*StatusStream
}

// Option configures a Client before it connects.
type Option func(*Client)

// WithPort sets the device CoAP port (default 5683)
func WithPort(port int) Option {
	return func(c *Client) { c.port = port }
}

// WithTimeout bounds each request round-trip (default 10s). Callers
// passing a context with an earlier deadline win.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithRetryCount sets how many times a rejected control command is
// retried after the initial attempt (default 5)
func WithRetryCount(n int) Option {
	return func(c *Client) { c.retryCount = n }
}

// WithResync controls whether a rejected control command triggers a
// fresh sync handshake before the next attempt (default true). The
// resync does not consume a retry.
func WithResync(enabled bool) Option {
	return func(c *Client) { c.resync = enabled }
}

// WithRetryDelay inserts a fixed delay before each control retry
// (default none, matching the device's expectations)
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the logger used for protocol debug output
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTransport substitutes the CoAP transport. Used by tests and by
// callers that manage their own session.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// New creates a client, dials the device, and performs the initial
// sync handshake. Transport creation failures return a connect error;
// handshake failures are surfaced as sync or timeout errors with the
// session torn down again.
func New(ctx context.Context, host string, opts ...Option) (*Client, error) {
	c := &Client{
		host:       host,
		port:       DefaultPort,
		timeout:    DefaultTimeout,
		retryCount: DefaultRetryCount,
		resync:     true,
		log:        logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.keys = session.NewKeyManager(c.log)

	if c.transport == nil {
		t, err := dialCoAP(c.host, c.port, c.log)
		if err != nil {
			return nil, NewConnectError(fmt.Sprintf("failed to create CoAP session to %s", host), err)
		}
		c.transport = t
	}

	if err := c.Sync(ctx); err != nil {
		_ = c.transport.Close()
		return nil, err
	}
	return c, nil
}

// Sync performs the unencrypted handshake: a random 8-hex-character
// nonce is POSTed to the sync resource and the response text becomes
// the new session token. Called once at construction and again
// whenever a control command is rejected.
func (c *Client) Sync(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce := make([]byte, 4)
	if _, err := rand.Read(nonce); err != nil {
		return NewSyncError("failed to generate sync nonce", err)
	}
	hexNonce := strings.ToUpper(hex.EncodeToString(nonce))

	c.log.Debug("Sending sync request", zap.String("nonce", hexNonce))
	body, err := c.transport.Post(ctx, SyncPath, []byte(hexNonce))
	if err != nil {
		if isDeadline(err) {
			return NewTimeoutError("sync handshake timed out", err)
		}
		return NewSyncError("sync round-trip failed", err)
	}

	token := string(body)
	if err := c.keys.SetFromSync(token); err != nil {
		return NewSyncError("device returned malformed session token", err)
	}
	c.log.Debug("Session token established", zap.String("token", token))
	return nil
}

// GetStatus reads the device's reported state once. The response
// envelope is decrypted with the key the device itself embedded, so
// this works even when the local token has drifted. Crypto and decode
// failures propagate unmodified.
func (c *Client) GetStatus(ctx context.Context) (DeviceStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := c.transport.Get(ctx, StatusPath)
	if err != nil {
		if isDeadline(err) {
			return nil, NewTimeoutError("status request timed out", err)
		}
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return decodeStatus(body)
}

// ObserveStatus opens a status subscription and returns a stream of
// decoded snapshots. The stream ends abnormally on the first corrupt
// payload; it is not restartable, so call ObserveStatus again to
// resubscribe.
func (c *Client) ObserveStatus(ctx context.Context) (*StatusStream, error) {
	sub, err := c.transport.Subscribe(ctx, StatusPath)
	if err != nil {
		return nil, fmt.Errorf("status subscription failed: %w", err)
	}

	stream := newStatusStream(sub, c.log)
	stream.onClose = func() { c.forgetStream(stream) }

	c.mu.Lock()
	c.streams = append(c.streams, stream)
	c.mu.Unlock()

	return stream, nil
}

// SetControlValue sets a single control field. See SetControlValues.
func (c *Client) SetControlValue(ctx context.Context, key string, value any) error {
	return c.SetControlValues(ctx, map[string]any{key: value})
}

// SetControlValues submits desired state to the device. The payload is
// encrypted with the next session token (advancing the stored one).
// When the device rejects the command (typically because the session
// desynced), the client re-syncs (without consuming a retry) and tries
// again, up to the configured retry count. Exhausting retries returns
// a control error carrying the rejected fields.
func (c *Client) SetControlValues(ctx context.Context, values map[string]any) error {
	payload, err := buildControlPayload(values)
	if err != nil {
		return NewDecodeError("failed to encode control payload", err)
	}

	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			c.log.Debug("Retrying control request", zap.Int("attempt", attempt))
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return err
			}
		}

		accepted, err := c.sendControl(ctx, payload)
		if err != nil {
			return err
		}
		if accepted {
			return nil
		}

		c.log.Debug("Control request rejected by device", zap.Int("attempt", attempt))
		if c.resync {
			if err := c.Sync(ctx); err != nil {
				return err
			}
		}
	}

	c.log.Warn("Control command exhausted retries", zap.Any("values", values))
	return NewControlError(values)
}

// sendControl performs a single encrypt-and-POST round-trip and
// reports whether the device accepted the command.
func (c *Client) sendControl(ctx context.Context, payload []byte) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// The advance is atomic within the key manager: concurrent
	// control requests each get a distinct token.
	token, err := c.keys.Advance()
	if err != nil {
		return false, NewNotSyncedError(err)
	}

	sealed, err := envelope.Encrypt(token, payload)
	if err != nil {
		return false, err
	}

	body, err := c.transport.Post(ctx, ControlPath, []byte(sealed))
	if err != nil {
		if isDeadline(err) {
			return false, NewTimeoutError("control request timed out", err)
		}
		return false, fmt.Errorf("control request failed: %w", err)
	}

	// Control responses are plaintext JSON, not envelopes.
	var resp controlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, NewDecodeError("malformed control response", err)
	}
	return resp.Status == controlAccepted, nil
}

// Shutdown cancels any live observations, waits for their delivery
// goroutines, and releases the transport session. Idempotent: safe
// to call multiple times or on a client whose sync never completed.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for _, s := range streams {
		if err := s.Close(ctx); err != nil {
			c.log.Warn("Failed to cancel status observation", zap.Error(err))
		}
	}
	return c.transport.Close()
}

// forgetStream drops a closed stream from the shutdown list.
func (c *Client) forgetStream(stream *StatusStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.streams {
		if s == stream {
			c.streams = append(c.streams[:i], c.streams[i+1:]...)
			return
		}
	}
}

// decodeStatus opens a status envelope and extracts state.reported.
func decodeStatus(body []byte) (DeviceStatus, error) {
	plaintext, err := envelope.Decrypt(string(body))
	if err != nil {
		return nil, err
	}

	var doc statusDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, NewDecodeError("malformed status JSON", err)
	}
	if doc.State.Reported == nil {
		return nil, NewDecodeError("status payload missing state.reported", nil)
	}
	return doc.State.Reported, nil
}

// withTimeout applies the client's per-operation timeout unless the
// caller supplied an earlier deadline.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// sleep waits for d or until ctx is cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
