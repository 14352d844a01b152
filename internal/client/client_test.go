package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/airctrl/airctrl/internal/envelope"
)

// fakeTransport scripts device behavior for client tests. Sync
// responses and control responses are consumed in order, with the
// last entry repeating once the script runs out.
type fakeTransport struct {
	mu sync.Mutex

	syncTokens    []string // responses to sync POSTs
	controlBodies []string // responses to control POSTs
	statusBody    []byte   // response to status GETs

	postErr error // returned by every POST when set
	getErr  error // returned by every GET when set

	syncPosts    []string // recorded sync nonces
	controlPosts []string // recorded control envelopes
	getCalls     int
	closeCalls   int

	sub *fakeSubscription
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		syncTokens:    []string{"0000000A"},
		controlBodies: []string{`{"status":"success"}`},
	}
}

func (f *fakeTransport) Post(_ context.Context, path string, payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.postErr != nil {
		return nil, f.postErr
	}

	switch path {
	case SyncPath:
		f.syncPosts = append(f.syncPosts, string(payload))
		return []byte(take(f.syncTokens, len(f.syncPosts)-1)), nil
	case ControlPath:
		f.controlPosts = append(f.controlPosts, string(payload))
		return []byte(take(f.controlBodies, len(f.controlPosts)-1)), nil
	}
	return nil, nil
}

func (f *fakeTransport) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.statusBody, nil
}

func (f *fakeTransport) Subscribe(_ context.Context, path string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sub = newFakeSubscription()
	return f.sub, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeTransport) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncPosts)
}

func (f *fakeTransport) controlCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.controlPosts)
}

// take returns script[i], repeating the final entry forever.
func take(script []string, i int) string {
	if i >= len(script) {
		return script[len(script)-1]
	}
	return script[i]
}

// fakeSubscription lets tests push raw payloads into a stream.
type fakeSubscription struct {
	payloads chan []byte
	done     chan struct{}
	once     sync.Once
	cancels  int
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		payloads: make(chan []byte, 8),
		done:     make(chan struct{}),
	}
}

func (s *fakeSubscription) Payloads() <-chan []byte { return s.payloads }
func (s *fakeSubscription) Done() <-chan struct{}   { return s.done }

func (s *fakeSubscription) Cancel(_ context.Context) error {
	s.once.Do(func() {
		s.cancels++
		close(s.done)
	})
	return nil
}

func (s *fakeSubscription) push(payload []byte) {
	s.payloads <- payload
}

func newTestClient(t *testing.T, f *fakeTransport, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithTransport(f)}, opts...)
	c, err := New(context.Background(), "192.0.2.1", opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewPerformsSync(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	if f.syncCount() != 1 {
		t.Errorf("sync posts = %d, want 1", f.syncCount())
	}

	// The sync nonce is 8 uppercase hex characters
	nonce := f.syncPosts[0]
	if len(nonce) != 8 {
		t.Errorf("nonce length = %d, want 8", len(nonce))
	}
	if nonce != strings.ToUpper(nonce) {
		t.Errorf("nonce %s is not uppercase", nonce)
	}
}

func TestNewSyncFailure(t *testing.T) {
	f := newFakeTransport()
	f.postErr = context.DeadlineExceeded

	_, err := New(context.Background(), "192.0.2.1", WithTransport(f))
	if !IsTimeout(err) {
		t.Errorf("err = %v, want timeout", err)
	}
	if f.closeCalls != 1 {
		t.Errorf("transport close calls = %d, want 1 after failed sync", f.closeCalls)
	}
}

func TestSyncRejectsMalformedToken(t *testing.T) {
	f := newFakeTransport()
	f.syncTokens = []string{"not-a-token"}

	_, err := New(context.Background(), "192.0.2.1", WithTransport(f))
	if !IsSyncFailed(err) {
		t.Errorf("err = %v, want sync failure", err)
	}
}

func TestControlEncryptsWithAdvancedToken(t *testing.T) {
	f := newFakeTransport()
	f.syncTokens = []string{"0000000A"}
	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	if err := c.SetControlValue(context.Background(), "pwr", "1"); err != nil {
		t.Fatalf("SetControlValue failed: %v", err)
	}

	// Sync set the token to 0000000A; the first control message must
	// be keyed with the advanced token, not the synced one.
	env := f.controlPosts[0]
	if got := env[:8]; got != "0000000B" {
		t.Errorf("control envelope key = %s, want 0000000B", got)
	}

	plaintext, err := envelope.Decrypt(env)
	if err != nil {
		t.Fatalf("control envelope does not decrypt: %v", err)
	}
	for _, want := range []string{`"CommandType":"app"`, `"DeviceId":""`, `"EnduserId":""`, `"pwr":"1"`} {
		if !strings.Contains(string(plaintext), want) {
			t.Errorf("control payload %s missing %s", plaintext, want)
		}
	}
}

func TestControlRetryAndResync(t *testing.T) {
	f := newFakeTransport()
	f.syncTokens = []string{"00000001", "00000010", "00000020", "00000030"}
	f.controlBodies = []string{
		`{"status":"fail"}`,
		`{"status":"fail"}`,
		`{"status":"fail"}`,
		`{"status":"success"}`,
	}
	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	if err := c.SetControlValues(context.Background(), map[string]any{"mode": "AG"}); err != nil {
		t.Fatalf("SetControlValues failed: %v", err)
	}

	// Initial sync plus one resync per rejection
	if f.syncCount() != 4 {
		t.Errorf("sync posts = %d, want 4 (1 initial + 3 resyncs)", f.syncCount())
	}
	if f.controlCount() != 4 {
		t.Errorf("control posts = %d, want 4", f.controlCount())
	}

	// Each attempt after a resync must be keyed from the fresh token
	wantKeys := []string{"00000002", "00000011", "00000021", "00000031"}
	for i, env := range f.controlPosts {
		if got := env[:8]; got != wantKeys[i] {
			t.Errorf("attempt %d key = %s, want %s", i, got, wantKeys[i])
		}
	}
}

func TestControlRetriesExhausted(t *testing.T) {
	f := newFakeTransport()
	f.controlBodies = []string{`{"status":"fail"}`}
	c := newTestClient(t, f, WithRetryCount(2))
	defer c.Shutdown(context.Background())

	err := c.SetControlValues(context.Background(), map[string]any{"pwr": "1"})
	if !IsControlFailed(err) {
		t.Fatalf("err = %v, want control failure", err)
	}

	// Initial attempt plus exactly two retries
	if f.controlCount() != 3 {
		t.Errorf("control posts = %d, want 3", f.controlCount())
	}

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("err %v is not a ProtocolError", err)
	}
	if protoErr.Values["pwr"] != "1" {
		t.Errorf("error does not carry the rejected values: %v", protoErr.Values)
	}
}

func TestControlNoResync(t *testing.T) {
	f := newFakeTransport()
	f.controlBodies = []string{`{"status":"fail"}`}
	c := newTestClient(t, f, WithRetryCount(2), WithResync(false))
	defer c.Shutdown(context.Background())

	err := c.SetControlValues(context.Background(), map[string]any{"pwr": "1"})
	if !IsControlFailed(err) {
		t.Fatalf("err = %v, want control failure", err)
	}

	// Only the initial sync from New; rejections must not resync
	if f.syncCount() != 1 {
		t.Errorf("sync posts = %d, want 1", f.syncCount())
	}
}

func TestControlMalformedResponse(t *testing.T) {
	f := newFakeTransport()
	f.controlBodies = []string{`not json`}
	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	err := c.SetControlValue(context.Background(), "pwr", "1")
	if !IsDecodeError(err) {
		t.Errorf("err = %v, want decode error", err)
	}
	// Transport-level failures are not retried
	if f.controlCount() != 1 {
		t.Errorf("control posts = %d, want 1", f.controlCount())
	}
}

func TestGetStatusUsesEnvelopeKey(t *testing.T) {
	f := newFakeTransport()
	f.syncTokens = []string{"00000001"}

	// Device encrypts with a key unrelated to the local token; the
	// client must trust the envelope's own prefix.
	env, err := envelope.Encrypt("AABBCCDD", []byte(`{"state":{"reported":{"pwr":"1","mode":"AG"}}}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	f.statusBody = []byte(env)

	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	status, err := c.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}

	if pwr, _ := status.String("pwr"); pwr != "1" {
		t.Errorf("pwr = %s, want 1", pwr)
	}
	if mode, _ := status.String("mode"); mode != "AG" {
		t.Errorf("mode = %s, want AG", mode)
	}
}

func TestGetStatusPropagatesDigestMismatch(t *testing.T) {
	f := newFakeTransport()
	env, err := envelope.Encrypt("AABBCCDD", []byte(`{"state":{"reported":{"pwr":"1"}}}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	// Corrupt one ciphertext character
	b := []byte(env)
	if b[10] == '0' {
		b[10] = '1'
	} else {
		b[10] = '0'
	}
	f.statusBody = b

	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	_, err = c.GetStatus(context.Background())
	if !envelope.IsDigestMismatch(err) {
		t.Errorf("err = %v, want digest mismatch", err)
	}
	// A single bad read is surfaced, never retried
	if f.getCalls != 1 {
		t.Errorf("get calls = %d, want 1", f.getCalls)
	}
}

func TestGetStatusMissingReported(t *testing.T) {
	f := newFakeTransport()
	env, err := envelope.Encrypt("AABBCCDD", []byte(`{"state":{}}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	f.statusBody = []byte(env)

	c := newTestClient(t, f)
	defer c.Shutdown(context.Background())

	if _, err := c.GetStatus(context.Background()); !IsDecodeError(err) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if f.closeCalls != 1 {
		t.Errorf("transport close calls = %d, want 1", f.closeCalls)
	}
}

func TestShutdownCancelsObservations(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	stream, err := c.ObserveStatus(context.Background())
	if err != nil {
		t.Fatalf("ObserveStatus failed: %v", err)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case <-f.sub.Done():
	default:
		t.Error("subscription not cancelled by Shutdown")
	}

	// The stream must report a clean close afterwards
	if _, err := stream.Next(context.Background()); err != ErrStreamClosed {
		t.Errorf("Next after Shutdown: err = %v, want ErrStreamClosed", err)
	}
}
