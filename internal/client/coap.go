package client

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpclient "github.com/plgd-dev/go-coap/v3/udp/client"
	"go.uber.org/zap"

	"github.com/airctrl/airctrl/internal/logging"
)

// coapObservation is the slice of the go-coap observation we need.
type coapObservation interface {
	Cancel(ctx context.Context, opts ...message.Option) error
}

// coapTransport implements Transport on a plgd-dev/go-coap UDP
// client connection.
type coapTransport struct {
	conn *udpclient.Conn
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ Transport = (*coapTransport)(nil)

// dialCoAP opens a UDP CoAP session to the device.
func dialCoAP(host string, port int, log *zap.Logger) (*coapTransport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := udp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &coapTransport{conn: conn, log: log}, nil
}

func (t *coapTransport) Post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := t.conn.NewPostRequest(ctx, path, message.TextPlain, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build POST %s: %w", path, err)
	}
	req.SetType(message.NonConfirmable)

	logging.LogRawBytes("coap POST "+path, payload)

	resp, err := t.conn.Do(req)
	if err != nil {
		return nil, err
	}
	return readBody(path, resp)
}

func (t *coapTransport) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := t.conn.NewGetRequest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build GET %s: %w", path, err)
	}
	// The firmware only answers status reads that initiate an observe
	// relationship, even one-shot ones.
	req.SetObserve(0)
	req.SetType(message.NonConfirmable)

	resp, err := t.conn.Do(req)
	if err != nil {
		return nil, err
	}
	return readBody(path, resp)
}

func (t *coapTransport) Subscribe(ctx context.Context, path string) (Subscription, error) {
	sub := &coapSubscription{
		payloads: make(chan []byte, 8),
		done:     make(chan struct{}),
		log:      t.log,
	}

	obs, err := t.conn.Observe(ctx, path, func(m *pool.Message) {
		body, err := m.ReadBody()
		if err != nil {
			sub.log.Warn("Failed to read observation payload", zap.Error(err))
			return
		}
		select {
		case sub.payloads <- body:
		case <-sub.done:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to observe %s: %w", path, err)
	}

	sub.obs = obs
	return sub, nil
}

func (t *coapTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// readBody extracts the payload from a response, rejecting error
// response codes.
func readBody(path string, resp *pool.Message) ([]byte, error) {
	if resp.Code() >= codes.BadRequest {
		return nil, fmt.Errorf("%s: unexpected response code %v", path, resp.Code())
	}
	body, err := resp.ReadBody()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", path, err)
	}
	logging.LogRawBytes("coap response "+path, body)
	return body, nil
}

// coapSubscription adapts a go-coap observation to the Subscription
// interface.
type coapSubscription struct {
	obs      coapObservation
	payloads chan []byte
	done     chan struct{}
	log      *zap.Logger
	once     sync.Once
}

func (s *coapSubscription) Payloads() <-chan []byte {
	return s.payloads
}

func (s *coapSubscription) Done() <-chan struct{} {
	return s.done
}

func (s *coapSubscription) Cancel(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.obs.Cancel(ctx)
	})
	return err
}
