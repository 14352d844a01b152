package client

import "context"

// Transport is the CoAP messaging collaborator the protocol client
// drives. The production implementation rides on plgd-dev/go-coap;
// tests substitute a scripted fake.
//
// Implementations are expected to serialize or pipeline requests
// safely; the client adds no locking around request/response pairs.
type Transport interface {
	// Post sends a non-confirmable POST and returns the response
	// payload.
	Post(ctx context.Context, path string, payload []byte) ([]byte, error)

	// Get sends a non-confirmable GET with the observe option set to
	// 0 and returns the response payload. The device firmware
	// requires observe=0 even for one-shot status reads.
	Get(ctx context.Context, path string) ([]byte, error)

	// Subscribe opens an observe relationship on the resource and
	// delivers successive raw payloads until cancelled.
	Subscribe(ctx context.Context, path string) (Subscription, error)

	// Close releases the transport session. Must be idempotent.
	Close() error
}

// Subscription is a live observe relationship on a single resource.
type Subscription interface {
	// Payloads delivers raw response payloads as the device pushes
	// them. The channel is never closed; consumers select on Done.
	Payloads() <-chan []byte

	// Done is closed when the subscription has been cancelled.
	Done() <-chan struct{}

	// Cancel deregisters the observation. Safe to call more than
	// once.
	Cancel(ctx context.Context) error
}
