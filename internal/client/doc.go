// Package client implements the session-encrypted CoAP protocol
// spoken by Philips air purifiers.
//
// The device exposes three resources over UDP CoAP:
//   - POST /sys/dev/sync: unencrypted handshake establishing the
//     rotating session token
//   - GET  /sys/dev/status: encrypted reported state (observe=0
//     required even for one-shot reads)
//   - POST /sys/dev/control: encrypted desired state; plaintext
//     JSON {"status":...} reply
//
// # Session Model
//
// Every encrypted request must be keyed with the next value of a
// 32-bit session counter the device hands out during sync. The client
// advances the counter immediately before each control encryption.
// When the device loses track of the session (lost packets, reboots)
// it rejects control commands; the client then re-syncs and retries,
// bounded by a retry budget.
//
// Responses are decrypted with the key the device embeds in each
// envelope, not the local token; the device always declares which key
// it used.
//
// # Usage Example
//
//	c, err := client.New(ctx, "192.168.1.50")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Shutdown(context.Background())
//
//	status, err := c.GetStatus(ctx)
//	...
//	err = c.SetControlValue(ctx, "pwr", "1")
//
// # Observation
//
//	stream, err := c.ObserveStatus(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    status, err := stream.Next(ctx)
//	    if err != nil {
//	        break // stream is finished; resubscribe to resume
//	    }
//	    ...
//	}
//
// # Error Handling
//
// Errors carry a category (sync failure, timeout, control failure,
// stream termination, ...) inspectable with the IsXxx predicates.
// Crypto failures from the envelope package propagate unmodified so
// callers can distinguish tampering from transport trouble.
//
// # Thread Safety
//
// Client methods are safe for concurrent use. Status snapshots are
// immutable once returned and safe to share across goroutines.
package client
