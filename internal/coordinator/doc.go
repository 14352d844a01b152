// Package coordinator fans a single status observation out to many
// listeners and keeps it alive across session desyncs.
//
// The protocol client's status stream is deliberately fragile: one
// corrupt payload ends it, and a stalled transport simply stops
// producing. The coordinator layers the resilience policy on top:
//
//   - it starts observing when the first listener registers and stops
//     when the last one leaves
//   - when the stream terminates it re-syncs the session and
//     resubscribes
//   - an optional watchdog treats a quiet interval as a stalled
//     transport and forces the same resync/resubscribe cycle
//
// The latest status snapshot is retained so new listeners (and UIs
// rendering on demand) can read state without waiting for the next
// device push.
//
// # Usage Example
//
//	co := coordinator.New(c, coordinator.WithWatchdog(2*time.Minute))
//	if err := co.FirstRefresh(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	remove := co.AddListener(func(status client.DeviceStatus) {
//	    render(status)
//	})
//	defer remove()
//
// # Thread Safety
//
// All methods are safe for concurrent use. Listeners are invoked
// sequentially from the observation goroutine and receive immutable
// snapshots.
package coordinator
