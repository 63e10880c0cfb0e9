// Package driver owns the USB dongle connection.
//
// A Driver runs one dongle session over a usb.Transport: it sends the
// initialization sequence, then runs two loops until the session ends —
// a blocking read loop that frames, decodes, and dispatches incoming
// messages, and a heartbeat loop that keeps the dongle's watchdog fed.
//
// # Lifecycle
//
//	Uninitialized -> Initialized -> Running -> Closed
//	                                  |
//	                                  v
//	                                Failed
//
// Initialise claims the device (or accepts an injected Transport), Start
// sends the init sequence and spawns the loops, Close shuts both down
// cooperatively. Failed is absorbing: it is entered when the device
// leaves the bus or when too many consecutive read errors accumulate,
// and it is announced to failure subscribers exactly once.
//
// # Error Policy
//
// Per-message problems never kill the session: unknown type codes are
// skipped past (their payload is consumed to keep the stream aligned),
// malformed payloads are dropped, and read timeouts are retried. A
// consecutive-error counter increments on I/O and parse errors, resets
// on any successfully dispatched message, and declares the driver dead
// at MaxErrorCount. Endpoint overflow is recovered by draining the IN
// endpoint and clearing its halt condition without touching the error
// counter; a stall gets a halt-clear and counts as one error.
//
// # Dispatch
//
// Message subscribers run synchronously on the read loop goroutine, in
// registration order, so messages are observed in exactly the order the
// bytes arrived on the endpoint. Subscribers must not block.
package driver
