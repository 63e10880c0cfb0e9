// Package usb provides the bulk-transfer transport used to talk to CarLink
// dongles.
//
// The driver layer depends only on the Transport interface, so it never
// sees libusb directly. Two implementations exist:
//
//   - Device: the real transport, backed by gousb/libusb. Open locates a
//     dongle by its known vendor/product ID pairs, claims the interface,
//     and resolves the bulk IN/OUT endpoints.
//   - Pipe: an in-memory transport for tests, with helpers to queue
//     incoming frames and inject transfer faults.
//
// # Error Classification
//
// Transfer failures are collapsed into four sentinel errors that callers
// branch on with errors.Is:
//
//   - ErrTimeout: the transfer deadline passed; benign, retry
//   - ErrOverflow: the endpoint delivered more than was asked for;
//     recoverable by draining and clearing the halt condition
//   - ErrStall: the endpoint halted; recoverable by clearing the halt
//   - ErrDeviceGone: the device left the bus; fatal for the session
//
// Anything else is passed through untouched.
package usb
