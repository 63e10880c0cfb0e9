package usb

import (
	"errors"
	"time"
)

// Transfer error sentinels. See the package documentation for the
// recovery policy attached to each.
var (
	ErrTimeout    = errors.New("usb: transfer timed out")
	ErrOverflow   = errors.New("usb: endpoint buffer overflow")
	ErrStall      = errors.New("usb: endpoint stalled")
	ErrDeviceGone = errors.New("usb: device disconnected")
)

// Setup errors
var (
	// ErrNoDevice indicates no dongle with a known vendor/product ID is
	// attached.
	ErrNoDevice = errors.New("usb: no compatible device found")
	// ErrNoEndpoint indicates the claimed interface is missing a bulk
	// IN or OUT endpoint.
	ErrNoEndpoint = errors.New("usb: bulk endpoint not found")
)

// DeviceID is a vendor/product ID pair.
type DeviceID struct {
	Vendor  uint16
	Product uint16
}

// KnownDevices lists the vendor/product IDs of supported dongles.
var KnownDevices = []DeviceID{
	{Vendor: 0x1314, Product: 0x1520},
	{Vendor: 0x1314, Product: 0x1521},
}

// Transport is the bulk-transfer capability the driver runs on.
//
// Read and Write move raw bytes over the IN and OUT bulk endpoints.
// Read blocks for at most the given timeout and reports ErrTimeout when
// it expires with no data; both report the sentinel errors above for
// the corresponding transfer faults.
type Transport interface {
	// Read fills buf from the IN endpoint, returning the byte count.
	Read(buf []byte, timeout time.Duration) (int, error)
	// Write sends buf on the OUT endpoint, returning the byte count.
	Write(buf []byte) (int, error)
	// ClearHaltIn clears a halt/stall condition on the IN endpoint.
	ClearHaltIn() error
	// MaxPacketSize returns the IN endpoint's max packet size, used to
	// size drain reads during overflow recovery.
	MaxPacketSize() int
	// Close releases the device and all claimed resources.
	Close() error
}
