package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/logging"
)

// configNumber is the USB configuration the dongle exposes its bulk
// endpoints on.
const configNumber = 1

// Device is the gousb-backed Transport for a physical dongle.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	inAddr        gousb.EndpointAddress
	maxPacketSize int
}

// Open locates a dongle by the known vendor/product ID pairs, claims its
// interface, and resolves the bulk IN/OUT endpoints.
func Open() (*Device, error) {
	ctx := gousb.NewContext()

	dev, id, err := findDevice(ctx)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	logging.Info("Found dongle",
		zap.String("vendor_id", fmt.Sprintf("%04x", id.Vendor)),
		zap.String("product_id", fmt.Sprintf("%04x", id.Product)),
	)

	d := &Device{ctx: ctx, dev: dev}
	if err := d.claim(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func findDevice(ctx *gousb.Context) (*gousb.Device, DeviceID, error) {
	for _, id := range KnownDevices {
		dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(id.Vendor), gousb.ID(id.Product))
		if err != nil {
			return nil, DeviceID{}, fmt.Errorf("usb: opening %04x:%04x: %w", id.Vendor, id.Product, err)
		}
		if dev != nil {
			return dev, id, nil
		}
	}
	return nil, DeviceID{}, ErrNoDevice
}

func (d *Device) claim() error {
	// The dongle's interface is normally bound to a kernel driver on
	// Linux; let libusb detach it while we hold the interface.
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("usb: enabling auto-detach: %w", err)
	}

	cfg, err := d.dev.Config(configNumber)
	if err != nil {
		return fmt.Errorf("usb: selecting configuration %d: %w", configNumber, err)
	}
	d.cfg = cfg

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		return fmt.Errorf("usb: claiming interface: %w", err)
	}
	d.intf = intf

	var inDesc, outDesc *gousb.EndpointDesc
	for _, ep := range intf.Setting.Endpoints {
		ep := ep
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			inDesc = &ep
		case gousb.EndpointDirectionOut:
			outDesc = &ep
		}
	}
	if inDesc == nil {
		return fmt.Errorf("%w: IN", ErrNoEndpoint)
	}
	if outDesc == nil {
		return fmt.Errorf("%w: OUT", ErrNoEndpoint)
	}

	in, err := intf.InEndpoint(inDesc.Number)
	if err != nil {
		return fmt.Errorf("usb: opening IN endpoint %d: %w", inDesc.Number, err)
	}
	out, err := intf.OutEndpoint(outDesc.Number)
	if err != nil {
		return fmt.Errorf("usb: opening OUT endpoint %d: %w", outDesc.Number, err)
	}

	d.in = in
	d.out = out
	d.inAddr = inDesc.Address
	d.maxPacketSize = inDesc.MaxPacketSize

	logging.Debug("Claimed dongle interface",
		zap.Uint8("in_endpoint", uint8(inDesc.Address)),
		zap.Uint8("out_endpoint", uint8(outDesc.Address)),
		zap.Int("max_packet_size", inDesc.MaxPacketSize),
	)
	return nil
}

// Read fills buf from the IN endpoint, blocking for at most timeout.
func (d *Device) Read(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := d.in.ReadContext(ctx, buf)
	return n, classify(err)
}

// Write sends buf on the OUT endpoint.
func (d *Device) Write(buf []byte) (int, error) {
	n, err := d.out.Write(buf)
	return n, classify(err)
}

// ClearHaltIn clears a halt condition on the IN endpoint.
//
// gousb does not expose libusb_clear_halt, so this issues the equivalent
// standard request: CLEAR_FEATURE(ENDPOINT_HALT) addressed to the
// endpoint.
func (d *Device) ClearHaltIn() error {
	const (
		reqTypeEndpointOut  = 0x02 // host-to-device, standard, endpoint recipient
		reqClearFeature     = 0x01
		featureEndpointHalt = 0x00
	)
	_, err := d.dev.Control(reqTypeEndpointOut, reqClearFeature, featureEndpointHalt, uint16(d.inAddr), nil)
	return classify(err)
}

// MaxPacketSize returns the IN endpoint's max packet size.
func (d *Device) MaxPacketSize() int { return d.maxPacketSize }

// Close releases the interface, configuration, device, and context.
func (d *Device) Close() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		d.cfg.Close()
		d.cfg = nil
	}
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	return nil
}

// classify collapses gousb/libusb failures into the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, gousb.TransferTimedOut):
		return ErrTimeout
	case errors.Is(err, gousb.ErrorNoDevice),
		errors.Is(err, gousb.ErrorNotFound),
		errors.Is(err, gousb.TransferNoDevice):
		return fmt.Errorf("%w: %v", ErrDeviceGone, err)
	case errors.Is(err, gousb.ErrorOverflow),
		errors.Is(err, gousb.TransferOverflow):
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	case errors.Is(err, gousb.ErrorPipe),
		errors.Is(err, gousb.TransferStall):
		return fmt.Errorf("%w: %v", ErrStall, err)
	default:
		return err
	}
}
