/*
Package usb carries NIOS frames to a bladeRF over its USB peripheral
endpoints.

The device exposes the NIOS command channel on the RF link alternate
setting of interface 0.  Each exchange is one 16-byte bulk OUT transfer on
endpoint 0x02 followed by one 16-byte bulk IN transfer on endpoint 0x82.
*/
package usb

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// USB identity and layout of a bladeRF1
const (
	VendorID  gousb.ID = 0x2CF0
	ProductID gousb.ID = 0x5246

	configNum      = 1
	interfaceNum   = 0
	altRFLink      = 1
	peripheralEP   = 2
	DefaultTimeout = 100 * time.Millisecond
)

var (
	// ErrNotFound is generated when no device matches the VID/PID
	ErrNotFound = errors.New("usb: bladeRF not found")

	// ErrTimeout is generated when a transfer does not finish in time
	ErrTimeout = errors.New("usb: transfer timed out")

	// ErrShortTransfer is generated when fewer than 16 bytes move
	ErrShortTransfer = errors.New("usb: short transfer")

	// ErrNotOpen is generated by exchanges on a closed device, or on one
	// whose last transfer timed out and which must be reopened
	ErrNotOpen = errors.New("usb: device not open")
)

// Device is an open bladeRF.  Exchange is safe for concurrent use; frames are
// sent strictly one at a time.
//
// A timed out transfer may still complete later and would pair its response
// with the wrong request, so after a timeout the endpoints are released and
// every Exchange fails with ErrNotOpen until the device is reopened.
type Device struct {
	sync.Mutex

	// Timeout bounds each exchange
	Timeout time.Duration

	// Logger, when not nil, receives open retries
	Logger *log.Logger

	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	iface *gousb.Interface
	in    io.Reader
	out   io.Writer
}

// Open finds and claims the first bladeRF on the bus, retrying with
// exponential backoff for up to maxWait while the device enumerates
func Open(maxWait time.Duration, logger *log.Logger) (*Device, error) {
	d := &Device{Timeout: DefaultTimeout, Logger: logger}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = maxWait
	notify := func(err error, next time.Duration) {
		if d.Logger != nil {
			d.Logger.Printf("opening bladeRF: %v, retrying in %s", err, next)
		}
	}
	op := func() error {
		err := d.open()
		if err != nil && !errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) open() (err error) {
	d.ctx = gousb.NewContext()
	defer func() {
		if err != nil {
			d.Close()
		}
	}()
	d.dev, err = d.ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		return err
	}
	if d.dev == nil {
		return ErrNotFound
	}
	if err = d.dev.SetAutoDetach(true); err != nil {
		return err
	}
	d.cfg, err = d.dev.Config(configNum)
	if err != nil {
		return err
	}
	d.iface, err = d.cfg.Interface(interfaceNum, altRFLink)
	if err != nil {
		return err
	}
	in, err := d.iface.InEndpoint(peripheralEP)
	if err != nil {
		return err
	}
	out, err := d.iface.OutEndpoint(peripheralEP)
	if err != nil {
		return err
	}
	d.in, d.out = in, out
	return nil
}

type result struct {
	resp nios.Frame
	err  error
}

// Exchange writes req and reads the response frame
func (d *Device) Exchange(req nios.Frame) (nios.Frame, error) {
	d.Lock()
	defer d.Unlock()
	if d.in == nil || d.out == nil {
		return nios.Frame{}, ErrNotOpen
	}

	// gousb transfers block without a deadline
	in, out := d.in, d.out
	done := make(chan result, 1)
	go func() {
		var r result
		n, err := out.Write(req[:])
		if err != nil {
			r.err = err
			done <- r
			return
		}
		if n != nios.FrameLen {
			r.err = fmt.Errorf("%w: wrote %d of %d bytes", ErrShortTransfer, n, nios.FrameLen)
			done <- r
			return
		}
		buf := make([]byte, nios.FrameLen)
		n, err = in.Read(buf)
		if err != nil {
			r.err = err
			done <- r
			return
		}
		r.resp, r.err = nios.FrameFromBytes(buf[:n])
		if r.err != nil {
			r.err = fmt.Errorf("%w: %v", ErrShortTransfer, r.err)
		}
		done <- r
	}()

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	select {
	case r := <-done:
		return r.resp, r.err
	case <-time.After(timeout):
		d.in, d.out = nil, nil
		if d.Logger != nil {
			d.Logger.Printf("usb: %s timed out, endpoints released", req)
		}
		return nios.Frame{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Close releases the interface, configuration, device and context
func (d *Device) Close() error {
	var err error
	if d.iface != nil {
		d.iface.Close()
		d.iface = nil
	}
	if d.cfg != nil {
		if e := d.cfg.Close(); e != nil {
			err = e
		}
		d.cfg = nil
	}
	if d.dev != nil {
		if e := d.dev.Close(); e != nil {
			err = e
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if e := d.ctx.Close(); e != nil {
			err = e
		}
		d.ctx = nil
	}
	d.in, d.out = nil, nil
	return err
}
