/*
Package comm carries NIOS frames to a bladeRF that is attached to another
machine, over TCP or a serial line.

On the wire each frame travels as a telegram: the 16 frame bytes followed by
a big-endian CRC-16/XMODEM of those bytes.  The far end (see Serve) checks the
CRC, passes the frame to its local transport and answers with a telegram
holding the response frame.

	t := comm.NewRemoteTransport("lab-pc:5100", false)
	dev := nios.NewDevice(t)
	v, err := dev.FPGAVersion()
*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

var (
	// ErrNotConnected is generated when a serial transport has no port configured
	ErrNotConnected = errors.New("comm: no serial port configured")

	// ErrCRC is generated when a telegram's CRC does not match its frame
	ErrCRC = errors.New("comm: telegram CRC mismatch")
)

// DefaultTimeout bounds connecting and each exchange
const DefaultTimeout = 3 * time.Second

// RemoteTransport is a nios.Transport reaching a bridge over TCP or serial.
// It is safe for concurrent use; connections are pooled and each exchange
// holds one connection exclusively.
type RemoteTransport struct {
	Addr     string
	IsSerial bool

	// Baud is used when IsSerial is true
	Baud int

	// Timeout bounds connecting and each exchange
	Timeout time.Duration

	once sync.Once
	pool *Pool
}

// NewRemoteTransport returns a transport to addr, a host:port or, when serial
// is true, a serial device path
func NewRemoteTransport(addr string, serial bool) *RemoteTransport {
	return &RemoteTransport{Addr: addr, IsSerial: serial, Baud: 115200, Timeout: DefaultTimeout}
}

func (rt *RemoteTransport) timeout() time.Duration {
	if rt.Timeout <= 0 {
		return DefaultTimeout
	}
	return rt.Timeout
}

// SerialConf returns the serial configuration for the port
func (rt *RemoteTransport) SerialConf() *serial.Config {
	if !rt.IsSerial || rt.Addr == "" {
		return nil
	}
	return &serial.Config{
		Name:        rt.Addr,
		Baud:        rt.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: rt.timeout(),
	}
}

func (rt *RemoteTransport) getPool() *Pool {
	rt.once.Do(func() {
		size := 4
		if rt.IsSerial {
			// a serial port cannot be opened twice
			size = 1
		}
		rt.pool = NewPool(size, 30*time.Second, rt.Open)
	})
	return rt.pool
}

// Open connects to the bridge, retrying with exponential backoff until the
// timeout elapses
func (rt *RemoteTransport) Open() (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		var err error
		if rt.IsSerial {
			conf := rt.SerialConf()
			if conf == nil {
				return backoff.Permanent(ErrNotConnected)
			}
			conn, err = serial.OpenPort(conf)
		} else {
			conn, err = TCPSetup(rt.Addr, rt.timeout())
		}
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      rt.timeout(),
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", rt.Addr, err)
	}
	return conn, nil
}

// Exchange sends req to the bridge and returns its response
func (rt *RemoteTransport) Exchange(req nios.Frame) (nios.Frame, error) {
	pool := rt.getPool()
	rw, err := pool.Get()
	if err != nil {
		return nios.Frame{}, err
	}
	if c, ok := rw.(net.Conn); ok {
		c.SetDeadline(time.Now().Add(rt.timeout()))
	}
	if err = WriteTelegram(rw, req); err != nil {
		pool.Destroy(rw)
		return nios.Frame{}, err
	}
	resp, err := ReadTelegram(rw)
	if err != nil {
		pool.Destroy(rw)
		return nios.Frame{}, err
	}
	pool.Put(rw)
	return resp, nil
}

// Close frees all idle connections
func (rt *RemoteTransport) Close() error {
	if rt.pool == nil {
		return nil
	}
	return rt.pool.Close()
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
