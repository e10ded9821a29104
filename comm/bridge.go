package comm

import (
	"errors"
	"io"
	"log"
	"net"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// Bridge answers telegrams from RemoteTransports using a local transport.
// Exchanges from all connections are serialized onto the local transport.
type Bridge struct {
	local *Serial

	// Logger, when not nil, receives connection events
	Logger *log.Logger
}

// NewBridge returns a Bridge over local, which is serialized if it is not
// already
func NewBridge(local nios.Transport, logger *log.Logger) *Bridge {
	return &Bridge{local: NewSerial(local), Logger: logger}
}

func (b *Bridge) logf(format string, args ...interface{}) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}

// Serve accepts connections on ln until it is closed
func (b *Bridge) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		b.logf("bridge: connection from %s", conn.RemoteAddr())
		go b.ServeConn(conn)
	}
}

// ServeConn answers telegrams on rw until it is closed or a telegram fails
// its CRC
func (b *Bridge) ServeConn(rw io.ReadWriteCloser) {
	defer rw.Close()
	for {
		req, err := ReadTelegram(rw)
		if err != nil {
			if err != io.EOF {
				b.logf("bridge: dropping connection: %v", err)
			}
			return
		}
		resp, err := b.local.Exchange(req)
		if err != nil {
			// the client sees its exchange fail and reconnects
			b.logf("bridge: local exchange of %s failed: %v", req, err)
			return
		}
		if err = WriteTelegram(rw, resp); err != nil {
			b.logf("bridge: writing response: %v", err)
			return
		}
	}
}
