package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.jpl.nasa.gov/bdube/bladerf/bladerf"
	"github.jpl.nasa.gov/bdube/bladerf/comm"
	"github.jpl.nasa.gov/bdube/bladerf/generichttp"
	"github.jpl.nasa.gov/bdube/bladerf/generichttp/sdr"
	"github.jpl.nasa.gov/bdube/bladerf/server/middleware/limiter"
	"github.jpl.nasa.gov/bdube/bladerf/server/middleware/locker"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// Config holds the setup of the server and the board it drives
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"addr" yaml:"addr"`

	// Mock replaces the hardware with simulated firmware, overriding Backend
	Mock bool `koanf:"mock" yaml:"mock"`

	// Backend is one of usb, remote, serial, mock
	Backend string `koanf:"backend" yaml:"backend"`

	// DeviceAddr is the host:port of a bridge for the remote backend,
	// or the port name (e.g. /dev/ttyUSB0) for the serial backend
	DeviceAddr string `koanf:"device_addr" yaml:"device_addr"`

	// Baud is the serial line rate, zero for the default
	Baud int `koanf:"baud" yaml:"baud"`

	// TimeoutMS bounds each transfer to the board, zero for the backend default
	TimeoutMS int `koanf:"timeout_ms" yaml:"timeout_ms"`

	// TuningMode is host or fpga
	TuningMode string `koanf:"tuning_mode" yaml:"tuning_mode"`

	// Endpoint is the path the board's routes are served under
	Endpoint string `koanf:"endpoint" yaml:"endpoint"`

	// RateLimit is the sustained number of state changing requests per second,
	// zero for no limit
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit"`

	// RateBurst is the number of requests allowed above RateLimit in a burst
	RateBurst int `koanf:"rate_burst" yaml:"rate_burst"`

	// Bridge is an address to re-export the board's transport on for
	// remote clients, empty to disable
	Bridge string `koanf:"bridge" yaml:"bridge"`
}

// DefaultConfig is the configuration used when no file is present
func DefaultConfig() Config {
	return Config{
		Addr:       ":8000",
		Backend:    bladerf.BackendUSB,
		TuningMode: "host",
		Endpoint:   "/bladerf",
		RateLimit:  50,
		RateBurst:  10,
	}
}

// BoardConfig converts c to the options bladerf.Open takes
func (c Config) BoardConfig() (bladerf.Config, error) {
	mode, err := bladerf.ParseTuningMode(c.TuningMode)
	if err != nil {
		return bladerf.Config{}, err
	}
	backend := c.Backend
	if c.Mock {
		backend = bladerf.BackendMock
	}
	return bladerf.Config{
		Backend:    backend,
		DeviceAddr: c.DeviceAddr,
		Baud:       c.Baud,
		Timeout:    util.MillisToDuration(c.TimeoutMS),
		TuningMode: mode,
	}, nil
}

// OpenBoard connects to and initializes the board described by c
func OpenBoard(c Config) (*bladerf.Board, error) {
	bc, err := c.BoardConfig()
	if err != nil {
		return nil, err
	}
	b, err := bladerf.Open(bc, log.Default())
	if err != nil {
		return nil, err
	}
	if err = b.Initialize(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// ServeBridge re-exports the board's transport on c.Bridge in the background.
// It returns the listener so the caller can close it.
func ServeBridge(c Config, b *bladerf.Board) (net.Listener, error) {
	ln, err := net.Listen("tcp", c.Bridge)
	if err != nil {
		return nil, err
	}
	br := comm.NewBridge(b.Transport(), log.Default())
	go func() {
		if err := br.Serve(ln); err != nil {
			log.Println("bridge stopped:", err)
		}
	}()
	log.Println("bridging the board's transport at", ln.Addr())
	return ln, nil
}

// BuildMux wraps the board in an HTTP interface.
// The mux serves a special route, /endpoints, which returns
// the routes of the board as JSON.
func BuildMux(c Config, b *bladerf.Board) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	httper := sdr.NewHTTPSDR(b)
	hndlS := generichttp.SubMuxSanitize(c.Endpoint)

	lock := locker.New()
	locker.Inject(httper, lock)
	supergraph[hndlS] = httper.RT().Endpoints()

	lim := limiter.New(c.RateLimit, c.RateBurst)
	lim.Exempt = []string{http.MethodGet, http.MethodHead}

	r := chi.NewRouter()
	r.Use(lock.Check)
	r.Use(lim.Check)
	httper.RT().Bind(r)
	root.Mount(hndlS, r)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
