package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "bladerfsrv.yml"

	// EnvPrefix marks environment variables that override the config file,
	// e.g. BLADERF_TUNING_MODE=fpga
	EnvPrefix = "BLADERF_"

	k = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func root() {
	str := `bladerfsrv drives a bladeRF and exposes an HTTP interface to it
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	bladerfsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `bladerfsrv is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Every key may also be set with an environment variable, BLADERF_ followed by
the key in upper case, e.g. BLADERF_BACKEND=remote.

Backends:
- usb     a bladeRF on the local USB bus
- remote  a bladeRF bridged by another bladerfsrv, device_addr is host:port
- serial  a bladeRF bridged over RS-232, device_addr is the port
- mock    simulated firmware, no hardware needed (also mock: true)

Tuning modes:
- host    the LMS6002D is programmed register by register from this machine
- fpga    the tuning words are handed to the FPGA, which runs the VCOCAP search

Routes, under endpoint (default /bladerf):
	GET/POST  frequency/{rx,tx}        {"f64": Hz}
	GET       frequency-range
	GET/POST  sample-rate/{rx,tx}      {"int": Hz}
	GET/POST  smb-frequency            {"int": Hz}
	GET/POST  enable/{rx,tx}           {"bool": on}
	GET       timestamp/{rx,tx}
	POST      retune/{rx,tx}           {"timestamp": ticks, "hz": Hz}
	POST      retune/{rx,tx}/cancel
	GET       quick-tune/{rx,tx}
	GET       fpga-version
	GET/POST  tuning-mode              {"str": "host" | "fpga"}
	GET/POST  lock                     {"bool": locked}

While locked, only reads and the lock route are served (423 otherwise).
State changing requests above rate_limit per second are refused with 429.
GET /endpoints lists every route.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("bladerfsrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	b, err := OpenBoard(c)
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()
	v, err := b.FPGAVersion()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("connected to bladeRF, FPGA %s, %s tuning\n", v, b.Mode)
	if c.Bridge != "" {
		ln, err := ServeBridge(c, b)
		if err != nil {
			log.Fatal(err)
		}
		defer ln.Close()
	}
	mux := BuildMux(c, b)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
