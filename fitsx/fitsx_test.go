package fitsx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/astrogo/fitsio"

	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

func testSweep(t *testing.T) Sweep {
	s := Sweep{Module: nios.ModuleRX, Start: 1e9, Stop: 1.002e9, Step: 1e6, Taken: time.Unix(0, 0)}
	for hz := s.Start; hz <= s.Stop; hz += s.Step {
		f, err := lms6002d.Compute(hz)
		if err != nil {
			t.Fatal(err)
		}
		f.VcocapResult = f.Vcocap + 1
		s.Points = append(s.Points, Point{Hz: hz, Freq: f})
	}
	return s
}

func TestWriteSweepRoundTrip(t *testing.T) {
	s := testSweep(t)
	var buf bytes.Buffer
	err := WriteSweep(&buf, s, fitsio.Card{Name: "SERIAL", Value: "mock"})
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len()%2880 != 0 {
		t.Errorf("expected a whole number of FITS blocks got %d bytes", buf.Len())
	}

	f, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] != len(Columns) || axes[1] != len(s.Points) {
		t.Fatalf("expected axes [%d %d] got %v", len(Columns), len(s.Points), axes)
	}
	if c := hdr.Get("MODULE"); c == nil || c.Value != "rx" {
		t.Errorf("expected MODULE=rx got %v", c)
	}
	if c := hdr.Get("SERIAL"); c == nil || c.Value != "mock" {
		t.Errorf("expected SERIAL=mock got %v", c)
	}

	data := make([]int64, len(Columns)*len(s.Points))
	if err = img.Read(&data); err != nil {
		t.Fatal(err)
	}
	for i, p := range s.Points {
		row := data[i*len(Columns) : (i+1)*len(Columns)]
		for j, v := range p.Row() {
			if row[j] != v {
				t.Errorf("point %d column %s: expected %d got %d", i, Columns[j], v, row[j])
			}
		}
	}
}

func TestWriteSweepEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSweep(&buf, Sweep{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty got %v", err)
	}
}
