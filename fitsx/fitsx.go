// Package fitsx writes calibration sweeps as FITS images.
package fitsx

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/astrogo/fitsio"

	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// Columns names the columns of a sweep image, in order
var Columns = []string{"HZ", "FREQSEL", "NINT", "NFRAC", "VCOEST", "VCOCAP"}

// ErrEmpty is generated when a sweep has no points
var ErrEmpty = errors.New("fitsx: sweep has no points")

// Point is one tuned frequency of a sweep
type Point struct {
	// Hz is the requested frequency
	Hz uint64

	// Freq holds the tuning words used, including the converged vcocap
	Freq lms6002d.LmsFreq
}

// Row flattens p in the order of Columns
func (p Point) Row() []int64 {
	return []int64{
		int64(p.Hz),
		int64(p.Freq.Freqsel),
		int64(p.Freq.Nint),
		int64(p.Freq.Nfrac),
		int64(p.Freq.Vcocap),
		int64(p.Freq.VcocapResult),
	}
}

// Sweep is a set of points tuned on one module
type Sweep struct {
	Module nios.Module
	Start  uint64
	Stop   uint64
	Step   uint64
	Taken  time.Time
	Points []Point
}

// Cards returns the header describing the sweep
func (s Sweep) Cards() []fitsio.Card {
	cards := []fitsio.Card{
		{Name: "MODULE", Value: s.Module.String(), Comment: "rx or tx"},
		{Name: "FSTART", Value: int(s.Start), Comment: "Hz"},
		{Name: "FSTOP", Value: int(s.Stop), Comment: "Hz"},
		{Name: "FSTEP", Value: int(s.Step), Comment: "Hz"},
		{Name: "DATE-OBS", Value: s.Taken.UTC().Format(time.RFC3339)},
	}
	for i, c := range Columns {
		cards = append(cards, fitsio.Card{Name: fmt.Sprintf("COL%d", i+1), Value: c})
	}
	return cards
}

// WriteSweep streams s to w as a 2D int64 image of len(Columns) x len(s.Points),
// one row per point
func WriteSweep(w io.Writer, s Sweep, metadata ...fitsio.Card) error {
	if len(s.Points) == 0 {
		return ErrEmpty
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	dims := []int{len(Columns), len(s.Points)}
	im := fitsio.NewImage(64, dims)
	defer im.Close()
	err = im.Header().Append(append(s.Cards(), metadata...)...)
	if err != nil {
		return err
	}

	data := make([]int64, 0, dims[0]*dims[1])
	for _, p := range s.Points {
		data = append(data, p.Row()...)
	}
	err = im.Write(data)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
