package main

import (
	"fmt"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/bladerf"
	"github.jpl.nasa.gov/bdube/bladerf/fitsx"
	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// Progress is called after each point of a sweep is tuned
type Progress func(i, n int, p fitsx.Point)

// Sweep tunes module m of b from the host at every step in [start, stop]
// and records the tuning words the search converged to
func Sweep(b *bladerf.Board, m nios.Module, start, stop, step uint64, progress Progress) (fitsx.Sweep, error) {
	out := fitsx.Sweep{Module: m, Start: start, Stop: stop, Step: step, Taken: time.Now()}
	if start < lms6002d.FrequencyMin || stop > lms6002d.FrequencyMax {
		return out, fmt.Errorf("%w: sweep [%d, %d] outside [%d, %d]",
			lms6002d.ErrOutOfRange, start, stop, lms6002d.FrequencyMin, lms6002d.FrequencyMax)
	}
	freqs := util.ArangeUint64(start, stop, step)
	if len(freqs) == 0 {
		return out, fmt.Errorf("empty sweep, stop %d is below start %d", stop, start)
	}
	out.Points = make([]fitsx.Point, 0, len(freqs))
	for i, hz := range freqs {
		f, err := b.TuneHost(m, hz)
		if err != nil {
			return out, fmt.Errorf("tuning %s to %d Hz: %w", m, hz, err)
		}
		p := fitsx.Point{Hz: hz, Freq: f}
		out.Points = append(out.Points, p)
		if progress != nil {
			progress(i, len(freqs), p)
		}
	}
	return out, nil
}
