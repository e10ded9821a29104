package si5338

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/bladerf/mathx"
)

// RationalRate is integer + num/den.  A reduced rate has num < den and
// gcd(num, den) == 1.
type RationalRate struct {
	Integer uint64 `json:"integer"`
	Num     uint64 `json:"num"`
	Den     uint64 `json:"den"`
}

// Whole returns the rate n/1
func Whole(n uint64) RationalRate {
	return RationalRate{Integer: n, Den: 1}
}

// extractWhole moves whole multiples of den from num into integer
func (r *RationalRate) extractWhole() {
	if r.Den == 0 {
		return
	}
	r.Integer += r.Num / r.Den
	r.Num %= r.Den
}

// Reduce normalizes r in place
func (r *RationalRate) Reduce() {
	r.extractWhole()
	if g := mathx.Gcd(r.Num, r.Den); g != 0 {
		r.Num /= g
		r.Den /= g
	}
}

// Double multiplies r by two and reduces it
func (r *RationalRate) Double() {
	r.Integer *= 2
	r.Num *= 2
	r.Reduce()
}

// Float approximates r as a float64
func (r RationalRate) Float() float64 {
	if r.Den == 0 {
		return float64(r.Integer)
	}
	return float64(r.Integer) + float64(r.Num)/float64(r.Den)
}

func (r RationalRate) String() string {
	return fmt.Sprintf("%d + %d/%d", r.Integer, r.Num, r.Den)
}
