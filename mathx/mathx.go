// Package mathx provides small integer helpers used by the synthesizer math.
package mathx

// Gcd is the Euclidean greatest common divisor.  Gcd(0, 0) is 0.
func Gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// DivRound divides num by den rounding half up
func DivRound(num, den uint64) uint64 {
	return (num + den/2) / den
}

// Log2 returns floor(log2(v)) for v > 0, and 0 for v == 0
func Log2(v uint64) uint {
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
