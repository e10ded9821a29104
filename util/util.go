// Package util contains misc internal utilities.
package util

import "time"

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return b&(1<<bitIndex) != 0
}

// SetBit sets bit bitIndex of b to value and returns the result
func SetBit(b byte, bitIndex uint, value bool) byte {
	if value {
		return b | (1 << bitIndex)
	}
	return b &^ (1 << bitIndex)
}

// ReplaceBits clears the bits of mask in reg and ORs in value & mask
func ReplaceBits(reg, mask, value byte) byte {
	return (reg &^ mask) | (value & mask)
}

// MaskedUpdate32 is ReplaceBits for 32-bit registers
func MaskedUpdate32(reg, mask, value uint32) uint32 {
	return (reg &^ mask) | (value & mask)
}

// ClampUint64 limits input to [low, high]
func ClampUint64(input, low, high uint64) uint64 {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// ArangeUint64 returns start, start+step, ... up to and including stop.
// A zero step yields only start.
func ArangeUint64(start, stop, step uint64) []uint64 {
	if stop < start {
		return nil
	}
	if step == 0 {
		return []uint64{start}
	}
	out := make([]uint64, 0, (stop-start)/step+1)
	for v := start; v <= stop; v += step {
		out = append(out, v)
		if v+step < v { // overflow
			break
		}
	}
	return out
}

// MillisToDuration converts integer milliseconds to a time.Duration
func MillisToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
