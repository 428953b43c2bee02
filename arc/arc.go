// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arc implements C7: quantized arcs over the 32-bit DHT location
// ring, their disjoint-set algebra, and the peer view a space uses to
// decide how much of the ring it should personally cover. The peer-view
// bookkeeping is grounded on validators/validators.go's "known identity +
// weight" Set/Manager shape, generalized from stake weight to arc coverage.
package arc

// Arc is a quantized span of the DHT location ring: Count consecutive
// quanta of size 2^Power starting at StartLoc, wrapping mod 2^32, per
// spec.md §4.7.
type Arc struct {
	StartLoc uint32
	Power    uint8
	Count    uint64
}

// quantumSize returns 2^Power as a uint64 so Count*quantumSize can exceed
// 2^32 without overflowing during intermediate math.
func (a Arc) quantumSize() uint64 {
	return uint64(1) << a.Power
}

// Span returns the arc's coverage in location units, saturating at 2^32
// (full-ring coverage).
func (a Arc) Span() uint64 {
	span := a.Count * a.quantumSize()
	if span > 1<<32 {
		return 1 << 32
	}
	return span
}

// Full reports whether the arc covers the entire ring.
func (a Arc) Full() bool {
	return a.Span() >= 1<<32
}

// Empty reports whether the arc covers nothing.
func (a Arc) Empty() bool {
	return a.Count == 0
}

// Contains reports whether loc falls within the arc, accounting for
// wrap-around at the ring boundary.
func (a Arc) Contains(loc uint32) bool {
	if a.Empty() {
		return false
	}
	if a.Full() {
		return true
	}
	offset := uint64(loc-a.StartLoc) % (1 << 32)
	return offset < a.Span()
}

// RequantizeDown returns an equivalent arc at a smaller power (finer
// quanta), always possible losslessly by doubling Count each time Power
// drops by one, per spec.md §4.7.
func (a Arc) RequantizeDown(toPower uint8) (Arc, bool) {
	if toPower > a.Power {
		return Arc{}, false
	}
	shift := a.Power - toPower
	if shift >= 64 {
		return Arc{}, false
	}
	return Arc{StartLoc: a.StartLoc, Power: toPower, Count: a.Count << shift}, true
}

// RequantizeUp returns an equivalent arc at a larger power (coarser
// quanta), possible only when Count is a multiple of the doubling factor
// and StartLoc is aligned to the new quantum size, per spec.md §4.7's
// "lossless-up iff count scales by a power of two" rule.
func (a Arc) RequantizeUp(toPower uint8) (Arc, bool) {
	if toPower < a.Power {
		return Arc{}, false
	}
	shift := toPower - a.Power
	if shift >= 64 {
		return Arc{}, false
	}
	factor := uint64(1) << shift
	if a.Count%factor != 0 {
		return Arc{}, false
	}
	if a.StartLoc%uint32(uint64(1)<<toPower) != 0 {
		return Arc{}, false
	}
	return Arc{StartLoc: a.StartLoc, Power: toPower, Count: a.Count / factor}, true
}

// CommonPower returns the smaller of a.Power and b.Power, the finest power
// both arcs can be losslessly requantized down to a common grid at.
func CommonPower(a, b Arc) uint8 {
	if a.Power < b.Power {
		return a.Power
	}
	return b.Power
}
