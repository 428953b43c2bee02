// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package spacetime implements C8: the space/time quantization a gossip
// round diffs over — telescoping time segments crossed with arc-set
// coverage — grounded on the same internal/set canonicalization C7's arc
// algebra uses, generalized here from a purely spatial partition to a
// space-time grid.
package spacetime

import (
	"time"

	"github.com/luxfi/dhtcore/arc"
)

// Topology fixes the quantum sizes a RegionSet is built from: SpaceQuantum
// is the arc power regions partition space at, TimeQuantum is the base
// duration the telescoping segments double from, and Origin anchors time
// segment 0, per spec.md §4.8.
type Topology struct {
	SpaceQuantum uint8
	TimeQuantum  time.Duration
	Origin       time.Time
}

// TimeSegment is one [Start, End) window of wall-clock time, expressed as
// an index times TimeQuantum offsets from Origin.
type TimeSegment struct {
	Start time.Time
	End   time.Time
}

// TelescopingTimes returns the exponentially-growing sequence of time
// segments covering [Origin, now): the most recent window is exactly one
// TimeQuantum wide, and each earlier window doubles in width, so recent
// history is diffed at high resolution and old history coarsely, per
// spec.md §4.8. The returned slice is ordered oldest-first and is a prefix
// of the sequence that would be returned for any later `now` (the
// prefix-stability property spec.md §8 calls out).
func (t Topology) TelescopingTimes(now time.Time) []TimeSegment {
	if !now.After(t.Origin) || t.TimeQuantum <= 0 {
		return nil
	}

	// Built newest-first (narrowest window ending at now, doubling in
	// width moving backward), then reversed so the returned slice reads
	// oldest-first.
	var newestFirst []TimeSegment
	end := now
	width := t.TimeQuantum
	for {
		start := end.Add(-width)
		if !start.After(t.Origin) {
			newestFirst = append(newestFirst, TimeSegment{Start: t.Origin, End: end})
			break
		}
		newestFirst = append(newestFirst, TimeSegment{Start: start, End: end})
		end = start
		width *= 2
	}

	segments := make([]TimeSegment, len(newestFirst))
	for i, seg := range newestFirst {
		segments[len(segments)-1-i] = seg
	}
	return segments
}

// Region is one cell of a RegionSet's space-time grid: the arc it covers,
// the time segment it covers, and the aggregate of every DHT op whose
// basis location and authoring timestamp fall inside both, per spec.md
// §4.8.
type Region struct {
	Coverage arc.Arc
	Time     TimeSegment
	Data     RegionData
}

// RegionData is the commutative aggregate a Region accumulates:
// an XOR of every contained op's hash (order-independent, merge-safe), a
// count, and a total byte size, per spec.md §4.8.
type RegionData struct {
	XorHash [32]byte
	Count   uint64
	Size    uint64
}

// Add folds one op's (hash, size) into d, returning the updated aggregate.
// XOR makes the hash fold commutative and its own inverse: adding the same
// hash twice cancels it out of XorHash, though Count and Size grow on every
// call.
func (d RegionData) Add(opHash [32]byte, size uint64) RegionData {
	var out RegionData
	for i := range d.XorHash {
		out.XorHash[i] = d.XorHash[i] ^ opHash[i]
	}
	out.Count = d.Count + 1
	out.Size = d.Size + size
	return out
}

// Merge combines two region aggregates covering the same cell observed
// from different peers: it XORs the hashes and sums Count and Size. It is
// not idempotent: merging a region with itself zeroes XorHash and doubles
// Count and Size.
func (d RegionData) Merge(other RegionData) RegionData {
	var out RegionData
	for i := range d.XorHash {
		out.XorHash[i] = d.XorHash[i] ^ other.XorHash[i]
	}
	out.Count = d.Count + other.Count
	out.Size = d.Size + other.Size
	return out
}

// Equal reports whether two aggregates are byte-for-byte identical, the
// cheap pre-check a gossip round uses to skip diffing a matching region.
func (d RegionData) Equal(other RegionData) bool {
	return d.XorHash == other.XorHash && d.Count == other.Count && d.Size == other.Size
}

// RegionSet is the cross product of an arc-set partition and a telescoping
// time partition: one Region per (sub-arc, time segment) cell, per spec.md
// §4.8.
type RegionSet struct {
	Topology Topology
	Coverage arc.ArcSet
	Times    []TimeSegment
	Regions  map[cellKey]Region
}

type cellKey struct {
	arcStart uint32
	timeIdx  int
}

// NewRegionSet builds an empty RegionSet over coverage and the telescoping
// windows covering [topology.Origin, now).
func NewRegionSet(topology Topology, coverage arc.ArcSet, now time.Time) *RegionSet {
	return &RegionSet{
		Topology: topology,
		Coverage: coverage,
		Times:    topology.TelescopingTimes(now),
		Regions:  map[cellKey]Region{},
	}
}

// Record folds one op (identified by its basis location, content hash, and
// authoring time) into whichever cell it falls in, or is a no-op if the op
// falls outside this set's coverage or time range.
func (rs *RegionSet) Record(loc uint32, opHash [32]byte, size uint64, at time.Time) {
	if !rs.Coverage.Contains(loc) {
		return
	}
	idx := rs.timeIndex(at)
	if idx < 0 {
		return
	}
	for _, a := range rs.Coverage.Arcs() {
		if !a.Contains(loc) {
			continue
		}
		key := cellKey{arcStart: a.StartLoc, timeIdx: idx}
		region := rs.Regions[key]
		region.Coverage = a
		region.Time = rs.Times[idx]
		region.Data = region.Data.Add(opHash, size)
		rs.Regions[key] = region
		return
	}
}

func (rs *RegionSet) timeIndex(at time.Time) int {
	for i, seg := range rs.Times {
		if !at.Before(seg.Start) && at.Before(seg.End) {
			return i
		}
	}
	return -1
}

// Diff computes the symmetric difference between rs and other: the set of
// cells whose aggregates disagree, meaning at least one side holds data the
// other doesn't. Commutative and idempotent, matching spec.md §4.8's
// rectify operation: diffing a RegionSet against itself yields no cells.
func (rs *RegionSet) Diff(other *RegionSet) []Region {
	var mismatched []Region
	seen := map[cellKey]struct{}{}
	for key, region := range rs.Regions {
		seen[key] = struct{}{}
		if o, ok := other.Regions[key]; !ok || !region.Data.Equal(o.Data) {
			mismatched = append(mismatched, region)
		}
	}
	for key, region := range other.Regions {
		if _, ok := seen[key]; ok {
			continue
		}
		mismatched = append(mismatched, region)
	}
	return mismatched
}
