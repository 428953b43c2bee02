// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arc

import (
	"sort"

	lxset "github.com/luxfi/dhtcore/internal/set"
)

// quantumIndex is one quantum cell on a fixed-power ring, used internally
// to compute set algebra before re-expressing the result as Arcs.
type quantumIndex uint64

// ArcSet is a canonical, disjoint, sorted union of sub-arcs at one common
// power, the form region-set diffing depends on, per spec.md §4.7/§4.8.
type ArcSet struct {
	power uint8
	cells lxset.Set[quantumIndex]
}

func ringCellsAt(power uint8) uint64 {
	return uint64(1) << (32 - power)
}

func toCells(a Arc, power uint8) []quantumIndex {
	down, ok := a.RequantizeDown(power)
	if !ok {
		return nil
	}
	total := ringCellsAt(power)
	start := uint64(down.StartLoc) >> power
	cells := make([]quantumIndex, 0, down.Count)
	for i := uint64(0); i < down.Count; i++ {
		cells = append(cells, quantumIndex((start+i)%total))
	}
	return cells
}

// NewArcSet builds a canonical ArcSet at power from arcs, requantizing each
// down to power first (always lossless, per Arc.RequantizeDown).
func NewArcSet(power uint8, arcs ...Arc) ArcSet {
	s := ArcSet{power: power, cells: lxset.NewSet[quantumIndex](0)}
	for _, a := range arcs {
		s.cells.Add(toCells(a, power)...)
	}
	return s
}

// Power returns the quantum power this set's cells are expressed at.
func (s ArcSet) Power() uint8 { return s.power }

// Contains reports whether loc falls in any covered cell.
func (s ArcSet) Contains(loc uint32) bool {
	return s.cells.Contains(quantumIndex(uint64(loc) >> s.power))
}

// Union returns the canonical union of s and other, requantized to the
// finer (smaller) of the two powers so neither side loses precision.
func (s ArcSet) Union(other ArcSet) ArcSet {
	p := s.atCommonPower(other)
	out := lxset.NewSet[quantumIndex](s.cells.Len() + other.cells.Len())
	out.Union(s.rebase(p).cells)
	out.Union(other.rebase(p).cells)
	return ArcSet{power: p, cells: out}
}

// Intersect returns the canonical intersection of s and other.
func (s ArcSet) Intersect(other ArcSet) ArcSet {
	p := s.atCommonPower(other)
	a := s.rebase(p)
	b := other.rebase(p)
	out := lxset.NewSet[quantumIndex](a.cells.Len())
	out.Union(a.cells)
	out.Intersect(b.cells)
	return ArcSet{power: p, cells: out}
}

// Difference returns the cells in s not present in other.
func (s ArcSet) Difference(other ArcSet) ArcSet {
	p := s.atCommonPower(other)
	a := s.rebase(p)
	b := other.rebase(p)
	out := lxset.NewSet[quantumIndex](a.cells.Len())
	out.Union(a.cells)
	out.Difference(b.cells)
	return ArcSet{power: p, cells: out}
}

// Equals reports whether s and other cover identical cells, regardless of
// which power each was constructed at.
func (s ArcSet) Equals(other ArcSet) bool {
	p := s.atCommonPower(other)
	return s.rebase(p).cells.Equals(other.rebase(p).cells)
}

// atCommonPower returns the finer (smaller) of the two sets' powers, the
// only power either side can always losslessly requantize down to.
func (s ArcSet) atCommonPower(other ArcSet) uint8 {
	if s.power < other.power {
		return s.power
	}
	return other.power
}

// rebase requantizes s's cells down to power, splitting each cell of s's
// native power into 2^(s.power-power) finer cells.
func (s ArcSet) rebase(power uint8) ArcSet {
	if power == s.power {
		return s
	}
	shift := s.power - power
	factor := uint64(1) << shift
	out := lxset.NewSet[quantumIndex](s.cells.Len() * int(factor))
	for _, c := range s.cells.List() {
		base := uint64(c) * factor
		for i := uint64(0); i < factor; i++ {
			out.Add(quantumIndex(base + i))
		}
	}
	return ArcSet{power: power, cells: out}
}

// Arcs returns the canonical, sorted, maximally-merged list of sub-arcs
// covered by s, collapsing adjacent cells (including the wrap-around
// boundary) into single Arc entries.
func (s ArcSet) Arcs() []Arc {
	cells := s.cells.SortedList(func(a, b quantumIndex) bool { return a < b })
	if len(cells) == 0 {
		return nil
	}
	total := ringCellsAt(s.power)

	var arcs []Arc
	runStart := cells[0]
	runLen := uint64(1)
	for i := 1; i < len(cells); i++ {
		if uint64(cells[i]) == uint64(runStart)+runLen {
			runLen++
			continue
		}
		arcs = append(arcs, Arc{StartLoc: uint32(uint64(runStart) << s.power), Power: s.power, Count: runLen})
		runStart = cells[i]
		runLen = 1
	}
	arcs = append(arcs, Arc{StartLoc: uint32(uint64(runStart) << s.power), Power: s.power, Count: runLen})

	// Merge a run that wraps across the ring boundary (cell total-1 then
	// cell 0) into the single arc it actually represents.
	if len(arcs) > 1 {
		first, last := arcs[0], arcs[len(arcs)-1]
		if first.StartLoc == 0 && uint64(last.StartLoc)>>s.power+last.Count == total {
			merged := Arc{StartLoc: last.StartLoc, Power: s.power, Count: last.Count + first.Count}
			arcs = append(arcs[1:len(arcs)-1], merged)
			sort.Slice(arcs, func(i, j int) bool { return arcs[i].StartLoc < arcs[j].StartLoc })
		}
	}
	return arcs
}
