// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package set provides a small generic set used by the arc and region-set
// algebra (C7/C8): hash membership tests, union/difference for combining
// observed remote arcs, and deterministic ordered iteration for producing
// the canonical disjoint-sub-arc form the region-set diff depends on.
package set

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// The minimum capacity of a set.
const minSetSize = 16

// Set is a set of elements.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := NewSet[T](len(elts))
	s.Add(elts...)
	return s
}

// NewSet returns a new set with initial capacity size.
func NewSet[T comparable](size int) Set[T] {
	if size < 0 {
		return Set[T]{}
	}
	return make(map[T]struct{}, size)
}

func (s *Set[T]) resize(size int) {
	if *s == nil {
		if minSetSize > size {
			size = minSetSize
		}
		*s = make(map[T]struct{}, size)
	}
}

// Add adds all the elements to this set.
func (s *Set[T]) Add(elts ...T) {
	s.resize(2 * len(elts))
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
}

// Union adds all the elements from set into this set.
func (s *Set[T]) Union(set Set[T]) {
	s.resize(2 * set.Len())
	for elt := range set {
		(*s)[elt] = struct{}{}
	}
}

// Intersect removes every element from s that is not also in set.
func (s *Set[T]) Intersect(set Set[T]) {
	for elt := range *s {
		if !set.Contains(elt) {
			delete(*s, elt)
		}
	}
}

// Difference removes all the elements in set from s.
func (s *Set[T]) Difference(set Set[T]) {
	for elt := range set {
		delete(*s, elt)
	}
}

// Contains returns true iff the set contains this element.
func (s Set[T]) Contains(elt T) bool {
	_, contains := s[elt]
	return contains
}

// Overlaps returns true if the intersection of the two sets is non-empty.
func (s Set[T]) Overlaps(big Set[T]) bool {
	small := s
	if small.Len() > big.Len() {
		small, big = big, small
	}
	for elt := range small {
		if _, ok := big[elt]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of elements in this set.
func (s Set[_]) Len() int {
	return len(s)
}

// Clear empties this set.
func (s *Set[_]) Clear() {
	clear(*s)
}

// List converts this set into a list, in unspecified order.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}

// SortedList returns the elements ordered by less, for callers that need
// deterministic iteration (region-set construction, arc-set canonicalization).
func (s Set[T]) SortedList(less func(a, b T) bool) []T {
	l := s.List()
	sort.Slice(l, func(i, j int) bool { return less(l[i], l[j]) })
	return l
}

// Equals returns true if the sets contain the same elements.
func (s Set[T]) Equals(other Set[T]) bool {
	return maps.Equal(s, other)
}

// Remove removes elts from the set.
func (s *Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(*s, elt)
	}
}

// String returns the string representation of this set.
func (s Set[T]) String() string {
	sb := strings.Builder{}
	sb.WriteString("{")
	first := true
	for elt := range s {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(fmt.Sprintf("%v", elt))
	}
	sb.WriteString("}")
	return sb.String()
}
