// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/luxfi/dhtcore/hash"
)

// Status is an entry's derived liveness, per spec.md §4.4.
type Status byte

const (
	StatusLive Status = iota
	StatusDead
)

// TimestampedHeader is one (timestamp, header_hash) pair, the unit every
// metadata relation is built from, per spec.md §3/§4.4.
type TimestampedHeader struct {
	Timestamp  int64
	HeaderHash hash.Hash
}

// linkKey identifies a (zome, tag) link namespace under one base.
type linkKey struct {
	Base hash.Hash
	Zome uint8
	Tag  string
}

// Metadata is the metadata index of spec.md §4.4: relations keyed by basis,
// each an ordered set of (timestamp, header_hash) pairs with duplicates
// suppressed by header hash.
type Metadata struct {
	mu sync.RWMutex

	headersOnEntry map[hash.Hash]map[hash.Hash]int64 // entry -> headerHash -> timestamp
	updatesOnEntry map[hash.Hash]map[hash.Hash]int64
	updatesOnHeader map[hash.Hash]map[hash.Hash]int64
	deletesOnEntry map[hash.Hash]map[hash.Hash]int64
	deletesOnHeader map[hash.Hash]map[hash.Hash]int64
	linksOnBase    map[linkKey]map[hash.Hash]int64 // add-header -> timestamp
	// linkRemoves is keyed by the add-header hash being removed, not by
	// linkKey: a DeleteLink header only carries the add-header's hash and
	// its base, never the zome/tag namespace, per spec.md §3.
	linkRemoves      map[hash.Hash]hash.Hash // add-header-hash -> remove-header-hash
	activityByAuthor map[hash.Hash]map[hash.Hash]int64
}

// NewMetadata returns an empty Metadata index.
func NewMetadata() *Metadata {
	return &Metadata{
		headersOnEntry:   map[hash.Hash]map[hash.Hash]int64{},
		updatesOnEntry:   map[hash.Hash]map[hash.Hash]int64{},
		updatesOnHeader:  map[hash.Hash]map[hash.Hash]int64{},
		deletesOnEntry:   map[hash.Hash]map[hash.Hash]int64{},
		deletesOnHeader:  map[hash.Hash]map[hash.Hash]int64{},
		linksOnBase:      map[linkKey]map[hash.Hash]int64{},
		linkRemoves:      map[hash.Hash]hash.Hash{},
		activityByAuthor: map[hash.Hash]map[hash.Hash]int64{},
	}
}

func addTo(m map[hash.Hash]map[hash.Hash]int64, basis, headerHash hash.Hash, ts int64) {
	inner, ok := m[basis]
	if !ok {
		inner = map[hash.Hash]int64{}
		m[basis] = inner
	}
	inner[headerHash] = ts
}

func sortedPairs(inner map[hash.Hash]int64) []TimestampedHeader {
	out := make([]TimestampedHeader, 0, len(inner))
	for h, ts := range inner {
		out = append(out, TimestampedHeader{Timestamp: ts, HeaderHash: h})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return bytes.Compare(out[i].HeaderHash[:], out[j].HeaderHash[:]) < 0
	})
	return out
}

// AddHeaderOnEntry registers headerHash as a new-entry header for entryHash.
func (m *Metadata) AddHeaderOnEntry(entryHash, headerHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.headersOnEntry, entryHash, headerHash, ts)
}

// AddUpdateOnEntry registers an Update's StoreRecord header against the
// entry it replaces.
func (m *Metadata) AddUpdateOnEntry(originalEntryHash, headerHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.updatesOnEntry, originalEntryHash, headerHash, ts)
}

// AddUpdateOnHeader registers an Update against the header it replaces.
func (m *Metadata) AddUpdateOnHeader(originalHeaderHash, headerHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.updatesOnHeader, originalHeaderHash, headerHash, ts)
}

// AddDeleteOnEntry registers a Delete against the entry it tombstones.
func (m *Metadata) AddDeleteOnEntry(entryHash, deleteHeaderHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.deletesOnEntry, entryHash, deleteHeaderHash, ts)
}

// AddDeleteOnHeader registers a Delete against the header it tombstones.
func (m *Metadata) AddDeleteOnHeader(headerHash, deleteHeaderHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.deletesOnHeader, headerHash, deleteHeaderHash, ts)
}

// AddLink registers a CreateLink's add-header under (base, zome, tag).
func (m *Metadata) AddLink(base hash.Hash, zome uint8, tag []byte, addHeaderHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey{Base: base, Zome: zome, Tag: string(tag)}
	inner, ok := m.linksOnBase[key]
	if !ok {
		inner = map[hash.Hash]int64{}
		m.linksOnBase[key] = inner
	}
	inner[addHeaderHash] = ts
}

// RemoveLink registers a DeleteLink against the add-header it removes.
func (m *Metadata) RemoveLink(addHeaderHash, removeHeaderHash hash.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkRemoves[addHeaderHash] = removeHeaderHash
}

// AddActivity registers headerHash in author's per-agent chain view.
func (m *Metadata) AddActivity(author, headerHash hash.Hash, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addTo(m.activityByAuthor, author, headerHash, ts)
}

// HeadersOnEntry returns the ordered headers authoring entryHash.
func (m *Metadata) HeadersOnEntry(entryHash hash.Hash) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPairs(m.headersOnEntry[entryHash])
}

// DeletesOnHeader returns the ordered deletes tombstoning headerHash.
func (m *Metadata) DeletesOnHeader(headerHash hash.Hash) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPairs(m.deletesOnHeader[headerHash])
}

// DeletesOnEntry returns the ordered deletes tombstoning entryHash.
func (m *Metadata) DeletesOnEntry(entryHash hash.Hash) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPairs(m.deletesOnEntry[entryHash])
}

// UpdatesOnEntry returns the ordered updates that replace entryHash.
func (m *Metadata) UpdatesOnEntry(entryHash hash.Hash) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPairs(m.updatesOnEntry[entryHash])
}

// ActivityByAuthor returns the ordered per-agent chain view for author.
func (m *Metadata) ActivityByAuthor(author hash.Hash) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPairs(m.activityByAuthor[author])
}

// LinkAdds returns the ordered link-add headers on (base, zome, tag) that
// are not referenced by any known link-remove, per spec.md §4.5's
// get_links algorithm.
func (m *Metadata) LinkAdds(base hash.Hash, zome uint8, tag []byte) []TimestampedHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := linkKey{Base: base, Zome: zome, Tag: string(tag)}
	inner := m.linksOnBase[key]
	live := map[hash.Hash]int64{}
	for h, ts := range inner {
		if _, isRemoved := m.linkRemoves[h]; !isRemoved {
			live[h] = ts
		}
	}
	return sortedPairs(live)
}

// EntryStatus computes Live/Dead for entryHash, per spec.md §4.4: Live if
// headers_on_entry is non-empty and at least one header has no entry in
// deletes_on_header; Dead if all headers are deleted.
func (m *Metadata) EntryStatus(entryHash hash.Hash) Status {
	headers := m.HeadersOnEntry(entryHash)
	if len(headers) == 0 {
		return StatusDead
	}
	for _, h := range headers {
		if len(m.DeletesOnHeader(h.HeaderHash)) == 0 {
			return StatusLive
		}
	}
	return StatusDead
}

// OldestLiveHeader selects the oldest live header authoring entryHash,
// breaking ties by lexicographic header hash, per spec.md §4.4/§4.5.
func (m *Metadata) OldestLiveHeader(entryHash hash.Hash) (hash.Hash, bool) {
	headers := m.HeadersOnEntry(entryHash)
	for _, h := range headers {
		if len(m.DeletesOnHeader(h.HeaderHash)) == 0 {
			return h.HeaderHash, true
		}
	}
	return hash.Hash{}, false
}
