// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"fmt"
	"sync"

	"github.com/luxfi/dhtcore/codec"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// persistedElement is a record.Element's on-disk form: the entry, if any, is
// stored separately under its own hash so StoreEntry lookups and StoreRecord
// lookups share one copy, per spec.md §4.4.
type persistedElement struct {
	Signed    record.SignedHeader
	EntryHash *hash.Hash
}

// Vault is the element vault of spec.md §4.4: append-only from the owning
// process, never mutated in place. It also implements record.ChainStore so
// a Chain can be built directly over it.
type Vault struct {
	mu sync.RWMutex
	kv KV

	// seqIndex/headByAuthor index each author's chain in memory; the KV
	// holds the authoritative element bytes. Rebuilding this index from KV
	// on startup is a store-open concern outside this spec's scope.
	headByAuthor  map[hash.Hash]hash.Hash
	seqByAuthor   map[hash.Hash]uint32
	tsByAuthor    map[hash.Hash]int64
	seqIndex      map[hash.Hash]map[uint32]hash.Hash
}

// NewVault returns a Vault over kv.
func NewVault(kv KV) *Vault {
	return &Vault{
		kv:           kv,
		headByAuthor: map[hash.Hash]hash.Hash{},
		seqByAuthor:  map[hash.Hash]uint32{},
		tsByAuthor:   map[hash.Hash]int64{},
		seqIndex:     map[hash.Hash]map[uint32]hash.Hash{},
	}
}

var errElementPut = "store: put element"

// Put persists el, idempotent on header hash, per spec.md §4.4.
func (v *Vault) Put(el record.Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.putLocked(el)
}

func (v *Vault) putLocked(el record.Element) error {
	headerHash, err := el.HeaderHash()
	if err != nil {
		return fmt.Errorf("%s: hash header: %w", errElementPut, err)
	}

	pe := persistedElement{Signed: el.Signed}
	if el.Entry != nil {
		entryHash, err := el.Entry.Hash()
		if err != nil {
			return fmt.Errorf("%s: hash entry: %w", errElementPut, err)
		}
		pe.EntryHash = &entryHash
		entryBytes, err := codec.Marshal(codec.CurrentVersion, el.Entry)
		if err != nil {
			return fmt.Errorf("%s: encode entry: %w", errElementPut, err)
		}
		if err := v.kv.Put(tableKey(tableEntry, entryHash[:]), entryBytes); err != nil {
			return fmt.Errorf("%s: write entry: %w", errElementPut, err)
		}
	}

	elBytes, err := codec.Marshal(codec.CurrentVersion, pe)
	if err != nil {
		return fmt.Errorf("%s: encode header: %w", errElementPut, err)
	}
	if err := v.kv.Put(tableKey(tableElement, headerHash[:]), elBytes); err != nil {
		return fmt.Errorf("%s: write header: %w", errElementPut, err)
	}

	author := el.Signed.Header.Author
	seq := el.Signed.Header.Sequence
	if idx, ok := v.seqIndex[author]; ok {
		idx[seq] = headerHash
	} else {
		v.seqIndex[author] = map[uint32]hash.Hash{seq: headerHash}
	}
	if cur, ok := v.seqByAuthor[author]; !ok || seq >= cur {
		v.headByAuthor[author] = headerHash
		v.seqByAuthor[author] = seq
		v.tsByAuthor[author] = el.Signed.Header.Timestamp
	}
	return nil
}

// GetHeader returns the signed header for headerHash, if present.
func (v *Vault) GetHeader(headerHash hash.Hash) (record.SignedHeader, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	pe, ok := v.getPersisted(headerHash)
	if !ok {
		return record.SignedHeader{}, false
	}
	return pe.Signed, true
}

// GetEntry returns the entry for entryHash, if present.
func (v *Vault) GetEntry(entryHash hash.Hash) (*record.Entry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	raw, err := v.kv.Get(tableKey(tableEntry, entryHash[:]))
	if err != nil {
		return nil, false
	}
	var e record.Entry
	if err := codec.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	return &e, true
}

// GetElement returns the full element (header + entry, if any) for
// headerHash. Never returns partial state, per spec.md §4.4.
func (v *Vault) GetElement(headerHash hash.Hash) (record.Element, bool) {
	v.mu.RLock()
	pe, ok := v.getPersisted(headerHash)
	v.mu.RUnlock()
	if !ok {
		return record.Element{}, false
	}
	el := record.Element{Signed: pe.Signed}
	if pe.EntryHash != nil {
		entry, ok := v.GetEntry(*pe.EntryHash)
		if !ok {
			return record.Element{}, false
		}
		el.Entry = entry
	}
	return el, true
}

func (v *Vault) getPersisted(headerHash hash.Hash) (persistedElement, bool) {
	raw, err := v.kv.Get(tableKey(tableElement, headerHash[:]))
	if err != nil {
		return persistedElement{}, false
	}
	var pe persistedElement
	if err := codec.Unmarshal(raw, &pe); err != nil {
		return persistedElement{}, false
	}
	return pe, true
}

// record.ChainStore implementation, so a record.Chain can be built directly
// over a Vault.

// Head implements record.ChainStore.
func (v *Vault) Head(author hash.Hash) (hash.Hash, uint32, int64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.headByAuthor[author]
	if !ok {
		return hash.Hash{}, 0, 0, false
	}
	return h, v.seqByAuthor[author], v.tsByAuthor[author], true
}

// Append implements record.ChainStore.
func (v *Vault) Append(el record.Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.putLocked(el)
}

// GetAtSequence implements record.ChainStore.
func (v *Vault) GetAtSequence(author hash.Hash, seq uint32) (record.Element, bool) {
	v.mu.RLock()
	idx, ok := v.seqIndex[author]
	if !ok {
		v.mu.RUnlock()
		return record.Element{}, false
	}
	h, ok := idx[seq]
	v.mu.RUnlock()
	if !ok {
		return record.Element{}, false
	}
	return v.GetElement(h)
}
