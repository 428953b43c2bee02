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

// Cache is the parallel element+metadata store of spec.md §4.5: fed only by
// network merges from the cascade, never written to by this node's own
// workflows, and never treated as authoritative the way the Vault is.
type Cache struct {
	mu       sync.RWMutex
	kv       KV
	Metadata *Metadata
}

// NewCache returns an empty Cache over kv.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv, Metadata: NewMetadata()}
}

// MergeElement records el as learned from the network, keyed by header
// hash. Re-merging the same element is a no-op beyond overwriting identical
// bytes, per spec.md §4.5's cascade merge step.
func (c *Cache) MergeElement(el record.Element) error {
	headerHash, err := el.HeaderHash()
	if err != nil {
		return fmt.Errorf("store: cache hash header: %w", err)
	}

	pe := persistedElement{Signed: el.Signed}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el.Entry != nil {
		entryHash, err := el.Entry.Hash()
		if err != nil {
			return fmt.Errorf("store: cache hash entry: %w", err)
		}
		pe.EntryHash = &entryHash
		entryBytes, err := codec.Marshal(codec.CurrentVersion, el.Entry)
		if err != nil {
			return fmt.Errorf("store: cache encode entry: %w", err)
		}
		if err := c.kv.Put(tableKey(tableCacheEntry, entryHash[:]), entryBytes); err != nil {
			return fmt.Errorf("store: cache write entry: %w", err)
		}
	}
	elBytes, err := codec.Marshal(codec.CurrentVersion, pe)
	if err != nil {
		return fmt.Errorf("store: cache encode header: %w", err)
	}
	if err := c.kv.Put(tableKey(tableCacheElement, headerHash[:]), elBytes); err != nil {
		return fmt.Errorf("store: cache write header: %w", err)
	}
	return nil
}

// GetElement returns the cached element for headerHash, if present.
func (c *Cache) GetElement(headerHash hash.Hash) (record.Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, err := c.kv.Get(tableKey(tableCacheElement, headerHash[:]))
	if err != nil {
		return record.Element{}, false
	}
	var pe persistedElement
	if err := codec.Unmarshal(raw, &pe); err != nil {
		return record.Element{}, false
	}
	el := record.Element{Signed: pe.Signed}
	if pe.EntryHash != nil {
		entryHash := *pe.EntryHash
		entryRaw, err := c.kv.Get(tableKey(tableCacheEntry, entryHash[:]))
		if err != nil {
			return record.Element{}, false
		}
		var e record.Entry
		if err := codec.Unmarshal(entryRaw, &e); err != nil {
			return record.Element{}, false
		}
		el.Entry = &e
	}
	return el, true
}
