// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cascade

import (
	"context"
	"fmt"

	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/store"
)

// Strategy selects how hard Get tries before returning, per spec.md §4.5.
type Strategy byte

const (
	// Content returns as soon as any live copy is found, local or cached;
	// it does not wait on a fresh network round if the cache already holds
	// something that resolves the request.
	Content Strategy = iota
	// Network always performs a fresh network round before resolving,
	// even if local state could already answer the request.
	Network
)

// GetOptions configures a Get call.
type GetOptions struct {
	Strategy Strategy
}

// Cascade is the read-path resolver of spec.md §4.5, backed by one space's
// authoritative Store and an external Network fetch capability. It never
// writes to the Store's Vault; network results land only in the Store's
// Cache.
type Cascade struct {
	Store   *store.Store
	Network Network
}

// New returns a Cascade over s, falling back to net for data the store
// cannot resolve locally.
func New(s *store.Store, net Network) *Cascade {
	return &Cascade{Store: s, Network: net}
}

// GetHeader resolves headerHash to its element, consulting vault, then
// cache, then the network, per spec.md §4.5. A header tombstoned by a
// Delete known to either the authoritative metadata or the cache's
// network-learned metadata is reported as not found.
func (c *Cascade) GetHeader(ctx context.Context, headerHash hash.Hash, opts GetOptions) (record.Element, bool, error) {
	if c.isHeaderDeleted(headerHash) {
		return record.Element{}, false, nil
	}

	if opts.Strategy == Content {
		if el, ok := c.Store.Vault.GetElement(headerHash); ok {
			return el, true, nil
		}
		if el, ok := c.Store.Cache.GetElement(headerHash); ok {
			return el, true, nil
		}
	}

	el, found, err := c.Network.FetchElement(ctx, headerHash)
	if err != nil {
		return record.Element{}, false, fmt.Errorf("cascade: fetch element: %w", err)
	}
	if !found {
		if el, ok := c.Store.Vault.GetElement(headerHash); ok {
			return el, true, nil
		}
		if el, ok := c.Store.Cache.GetElement(headerHash); ok {
			return el, true, nil
		}
		return record.Element{}, false, nil
	}
	if err := c.mergeElement(el); err != nil {
		return record.Element{}, false, fmt.Errorf("cascade: merge: %w", err)
	}

	if c.isHeaderDeleted(headerHash) {
		return record.Element{}, false, nil
	}
	return el, true, nil
}

// GetEntry resolves entryHash by merging every header known to author or
// reference it (local and, unless the cache already resolves under the
// Content strategy, network), computing liveness, and returning the
// element built from the oldest live header, breaking ties by
// lexicographic header hash, per spec.md §4.4/§4.5.
func (c *Cascade) GetEntry(ctx context.Context, entryHash hash.Hash, opts GetOptions) (record.Element, bool, error) {
	if opts.Strategy == Network {
		headers, err := c.Network.FetchEntryHeaders(ctx, entryHash)
		if err != nil {
			return record.Element{}, false, fmt.Errorf("cascade: fetch entry headers: %w", err)
		}
		for _, el := range headers {
			if err := c.mergeElement(el); err != nil {
				return record.Element{}, false, fmt.Errorf("cascade: merge: %w", err)
			}
		}
	}

	headerHash, ok := c.oldestLiveHeaderOnEntry(entryHash)
	if !ok && opts.Strategy == Content {
		headers, err := c.Network.FetchEntryHeaders(ctx, entryHash)
		if err != nil {
			return record.Element{}, false, fmt.Errorf("cascade: fetch entry headers: %w", err)
		}
		for _, el := range headers {
			if err := c.mergeElement(el); err != nil {
				return record.Element{}, false, fmt.Errorf("cascade: merge: %w", err)
			}
		}
		headerHash, ok = c.oldestLiveHeaderOnEntry(entryHash)
	}
	if !ok {
		return record.Element{}, false, nil
	}

	if el, found := c.Store.Vault.GetElement(headerHash); found {
		return el, true, nil
	}
	if el, found := c.Store.Cache.GetElement(headerHash); found {
		return el, true, nil
	}
	return record.Element{}, false, nil
}

// LinkFilter narrows GetLinks to links matching a link type, or matches
// every type when Types is empty.
type LinkFilter struct {
	Types []uint8
}

// matches reports whether fields.LinkType satisfies f.
func (f LinkFilter) matches(linkType uint8) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == linkType {
			return true
		}
	}
	return false
}

// GetLinks resolves the live CreateLink elements under (base, zome, tag),
// merging network results into the cache first, then filtering by f, per
// spec.md §4.5's link-add/link-remove merge-and-filter algorithm.
func (c *Cascade) GetLinks(ctx context.Context, base hash.Hash, zome uint8, tag []byte, f LinkFilter, opts GetOptions) ([]record.Element, error) {
	if opts.Strategy == Network {
		els, err := c.Network.FetchLinks(ctx, base, zome, tag)
		if err != nil {
			return nil, fmt.Errorf("cascade: fetch links: %w", err)
		}
		for _, el := range els {
			if err := c.mergeElement(el); err != nil {
				return nil, fmt.Errorf("cascade: merge: %w", err)
			}
		}
	}

	adds := append(c.Store.Metadata.LinkAdds(base, zome, tag), c.Store.Cache.Metadata.LinkAdds(base, zome, tag)...)
	if len(adds) == 0 && opts.Strategy == Content {
		els, err := c.Network.FetchLinks(ctx, base, zome, tag)
		if err != nil {
			return nil, fmt.Errorf("cascade: fetch links: %w", err)
		}
		for _, el := range els {
			if err := c.mergeElement(el); err != nil {
				return nil, fmt.Errorf("cascade: merge: %w", err)
			}
		}
		adds = append(c.Store.Metadata.LinkAdds(base, zome, tag), c.Store.Cache.Metadata.LinkAdds(base, zome, tag)...)
	}

	seen := map[hash.Hash]struct{}{}
	var out []record.Element
	for _, add := range adds {
		if _, dup := seen[add.HeaderHash]; dup {
			continue
		}
		seen[add.HeaderHash] = struct{}{}

		el, found := c.Store.Vault.GetElement(add.HeaderHash)
		if !found {
			el, found = c.Store.Cache.GetElement(add.HeaderHash)
		}
		if !found || el.Signed.Header.CreateLink == nil {
			continue
		}
		if !f.matches(el.Signed.Header.CreateLink.LinkType) {
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

// isHeaderDeleted reports whether either the authoritative or the
// network-learned metadata has recorded a Delete against headerHash.
func (c *Cascade) isHeaderDeleted(headerHash hash.Hash) bool {
	return len(c.Store.Metadata.DeletesOnHeader(headerHash)) > 0 ||
		len(c.Store.Cache.Metadata.DeletesOnHeader(headerHash)) > 0
}

// oldestLiveHeaderOnEntry merges the authoritative and cache views of
// headers_on_entry/deletes_on_header for entryHash and selects the oldest
// live header, breaking ties by lexicographic header hash.
func (c *Cascade) oldestLiveHeaderOnEntry(entryHash hash.Hash) (hash.Hash, bool) {
	headers := append(append([]store.TimestampedHeader{}, c.Store.Metadata.HeadersOnEntry(entryHash)...),
		c.Store.Cache.Metadata.HeadersOnEntry(entryHash)...)

	var best *store.TimestampedHeader
	for i := range headers {
		h := headers[i]
		if c.isHeaderDeleted(h.HeaderHash) {
			continue
		}
		if best == nil {
			best = &headers[i]
			continue
		}
		if h.Timestamp < best.Timestamp {
			best = &headers[i]
		} else if h.Timestamp == best.Timestamp && lexLess(h.HeaderHash, best.HeaderHash) {
			best = &headers[i]
		}
	}
	if best == nil {
		return hash.Hash{}, false
	}
	return best.HeaderHash, true
}

func lexLess(a, b hash.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// mergeElement records an element learned from the network into the cache
// (element bytes plus the relations its dhtop expansion implies), per
// spec.md §4.5. The cascade never touches the vault or the authoritative
// metadata index — only a validated-integration workflow does that.
func (c *Cascade) mergeElement(el record.Element) error {
	if err := c.Store.Cache.MergeElement(el); err != nil {
		return err
	}
	ops, err := dhtop.ProduceOpsFromElement(el)
	if err != nil {
		// Malformed network data (e.g. a Create with no entry) cannot be
		// expanded into ops; the element bytes are still cached for
		// direct header lookups, so this is not fatal to the merge.
		return nil
	}
	ts := el.Signed.Header.Timestamp
	for _, op := range ops {
		switch op.Kind {
		case dhtop.StoreRecord:
			headerHash, err := el.HeaderHash()
			if err != nil {
				continue
			}
			if el.Entry != nil {
				entryHash, err := el.Entry.Hash()
				if err == nil {
					c.Store.Cache.Metadata.AddHeaderOnEntry(entryHash, headerHash, ts)
				}
			}
		case dhtop.RegisterUpdatedContent:
			headerHash, err := el.HeaderHash()
			if err == nil {
				c.Store.Cache.Metadata.AddUpdateOnEntry(op.Basis, headerHash, ts)
			}
		case dhtop.RegisterUpdatedRecord:
			headerHash, err := el.HeaderHash()
			if err == nil {
				c.Store.Cache.Metadata.AddUpdateOnHeader(op.Basis, headerHash, ts)
			}
		case dhtop.RegisterDeletedBy:
			headerHash, err := el.HeaderHash()
			if err == nil {
				c.Store.Cache.Metadata.AddDeleteOnHeader(op.Basis, headerHash, ts)
			}
		case dhtop.RegisterDeletedEntryHeader:
			headerHash, err := el.HeaderHash()
			if err == nil {
				c.Store.Cache.Metadata.AddDeleteOnEntry(op.Basis, headerHash, ts)
			}
		case dhtop.RegisterAddLink:
			headerHash, err := el.HeaderHash()
			if err == nil && el.Signed.Header.CreateLink != nil {
				f := el.Signed.Header.CreateLink
				c.Store.Cache.Metadata.AddLink(f.BaseHash, f.ZomeIndex, f.Tag, headerHash, ts)
			}
		case dhtop.RegisterRemoveLink:
			headerHash, err := el.HeaderHash()
			if err == nil && el.Signed.Header.DeleteLink != nil {
				c.Store.Cache.Metadata.RemoveLink(el.Signed.Header.DeleteLink.LinkAddHeaderHash, headerHash)
			}
		}
	}
	return nil
}
