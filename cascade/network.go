// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cascade implements C5: the read-path resolver that answers get
// and get_links requests from the local vault, the local cache, and — when
// neither is sufficient — the network, merging whatever the network returns
// into the cache before resolving. The cascade never writes to a vault;
// only a workflow holding the single-writer lock does that.
package cascade

import (
	"context"

	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// Network is the external fetch capability the cascade falls back to once
// the local vault and cache are checked. Its transport, peer selection, and
// wire framing are out of scope (spec.md §1's Non-goals) — this interface
// is the capability boundary a caller's networking layer implements.
type Network interface {
	// FetchElement asks the network for the element addressed by
	// headerHash, returning ok=false if no peer has it.
	FetchElement(ctx context.Context, headerHash hash.Hash) (record.Element, bool, error)
	// FetchEntryHeaders asks the network for every known header that
	// authors or references entryHash (the network-side equivalent of
	// headers_on_entry), so the cascade can compute the entry's status
	// without first knowing which header to ask for.
	FetchEntryHeaders(ctx context.Context, entryHash hash.Hash) ([]record.Element, error)
	// FetchLinks asks the network for every CreateLink/DeleteLink element
	// known under (base, zome, tag).
	FetchLinks(ctx context.Context, base hash.Hash, zome uint8, tag []byte) ([]record.Element, error)
}
