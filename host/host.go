// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"fmt"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/space"
)

// Host is the per-agent host operation surface a zome function calls into:
// one author's chain, the space it is hosted in, and the grants that
// authorize incoming remote calls, per spec.md §4.10.
type Host struct {
	Author hash.Hash
	Space  *space.Space
	Chain  *record.Chain
	Grants *GrantIndex
	// Clock supplies each new header's timestamp. Wall-clock access belongs
	// to the guest runtime (out of scope per §1); tests substitute a fixed
	// or incrementing clock.
	Clock record.Clock
}

// New returns a Host for author, backed by sp's store and cascade and
// signing new headers with keystore.
func New(author hash.Hash, sp *space.Space, keystore record.Keystore, clock record.Clock) *Host {
	return &Host{
		Author: author,
		Space:  sp,
		Chain:  sp.Store.Chain(author, keystore),
		Grants: NewGrantIndex(),
		Clock:  clock,
	}
}

// Dispatch is the single entry point every incoming remote zome call passes
// through: req is authorized against the held GrantIndex before fn runs,
// generalizing the teacher's validator-membership check to capability-grant
// membership.
func (h *Host) Dispatch(ctx context.Context, req CapabilityRequest, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if !h.Grants.Authorize(req) {
		return nil, ErrUnauthorized
	}
	return fn(ctx)
}

// submit expands the just-appended element at headerHash into its DHT
// operations and enqueues each for validation, the bridge from a chain
// write to the DHT publication pipeline (C2 -> C3 -> C6), per spec.md
// §4.2/§4.3.
func (h *Host) submit(headerHash hash.Hash) error {
	el, found := h.Chain.GetElement(headerHash)
	if !found {
		return fmt.Errorf("host: just-appended element %s missing from chain store", headerHash)
	}
	ops, err := dhtop.ProduceOpsFromElement(el)
	if err != nil {
		return fmt.Errorf("host: expand ops for %s: %w", headerHash, err)
	}
	for _, op := range ops {
		if _, err := h.Space.SubmitOp(op); err != nil {
			return fmt.Errorf("host: submit op for %s: %w", headerHash, err)
		}
	}
	return nil
}

// Create appends a new Create header carrying an app entry, submits its
// ops, and returns the new header's hash.
func (h *Host) Create(ctx context.Context, entryType string, vis record.Visibility, payload []byte) (hash.Hash, error) {
	entry := &record.Entry{Kind: record.EntryApp, Bytes: payload}
	entryHash, err := entry.Hash()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("host: hash entry: %w", err)
	}

	builder := h.Chain.PrepareBuilder(record.HeaderCreate)
	builder.Create = &record.CreateFields{EntryHash: entryHash, EntryType: entryType, Visibility: vis}

	headerHash, err := h.Chain.Append(ctx, builder, entry, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	return headerHash, nil
}

// Update appends an Update header replacing the entry at originalHeaderHash
// with payload, submits its ops, and returns the new header's hash.
func (h *Host) Update(ctx context.Context, originalHeaderHash hash.Hash, entryType string, vis record.Visibility, payload []byte) (hash.Hash, error) {
	original, found := h.Chain.GetElement(originalHeaderHash)
	if !found {
		return hash.Hash{}, fmt.Errorf("host: update target %s not found locally: %w", originalHeaderHash, ErrMissingDependency)
	}
	originalEntryHash, hasEntry := original.Signed.Header.EntryHash()
	if !hasEntry {
		return hash.Hash{}, fmt.Errorf("host: update target %s carries no entry", originalHeaderHash)
	}

	entry := &record.Entry{Kind: record.EntryApp, Bytes: payload}
	entryHash, err := entry.Hash()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("host: hash entry: %w", err)
	}

	builder := h.Chain.PrepareBuilder(record.HeaderUpdate)
	builder.Update = &record.UpdateFields{
		EntryHash:          entryHash,
		EntryType:          entryType,
		Visibility:         vis,
		OriginalHeaderHash: originalHeaderHash,
		OriginalEntryHash:  originalEntryHash,
	}

	headerHash, err := h.Chain.Append(ctx, builder, entry, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	return headerHash, nil
}

// Delete appends a Delete header tombstoning deletesHeaderHash, submits its
// ops, and returns the new header's hash.
func (h *Host) Delete(ctx context.Context, deletesHeaderHash hash.Hash) (hash.Hash, error) {
	target, found := h.Chain.GetElement(deletesHeaderHash)
	if !found {
		return hash.Hash{}, fmt.Errorf("host: delete target %s not found locally: %w", deletesHeaderHash, ErrMissingDependency)
	}
	deletesEntryHash, hasEntry := target.Signed.Header.EntryHash()
	if !hasEntry {
		return hash.Hash{}, fmt.Errorf("host: delete target %s carries no entry", deletesHeaderHash)
	}

	builder := h.Chain.PrepareBuilder(record.HeaderDelete)
	builder.Delete = &record.DeleteFields{DeletesHeaderHash: deletesHeaderHash, DeletesEntryHash: deletesEntryHash}

	headerHash, err := h.Chain.Append(ctx, builder, nil, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	return headerHash, nil
}

// CreateLink appends a CreateLink header from base to target under
// (zomeIndex, linkType, tag), submits its ops, and returns the new header's
// hash.
func (h *Host) CreateLink(ctx context.Context, base, target hash.Hash, zomeIndex, linkType uint8, tag []byte) (hash.Hash, error) {
	builder := h.Chain.PrepareBuilder(record.HeaderCreateLink)
	builder.CreateLink = &record.CreateLinkFields{
		BaseHash: base, TargetHash: target, ZomeIndex: zomeIndex, LinkType: linkType, Tag: tag,
	}

	headerHash, err := h.Chain.Append(ctx, builder, nil, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	return headerHash, nil
}

// DeleteLink appends a DeleteLink header retracting the link added by
// linkAddHeaderHash, submits its ops, and returns the new header's hash.
func (h *Host) DeleteLink(ctx context.Context, linkAddHeaderHash, base hash.Hash) (hash.Hash, error) {
	builder := h.Chain.PrepareBuilder(record.HeaderDeleteLink)
	builder.DeleteLink = &record.DeleteLinkFields{LinkAddHeaderHash: linkAddHeaderHash, BaseHash: base}

	headerHash, err := h.Chain.Append(ctx, builder, nil, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	return headerHash, nil
}

// GrantCapability commits a CapGrant entry authorizing zomeFns for assignees
// (empty meaning any agent) under secret, and records it in the local
// GrantIndex so Dispatch can honor requests carrying that secret.
func (h *Host) GrantCapability(ctx context.Context, secret [32]byte, assignees []hash.Hash, zomeFns []string) (hash.Hash, error) {
	grant := record.CapGrant{Secret: secret, Assignees: assignees, ZomeFns: zomeFns}
	entry := &record.Entry{Kind: record.EntryCapGrant, Grant: &grant}
	entryHash, err := entry.Hash()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("host: hash cap grant entry: %w", err)
	}

	builder := h.Chain.PrepareBuilder(record.HeaderCreate)
	builder.Create = &record.CreateFields{EntryHash: entryHash, EntryType: "cap_grant", Visibility: record.Private}

	headerHash, err := h.Chain.Append(ctx, builder, entry, h.Clock())
	if err != nil {
		return hash.Hash{}, err
	}
	if err := h.submit(headerHash); err != nil {
		return hash.Hash{}, err
	}
	h.Grants.Add(grant)
	return headerHash, nil
}

// Get resolves target (an entry or header hash) through sp's cascade,
// dispatching to GetEntry or GetHeader by the hash's kind.
func (h *Host) Get(ctx context.Context, target hash.Hash, opts cascade.GetOptions) (record.Element, bool, error) {
	if target.Kind() == hash.KindEntry {
		return h.Space.Cascade.GetEntry(ctx, target, opts)
	}
	return h.Space.Cascade.GetHeader(ctx, target, opts)
}

// GetLinks resolves the live links under (base, zome, tag) matching f
// through sp's cascade.
func (h *Host) GetLinks(ctx context.Context, base hash.Hash, zome uint8, tag []byte, f cascade.LinkFilter, opts cascade.GetOptions) ([]record.Element, error) {
	return h.Space.Cascade.GetLinks(ctx, base, zome, tag, f, opts)
}

// Hash computes the content address of an arbitrary CBOR-encodable value,
// the host_fn wrapper around C1's canonical hashing.
func Hash(kind hash.Kind, content interface{}) (hash.Hash, error) {
	return hash.Of(kind, content)
}

// AgentInfo is the local agent identity a zome function can query about
// itself.
type AgentInfo struct {
	Agent hash.Hash
	DNA   hash.Hash
}

// AgentInfo returns this host's own agent and DNA hashes.
func (h *Host) AgentInfo() AgentInfo {
	return AgentInfo{Agent: h.Author, DNA: h.Space.DNA}
}
