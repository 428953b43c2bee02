// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/dhtcore/codec"
	"github.com/luxfi/dhtcore/hash"
)

// Errors surfaced by chain operations, per spec.md §7's chain-invariant
// taxonomy: a chain-invariant violation is surfaced to the caller with no
// state change.
var (
	ErrChainHeadMoved       = errors.New("record: chain head moved since builder was prepared")
	ErrOutOfSequence        = errors.New("record: header sequence does not follow previous header")
	ErrTimestampNotAdvancing = errors.New("record: header timestamp does not exceed previous header")
	ErrAuthorMismatch       = errors.New("record: header author does not match chain author")
	ErrMissingPrevHeader    = errors.New("record: non-genesis header has no previous-header hash")
	ErrEntryHashMismatch    = errors.New("record: entry hash does not match header's declared entry hash")
	ErrVisibilityMismatch   = errors.New("record: entry visibility does not match header's declared visibility")
	ErrNotFound             = errors.New("record: not found")
)

// Keystore is the external signing capability (§1 scopes the keystore
// daemon itself out; this is the narrow interface the chain calls across
// it). Never held across a suspension point per §5.
type Keystore interface {
	Sign(ctx context.Context, author hash.Hash, canonicalHeaderBytes []byte) (Signature, error)
	Verify(author hash.Hash, canonicalHeaderBytes []byte, sig Signature) bool
}

// ChainStore is the minimal persistence surface a Chain needs; store.Vault
// (C4) implements it. Defined here, consumer-side, so record never imports
// store.
type ChainStore interface {
	// Head returns the current chain head, or ok=false for an empty chain.
	Head(author hash.Hash) (headHash hash.Hash, sequence uint32, timestamp int64, ok bool)
	// Append persists el as the new head. Implementations must be atomic:
	// on error the head must be unchanged.
	Append(el Element) error
	GetAtSequence(author hash.Hash, seq uint32) (Element, bool)
	GetElement(headerHash hash.Hash) (Element, bool)
}

// Builder prepares the variant-specific fields of a header the chain should
// append next. PreparedAtHead must equal the chain's head hash at the time
// the builder was constructed; Append fails with ErrChainHeadMoved if the
// head has since advanced.
type Builder struct {
	Kind           HeaderKind
	PreparedAtHead hash.Hash
	HasPreparedAt  bool

	Create     *CreateFields
	Update     *UpdateFields
	Delete     *DeleteFields
	CreateLink *CreateLinkFields
	DeleteLink *DeleteLinkFields
	OpenChain  *OpenChainFields
	CloseChain *CloseChainFields
}

// Chain is one agent's source chain: a strictly ordered, hash-linked
// sequence of records, per spec.md §3/§4.2.
type Chain struct {
	author   hash.Hash
	store    ChainStore
	keystore Keystore
}

// NewChain returns a Chain for author backed by store, signing new headers
// with keystore.
func NewChain(author hash.Hash, store ChainStore, keystore Keystore) *Chain {
	return &Chain{author: author, store: store, keystore: keystore}
}

// Head returns the current chain head.
func (c *Chain) Head() (headHash hash.Hash, sequence uint32, timestamp int64, ok bool) {
	return c.store.Head(c.author)
}

// PrepareBuilder returns a Builder snapshotting the current head, for the
// caller to fill in variant fields before calling Append.
func (c *Chain) PrepareBuilder(kind HeaderKind) Builder {
	b := Builder{Kind: kind}
	if head, _, _, ok := c.Head(); ok {
		b.PreparedAtHead = head
		b.HasPreparedAt = true
	}
	return b
}

// Clock supplies header timestamps; tests substitute their own, and
// production callers supply monotonically increasing timestamps (the guest
// runtime owns wall-clock access, kept external per §1's scope).
type Clock func() int64

// Append fills sequence/timestamp/prev_header/author, signs the header, and
// appends it to the chain. entry must be non-nil iff builder.Kind has an
// entry (spec.md §3). now supplies the header's timestamp; the caller must
// ensure it exceeds the previous header's timestamp.
func (c *Chain) Append(ctx context.Context, builder Builder, entry *Entry, now int64) (hash.Hash, error) {
	headHash, seq, ts, hasHead := c.Head()
	if builder.HasPreparedAt {
		if !hasHead || headHash != builder.PreparedAtHead {
			return hash.Hash{}, ErrChainHeadMoved
		}
	} else if hasHead {
		return hash.Hash{}, ErrChainHeadMoved
	}

	h := Header{
		Kind:       builder.Kind,
		Author:     c.author,
		Sequence:   0,
		Create:     builder.Create,
		Update:     builder.Update,
		Delete:     builder.Delete,
		CreateLink: builder.CreateLink,
		DeleteLink: builder.DeleteLink,
		OpenChain:  builder.OpenChain,
		CloseChain: builder.CloseChain,
	}
	if hasHead {
		h.Sequence = seq + 1
		prev := headHash
		h.PrevHeader = &prev
		if now <= ts {
			return hash.Hash{}, ErrTimestampNotAdvancing
		}
	} else if builder.Kind != HeaderDna {
		return hash.Hash{}, ErrMissingPrevHeader
	}
	h.Timestamp = now

	if err := validateEntryMatch(h, entry); err != nil {
		return hash.Hash{}, err
	}

	canonicalHeader, err := canonicalHeaderBytes(h)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("record: encode header: %w", err)
	}
	sig, err := c.keystore.Sign(ctx, c.author, canonicalHeader)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("record: sign header: %w", err)
	}

	el := Element{Signed: SignedHeader{Header: h, Signature: sig}, Entry: entry}
	if err := c.store.Append(el); err != nil {
		return hash.Hash{}, fmt.Errorf("record: append: %w", err)
	}
	return el.HeaderHash()
}

func canonicalHeaderBytes(h Header) ([]byte, error) {
	return codec.Canonical(h)
}

// validateEntryMatch enforces the invariant that a header with an
// entry_hash references an entry whose canonical hash equals that field,
// per spec.md §3. Visibility is not compared (see below).
func validateEntryMatch(h Header, entry *Entry) error {
	wantHash, hasEntry := h.EntryHash()
	if !hasEntry {
		if entry != nil {
			return fmt.Errorf("record: header kind %s does not accept an entry", h.Kind)
		}
		return nil
	}
	if entry == nil {
		return fmt.Errorf("record: header kind %s requires an entry", h.Kind)
	}
	gotHash, err := entry.Hash()
	if err != nil {
		return fmt.Errorf("record: hash entry: %w", err)
	}
	if gotHash != wantHash {
		return ErrEntryHashMismatch
	}
	// The header's declared visibility governs whether this entry is
	// carried in public StoreEntry ops (C3); the entry itself carries no
	// independent visibility to mismatch against.
	return nil
}

// GetAtSequence returns the element at sequence, if present.
func (c *Chain) GetAtSequence(seq uint32) (Element, bool) {
	return c.store.GetAtSequence(c.author, seq)
}

// GetElement returns the element with the given header hash, if present.
func (c *Chain) GetElement(headerHash hash.Hash) (Element, bool) {
	return c.store.GetElement(headerHash)
}

// IterBackFrom lazily walks the chain backward from head (a header hash),
// restartable from any point, per spec.md §4.2.
func (c *Chain) IterBackFrom(head hash.Hash) *BackIterator {
	return &BackIterator{store: c.store, next: head, hasNext: !head.IsZero()}
}

// BackIterator walks a chain from a header hash back toward sequence 0.
type BackIterator struct {
	store   ChainStore
	next    hash.Hash
	hasNext bool
}

// Next returns the next element walking backward, or ok=false when
// exhausted.
func (it *BackIterator) Next() (Element, bool) {
	if !it.hasNext {
		return Element{}, false
	}
	el, found := it.store.GetElement(it.next)
	if !found {
		it.hasNext = false
		return Element{}, false
	}
	if el.Signed.Header.PrevHeader != nil {
		it.next = *el.Signed.Header.PrevHeader
		it.hasNext = true
	} else {
		it.hasNext = false
	}
	return el, true
}

// ValidateInvariants checks the §3 chain invariants between a header and
// its immediate previous header, independent of any particular store. Used
// by C6 system validation; Chain.Append enforces the same rules inline.
// With prev nil, only a sequence-0 header without PrevHeader is accepted.
func ValidateInvariants(h Header, prev *Header) error {
	if prev == nil {
		if h.PrevHeader != nil || h.Sequence != 0 {
			return ErrMissingPrevHeader
		}
		return nil
	}
	if h.PrevHeader == nil {
		return ErrMissingPrevHeader
	}
	if h.Sequence != prev.Sequence+1 {
		return ErrOutOfSequence
	}
	if h.Timestamp <= prev.Timestamp {
		return ErrTimestampNotAdvancing
	}
	if h.Author != prev.Author {
		return ErrAuthorMismatch
	}
	return nil
}
