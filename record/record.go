// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package record implements C2: agent source-chain records — header
// variants, signed headers, entries, and the element (signed header, plus
// optional entry) that together make up one authored unit of a chain.
// Grounded on original_source/crates/hdk/src/entry.rs for entry variants
// and the teacher's engine/chain state-machine shape (engine/chain/engine.go)
// for the chain's append/rollback discipline, generalized from consensus
// vote state to single-writer append-only chain state.
package record

import (
	"github.com/luxfi/dhtcore/hash"
)

// HeaderKind discriminates the ten header variants of spec.md §3.
type HeaderKind byte

const (
	HeaderDna HeaderKind = iota
	HeaderAgentValidationPackage
	HeaderCreate
	HeaderUpdate
	HeaderDelete
	HeaderCreateLink
	HeaderDeleteLink
	HeaderOpenChain
	HeaderCloseChain
	HeaderInitZomesComplete
)

func (k HeaderKind) String() string {
	switch k {
	case HeaderDna:
		return "Dna"
	case HeaderAgentValidationPackage:
		return "AgentValidationPackage"
	case HeaderCreate:
		return "Create"
	case HeaderUpdate:
		return "Update"
	case HeaderDelete:
		return "Delete"
	case HeaderCreateLink:
		return "CreateLink"
	case HeaderDeleteLink:
		return "DeleteLink"
	case HeaderOpenChain:
		return "OpenChain"
	case HeaderCloseChain:
		return "CloseChain"
	case HeaderInitZomesComplete:
		return "InitZomesComplete"
	default:
		return "Unknown"
	}
}

// HasEntry reports whether headers of this kind carry an associated entry.
func (k HeaderKind) HasEntry() bool {
	switch k {
	case HeaderCreate, HeaderUpdate:
		return true
	default:
		return false
	}
}

// Visibility controls whether an entry is gossiped publicly or kept local.
type Visibility byte

const (
	Public Visibility = iota
	Private
)

// Signature is an ed25519-shaped signature over canonical header bytes.
type Signature [64]byte

// CreateFields carries the fields specific to a Create header.
type CreateFields struct {
	EntryHash  hash.Hash
	EntryType  string
	Visibility Visibility
}

// UpdateFields carries the fields specific to an Update header.
type UpdateFields struct {
	EntryHash          hash.Hash
	EntryType          string
	Visibility         Visibility
	OriginalHeaderHash hash.Hash
	// OriginalEntryHash is the entry address this update claims to
	// replace. §9 Open Question: the source leaves ambiguous whether a
	// mismatch against the entry actually authorized by
	// OriginalHeaderHash is rejected at sys-validation or app-validation.
	// System validation here does not compare this field against that
	// entry; any such check is left to the guest's app validation.
	OriginalEntryHash hash.Hash
}

// DeleteFields carries the fields specific to a Delete header.
type DeleteFields struct {
	DeletesHeaderHash hash.Hash
	DeletesEntryHash  hash.Hash
}

// CreateLinkFields carries the fields specific to a CreateLink header.
type CreateLinkFields struct {
	BaseHash   hash.Hash
	TargetHash hash.Hash
	ZomeIndex  uint8
	LinkType   uint8
	Tag        []byte
}

// DeleteLinkFields carries the fields specific to a DeleteLink header.
type DeleteLinkFields struct {
	LinkAddHeaderHash hash.Hash
	BaseHash          hash.Hash
}

// OpenChainFields carries the fields specific to an OpenChain header.
type OpenChainFields struct {
	PrevDnaHash hash.Hash
}

// CloseChainFields carries the fields specific to a CloseChain header.
type CloseChainFields struct {
	NewDnaHash hash.Hash
}

// Header is the common envelope shared by every header kind, per spec.md
// §3. Exactly one of the *Fields pointers is non-nil, selected by Kind.
type Header struct {
	Kind       HeaderKind
	Author     hash.Hash // KindAgent
	Timestamp  int64     // unix nanoseconds
	Sequence   uint32
	PrevHeader *hash.Hash // nil only for Sequence 0

	Create     *CreateFields
	Update     *UpdateFields
	Delete     *DeleteFields
	CreateLink *CreateLinkFields
	DeleteLink *DeleteLinkFields
	OpenChain  *OpenChainFields
	CloseChain *CloseChainFields
}

// EntryHash returns the entry this header references, if any.
func (h Header) EntryHash() (hash.Hash, bool) {
	switch h.Kind {
	case HeaderCreate:
		return h.Create.EntryHash, true
	case HeaderUpdate:
		return h.Update.EntryHash, true
	default:
		return hash.Hash{}, false
	}
}

// Visibility returns the declared visibility of this header's entry, if
// any.
func (h Header) Visibility() (Visibility, bool) {
	switch h.Kind {
	case HeaderCreate:
		return h.Create.Visibility, true
	case HeaderUpdate:
		return h.Update.Visibility, true
	default:
		return Public, false
	}
}

// SignedHeader pairs a Header with the author's signature over its
// canonical bytes.
type SignedHeader struct {
	Header    Header
	Signature Signature
}

// Hash computes this header's content address.
func (sh SignedHeader) Hash() (hash.Hash, error) {
	return hash.Of(hash.KindHeader, sh.Header)
}

// EntryKind discriminates the four entry variants of spec.md §3.
type EntryKind byte

const (
	EntryAgent EntryKind = iota
	EntryApp
	EntryCapGrant
	EntryCapClaim
)

// CapGrant authorizes callers matching its secret and assignee set to
// invoke the named zome functions, per §6's capability authorization rules.
type CapGrant struct {
	Secret    [32]byte
	Assignees []hash.Hash // empty means "any agent", a so-called unrestricted grant
	ZomeFns   []string
}

// CapClaim records a secret an agent has been given for invoking a remote
// CapGrant.
type CapClaim struct {
	GrantedBy hash.Hash
	Secret    [32]byte
}

// Entry is the content referenced by Create/Update headers. Exactly one
// payload field is meaningful, selected by Kind.
type Entry struct {
	Kind     EntryKind
	AgentKey hash.Hash // EntryAgent: the public key itself, as bytes
	Bytes    []byte    // EntryApp
	Grant    *CapGrant
	Claim    *CapClaim
}

// Hash computes this entry's content address. Agent entries hash to the
// agent key bytes directly (no redigest), per spec.md §4.1.
func (e Entry) Hash() (hash.Hash, error) {
	if e.Kind == EntryAgent {
		return hash.From(hash.KindAgent, e.AgentKey.Digest()), nil
	}
	return hash.Of(hash.KindEntry, e)
}

// Element is a signed header plus its optional entry, per spec.md §3/§4.2.
type Element struct {
	Signed SignedHeader
	Entry  *Entry
}

// HeaderHash computes this element's header hash.
func (el Element) HeaderHash() (hash.Hash, error) {
	return el.Signed.Hash()
}
