// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hash implements C1: typed, fixed-size content addresses. A Hash
// is 39 bytes — a 3-byte kind tag, a 32-byte digest, and a 4-byte DHT
// location derived from the digest — grounded on
// original_source/crates/holo_hash/src/hash.rs's HoloHash<T>, generalized
// from a 36-byte (digest+location) value carrying a phantom type parameter
// to an explicit 39-byte value carrying its kind inline, per spec.md §3/§4.1.
package hash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	luxids "github.com/luxfi/ids"

	"github.com/luxfi/dhtcore/codec"
)

// Kind identifies what a Hash addresses.
type Kind byte

const (
	KindAgent Kind = iota
	KindEntry
	KindHeader
	KindDhtOp
	KindDna
	KindWasm
	KindNetID
	// KindAnyDht is the composite "header-or-entry" kind used where an
	// operation's basis or a cascade lookup may name either.
	KindAnyDht
)

func (k Kind) String() string {
	switch k {
	case KindAgent:
		return "Agent"
	case KindEntry:
		return "Entry"
	case KindHeader:
		return "Header"
	case KindDhtOp:
		return "DhtOp"
	case KindDna:
		return "Dna"
	case KindWasm:
		return "Wasm"
	case KindNetID:
		return "NetId"
	case KindAnyDht:
		return "AnyDht"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

const (
	digestLen   = 32
	locationLen = 4
	// Len is the fixed size of a Hash's wire form: 3-byte kind prefix +
	// 32-byte digest + 4-byte location, per spec.md §6.
	Len = 3 + digestLen + locationLen
)

// Errors returned by Parse.
var (
	ErrInvalidLength = errors.New("hash: invalid length")
	ErrUnknownKind   = errors.New("hash: unknown kind")
)

// Hash is a typed, fixed-size content address.
type Hash [Len]byte

// kindPrefix packs a 3-byte kind tag. Only the first byte is presently
// used; the remaining two are reserved so the wire form stays 39 bytes if
// additional kind discrimination is ever needed without breaking Len.
func kindPrefix(k Kind) [3]byte {
	return [3]byte{byte(k), 0, 0}
}

// locationOf derives the 4-byte DHT location from a digest: the first four
// digest bytes, treated little-endian, matching
// original_source/crates/holo_hash/src/hash.rs's bytes_to_loc.
func locationOf(digest [digestLen]byte) [locationLen]byte {
	var loc [locationLen]byte
	copy(loc[:], digest[:locationLen])
	return loc
}

// From builds a Hash of the given kind directly from a precomputed 32-byte
// digest, deriving the location. Used when the digest is already known
// (e.g. an Agent hash reusing public key bytes, per spec.md §3).
func From(k Kind, digest [digestLen]byte) Hash {
	var h Hash
	copy(h[0:3], kindPrefix(k)[:])
	copy(h[3:3+digestLen], digest[:])
	loc := locationOf(digest)
	copy(h[3+digestLen:], loc[:])
	return h
}

// Of canonically encodes content and hashes it with the given kind. Agent
// hashes should use From directly with the raw public key bytes instead,
// since agent keys hash to themselves (no redigest), per spec.md §4.1.
func Of(k Kind, content interface{}) (Hash, error) {
	b, err := codec.Canonical(content)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: canonical encode: %w", err)
	}
	digest := sha256.Sum256(b)
	return From(k, digest), nil
}

// Kind returns the hash's kind tag.
func (h Hash) Kind() Kind {
	return Kind(h[0])
}

// Digest returns the 32-byte digest, excluding kind and location.
func (h Hash) Digest() [digestLen]byte {
	var d [digestLen]byte
	copy(d[:], h[3:3+digestLen])
	return d
}

// ID returns h's digest half as a github.com/luxfi/ids.ID, the identifier
// type the rest of the luxfi stack (chain IDs, tx IDs) is built around, so a
// Hash can cross into code that expects ids.ID without a redigest. The kind
// tag and DHT location are not representable in ids.ID and are dropped;
// FromDigestID is the inverse for the digest alone.
func (h Hash) ID() luxids.ID {
	return luxids.ID(h.Digest())
}

// FromDigestID builds a Hash of kind k directly from an existing
// github.com/luxfi/ids.ID, treating it as a precomputed digest — the
// inverse of ID, for constructing a Hash from e.g. a known chain ID.
func FromDigestID(k Kind, id luxids.ID) Hash {
	return From(k, [digestLen]byte(id))
}

// Location returns the 32-bit DHT location used for arc containment.
func (h Hash) Location() uint32 {
	b := h[3+digestLen:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// IsZero reports whether h is the zero value (no hash present).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders the base64url-no-pad wire form with the kind prefix
// prepended, per spec.md §6.
func (h Hash) String() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// Parse decodes the base64url-no-pad wire form produced by String.
func Parse(s string) (Hash, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: decode: %w", err)
	}
	if len(b) != Len {
		return Hash{}, ErrInvalidLength
	}
	if Kind(b[0]) > KindAnyDht {
		return Hash{}, ErrUnknownKind
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Hashed pairs a content value with its memoized Hash. Equality between two
// Hashed values is defined on the hash alone, per spec.md §4.1.
type Hashed[T any] struct {
	content T
	hash    Hash
}

// WithHash memoizes hash alongside content.
func WithHash[T any](content T, h Hash) Hashed[T] {
	return Hashed[T]{content: content, hash: h}
}

// NewHashed canonically hashes content under kind k and memoizes the result.
func NewHashed[T any](k Kind, content T) (Hashed[T], error) {
	h, err := Of(k, content)
	if err != nil {
		return Hashed[T]{}, err
	}
	return WithHash(content, h), nil
}

func (h Hashed[T]) Content() T { return h.content }
func (h Hashed[T]) Hash() Hash { return h.hash }

// Equal compares two Hashed values by hash only, ignoring content.
func (h Hashed[T]) Equal(other Hashed[T]) bool {
	return h.hash == other.hash
}
