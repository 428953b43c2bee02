// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec provides the canonical encoding used for content addressing
// (C1 hash, C3 op unique-forms) and for framing values that cross the
// Network capability boundary (§6). It is deliberately not JSON: map key
// order and field presence in encoding/json are not guaranteed stable
// across equal values, which would make two canonically-equal records hash
// differently. CBOR's Core Deterministic Encoding mode fixes map key
// order and integer width, so the same value always produces the same
// bytes.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version identifies the wire format of an encoded value, carried alongside
// encoded bytes wherever persisted state might outlive a format change.
type Version uint16

// CurrentVersion is the only version this codec currently emits.
const CurrentVersion Version = 0

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building decode mode: %v", err))
	}
}

// Canonical encodes v deterministically. Two calls with equal values of the
// same concrete type always return identical bytes; this is the only
// property C1's hash() and C3's op unique-form rely on.
func Canonical(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: canonical marshal: %w", err)
	}
	return b, nil
}

// Marshal encodes v for storage or wire transport. version must be
// CurrentVersion; the parameter exists so callers can persist it alongside
// the bytes and reject mismatches on load (§6 schema versioning).
func Marshal(version Version, v interface{}) ([]byte, error) {
	if version != CurrentVersion {
		return nil, fmt.Errorf("codec: unsupported version %d", version)
	}
	return Canonical(v)
}

// Unmarshal decodes bytes produced by Marshal/Canonical into v.
func Unmarshal(data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
