// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// Store bundles one DNA space's Vault, Metadata, Cache, and the two
// validation/integration limbos behind a single handle, per spec.md §4.4's
// "one conceptual store per space" framing. Writers take Store.Vault's
// single-writer discipline; everything else tolerates concurrent readers.
type Store struct {
	Vault             *Vault
	Metadata          *Metadata
	Cache             *Cache
	ValidationLimbo   *ValidationLimbo
	IntegrationLimbo  *IntegrationLimbo
	IntegratedOps     *IntegratedOps
}

// New builds a Store with a fresh in-memory index over vaultKV/cacheKV/
// integratedKV. Each KV is expected to be a distinct namespace (or distinct
// database handle) so the element, cache, and integrated-ops tables never
// collide on disk.
func New(vaultKV, cacheKV, integratedKV KV) *Store {
	return &Store{
		Vault:            NewVault(vaultKV),
		Metadata:         NewMetadata(),
		Cache:            NewCache(cacheKV),
		ValidationLimbo:  NewValidationLimbo(),
		IntegrationLimbo: NewIntegrationLimbo(),
		IntegratedOps:    NewIntegratedOps(integratedKV),
	}
}

// Chain returns a record.Chain for author backed by this store's Vault,
// using ks to sign new headers.
func (s *Store) Chain(author hash.Hash, ks record.Keystore) *record.Chain {
	return record.NewChain(author, s.Vault, ks)
}
