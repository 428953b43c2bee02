// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store implements C4: the element vault, metadata index,
// validation/integration limbos, integrated-op index, and the cache,
// sharing the single-writer/many-reader discipline of spec.md §4.4,
// grounded on engine/chain/engine.go's mu sync.RWMutex-guarded state
// struct. Writes go straight to the KV under each store's lock; there is no
// staged scratch and no batched flush.
package store

// KV is the key-value surface the persisted tables are built over: a space
// holds three handles (vault, cache, integrated ops; see New), and keys in
// each are prefixed by the one-byte table tags below. The two limbos live in
// memory and do not use their tags. Narrowed to the Reader/Writer subset of
// github.com/luxfi/database.Database — the store never needs NewBatch, so
// any luxdb.Database already satisfies KV structurally; FromLuxDB (see
// luxdb.go) is the explicit production constructor.
type KV interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Table prefixes, one byte each, kept short because every key also carries
// a 39-byte hash.
const (
	tableElement          byte = 'E'
	tableEntry            byte = 'e'
	tableValidationLimbo  byte = 'V'
	tableIntegrationLimbo byte = 'I'
	tableIntegratedOps    byte = 'D'
	tableCacheElement     byte = 'c'
	tableCacheEntry       byte = 'd'
)

func tableKey(table byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = table
	copy(out[1:], key)
	return out
}
