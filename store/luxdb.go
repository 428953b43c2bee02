// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	luxdb "github.com/luxfi/database"
)

// FromLuxDB adapts db — a github.com/luxfi/database.Database, the storage
// engine interface the teacher's own state layers are built over
// (engine/dag/state/state.go, chains/atomic/memory.go, engine/chain/block/block.go)
// — to KV. KV is already the Reader/Writer subset of Database, so db
// satisfies KV structurally; FromLuxDB just names the production wiring
// point so callers don't have to rely on that being true by coincidence.
func FromLuxDB(db luxdb.Database) KV { return db }

// NamespacedLuxDB builds the three KV handles a Space needs (vault, cache,
// integrated) from one github.com/luxfi/database.Database per logical
// namespace — the production counterpart to space.Manager's KVFactory hook,
// which test code satisfies with in-memory fakes instead.
func NamespacedLuxDB(vault, cache, integrated luxdb.Database) (KV, KV, KV) {
	return FromLuxDB(vault), FromLuxDB(cache), FromLuxDB(integrated)
}
