// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"context"

	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// GuestInvoker is the external app-validation capability: the guest
// zome/ribosome sandbox is out of scope (spec.md §1's Non-goals), so app
// validation is delegated across this narrow interface. Never held across
// a suspension point, matching record.Keystore's discipline.
type GuestInvoker interface {
	// ValidateOp runs the DNA's validation callback for op/el. A
	// non-empty missing slice means the callback could not decide without
	// more data and the op should move to AwaitingAppDeps.
	ValidateOp(ctx context.Context, op dhtop.Op, el record.Element) (valid bool, missing []hash.Hash, reason string, err error)
}
