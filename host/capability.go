// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host implements C10: the capability-scoped host operations a zome
// function calls into — create/update/delete/link/get/get_links/hash/
// agent_info, plus the must_get_* dependency-declaring variants — and the
// single dispatch boundary every incoming remote zome call passes through,
// grounded on the teacher's core/appsender and validators membership-check
// shape (validators/validators.go's Set.Contains), generalized here from
// validator-set membership to capability-grant membership with
// constant-time secret comparison, per spec.md §4.10.
package host

import (
	"crypto/subtle"
	"errors"

	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// ErrUnauthorized is returned when a CapabilityRequest matches no grant this
// host holds.
var ErrUnauthorized = errors.New("host: capability request not authorized")

// CapabilityRequest is the secret-plus-provenance envelope an incoming
// remote zome call carries, per spec.md §4.10/§6.
type CapabilityRequest struct {
	Secret     [32]byte
	Provenance hash.Hash
	ZomeFn     string
}

// GrantIndex holds every CapGrant entry this agent has committed to its own
// chain, the authorization table Dispatch checks an incoming
// CapabilityRequest against. Filled through Add, which Host.GrantCapability
// calls after committing each grant; the zome sandbox that decides which
// grants to create is out of scope (spec.md §1 Non-goals).
type GrantIndex struct {
	grants []record.CapGrant
}

// NewGrantIndex returns an empty GrantIndex.
func NewGrantIndex() *GrantIndex {
	return &GrantIndex{}
}

// Add records grant as authorizing future capability requests. Called
// whenever a CapGrant entry is committed to the local chain (see
// Host.GrantCapability).
func (g *GrantIndex) Add(grant record.CapGrant) {
	g.grants = append(g.grants, grant)
}

// Authorize reports whether req matches some held grant: its secret
// matches in constant time, the requested zome function is named (or the
// grant names none, meaning "any function" is not supported — every grant
// must name its functions explicitly per §6), and the caller is an
// assignee, or the grant is unrestricted (empty Assignees).
func (g *GrantIndex) Authorize(req CapabilityRequest) bool {
	for _, grant := range g.grants {
		if subtle.ConstantTimeCompare(grant.Secret[:], req.Secret[:]) != 1 {
			continue
		}
		if !zomeFnGranted(grant, req.ZomeFn) {
			continue
		}
		if !assigneeGranted(grant, req.Provenance) {
			continue
		}
		return true
	}
	return false
}

func zomeFnGranted(grant record.CapGrant, fn string) bool {
	for _, f := range grant.ZomeFns {
		if f == fn {
			return true
		}
	}
	return false
}

func assigneeGranted(grant record.CapGrant, provenance hash.Hash) bool {
	if len(grant.Assignees) == 0 {
		return true // unrestricted grant
	}
	for _, a := range grant.Assignees {
		if a == provenance {
			return true
		}
	}
	return false
}
