// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package space implements C9: the per-DNA bundle (store, cascade, arc
// view, validation queues) and the lazily-constructed, shared-handle
// registry across every DNA a process hosts, grounded on the teacher's
// "construct on first reference, hand out shared handles" chains/atomic
// pattern.
package space

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/dhtcore/arc"
	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/log"
	"github.com/luxfi/dhtcore/metrics"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/store"
	"github.com/luxfi/dhtcore/validation"
)

// Space bundles every per-DNA resource behind one handle, per spec.md §4.9.
type Space struct {
	DNA      hash.Hash
	Store    *store.Store
	Cascade  *cascade.Cascade
	PeerView *arc.PeerView
	// LocalArc is the portion of the ring this space currently claims to
	// hold authority over. New leaves it as the zero (empty) Arc, and this
	// package never resizes it; arc.PeerView.Resize computes a new arc for a
	// caller to assign here.
	LocalArc       arc.Arc
	SysQueue       *validation.SysValidationWorkflow
	AppQueue       *validation.AppValidationWorkflow
	IntQueue       *validation.IntegrationWorkflow
	Countersigning CountersigningWorkspace
	Log            log.Logger
}

// Deps supplies the per-space external capabilities a Manager cannot
// construct on its own: KV handles, the network fetch capability, the
// keystore, and the guest app-validation callback.
type Deps struct {
	VaultKV, CacheKV, IntegratedKV store.KV
	Network                        cascade.Network
	Keystore                       record.Keystore
	Guest                          validation.GuestInvoker
	Metrics                        metrics.Registry
	Log                            log.Logger
	ValidationCfg                  validation.Config
}

// New builds a Space over deps for dna. The caller owns starting/stopping
// the three queue consumers (Run the trigger loops on whatever context
// governs the space's lifetime).
func New(dna hash.Hash, deps Deps) (*Space, error) {
	if deps.Log == nil {
		deps.Log = log.NewNoOpLogger()
	}
	s := store.New(deps.VaultKV, deps.CacheKV, deps.IntegratedKV)
	cas := cascade.New(s, deps.Network)

	var sysMetrics, appMetrics, intMetrics metrics.WorkflowMetrics
	var err error
	if deps.Metrics != nil {
		if sysMetrics, err = metrics.NewWorkflowMetrics("dhtcore", "sys_validation", deps.Metrics); err != nil {
			return nil, fmt.Errorf("space: sys metrics: %w", err)
		}
		if appMetrics, err = metrics.NewWorkflowMetrics("dhtcore", "app_validation", deps.Metrics); err != nil {
			return nil, fmt.Errorf("space: app metrics: %w", err)
		}
		if intMetrics, err = metrics.NewWorkflowMetrics("dhtcore", "integration", deps.Metrics); err != nil {
			return nil, fmt.Errorf("space: integration metrics: %w", err)
		}
	}

	limbo := s.ValidationLimbo
	integ := s.IntegrationLimbo
	cfg := deps.ValidationCfg
	if cfg == (validation.Config{}) {
		cfg = validation.DefaultConfig()
	}

	sysTrigger, appTrigger, intTrigger := validation.NewTrigger(), validation.NewTrigger(), validation.NewTrigger()

	sp := &Space{
		DNA:      dna,
		Store:    s,
		Cascade:  cas,
		PeerView: arc.NewPeerView(),
		Log:      deps.Log.With("space", dna.String()),
		SysQueue: &validation.SysValidationWorkflow{
			Limbo: limbo, Cascade: cas, Trigger: sysTrigger, Cfg: cfg, Metrics: sysMetrics, Log: deps.Log,
		},
		AppQueue: &validation.AppValidationWorkflow{
			Limbo: limbo, Guest: deps.Guest, Trigger: appTrigger, Cfg: cfg, Metrics: appMetrics, Log: deps.Log,
		},
		IntQueue: &validation.IntegrationWorkflow{
			Limbo: limbo, Integ: integ, Store: s, Keystore: deps.Keystore, Trigger: intTrigger, Metrics: intMetrics, Log: deps.Log,
		},
	}
	return sp, nil
}

// Run starts all three queue consumers and blocks until ctx is cancelled.
func (s *Space) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.SysQueue.Run(ctx) }()
	go func() { defer wg.Done(); s.AppQueue.Run(ctx) }()
	go func() { defer wg.Done(); s.IntQueue.Run(ctx) }()
	wg.Wait()
}

// SubmitOp enqueues op for validation and wakes the system-validation
// consumer, the entry point a just-authored or just-received op takes into
// the pipeline, per spec.md §4.6.
func (s *Space) SubmitOp(op dhtop.Op) (hash.Hash, error) {
	opHash, added, err := s.SysQueue.Limbo.Add(op)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("space: enqueue op: %w", err)
	}
	if added {
		s.SysQueue.Trigger.Fire()
	}
	return opHash, nil
}
