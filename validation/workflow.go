// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/codec"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/log"
	"github.com/luxfi/dhtcore/metrics"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/store"
)

// Config bounds how hard a queue consumer retries a dependency-blocked op
// before abandoning it, grounded on the teacher's retry-with-cap shape
// (networking/timeout's backoff doubling to a ceiling).
type Config struct {
	MaxTries    uint32
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns the retry policy most callers want.
func DefaultConfig() Config {
	return Config{MaxTries: 8, BaseBackoff: 200 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

func backoffFor(tries uint32, cfg Config) time.Duration {
	d := cfg.BaseBackoff
	for i := uint32(0); i < tries && d < cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d
}

// nowFn is overridable in tests.
var nowFn = time.Now

// dueForRetry reports whether a limbo entry at lastTry/numTries should be
// retried at call time, under cfg.
func dueForRetry(lastTry int64, numTries uint32, cfg Config) bool {
	if numTries == 0 {
		return true
	}
	return time.Since(time.Unix(0, lastTry)) >= backoffFor(numTries, cfg)
}

// SysValidationWorkflow is the first queue consumer of spec.md §4.6: it
// checks an op's chain invariants and entry-hash match, fetching
// dependencies through the cascade as needed.
type SysValidationWorkflow struct {
	Limbo   *store.ValidationLimbo
	Cascade *cascade.Cascade
	Trigger Trigger
	Cfg     Config
	Metrics metrics.WorkflowMetrics
	Log     log.Logger
}

// Run drains the limbo on every trigger fire until ctx is cancelled.
func (w *SysValidationWorkflow) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Trigger.C:
		}
		w.drain(ctx)
	}
}

func (w *SysValidationWorkflow) drain(ctx context.Context) {
	candidates := append(w.Limbo.PendingByStatus(store.Pending), w.Limbo.PendingByStatus(store.AwaitingSysDeps)...)
	for _, opHash := range candidates {
		entry, ok := w.Limbo.Get(opHash)
		if !ok || !dueForRetry(entry.LastTry, entry.NumTries, w.Cfg) {
			continue
		}
		w.process(ctx, opHash, entry)
	}
	if w.Metrics != nil {
		w.Metrics.LimboDepth().Set(float64(len(w.Limbo.PendingByStatus(store.Pending)) + len(w.Limbo.PendingByStatus(store.AwaitingSysDeps))))
	}
}

func (w *SysValidationWorkflow) process(ctx context.Context, opHash hash.Hash, entry store.LimboEntry) {
	outcome, err := sysValidate(ctx, entry.Op, w.Cascade)
	if err != nil {
		w.Log.Warn("sys validation error", zap.Stringer("op", opHash), zap.Error(err))
		w.Limbo.AwaitDeps(opHash, store.AwaitingSysDeps, entry.Deps, nowFn().UnixNano())
		return
	}
	if entry.NumTries+1 >= w.Cfg.MaxTries && !outcome.ready && !outcome.invalid {
		if w.Metrics != nil {
			w.Metrics.Abandoned().Inc()
		}
		w.Limbo.Remove(opHash)
		return
	}
	switch {
	case outcome.invalid:
		w.Limbo.Reject(opHash, outcome.reason)
		if w.Metrics != nil {
			w.Metrics.Rejected().Inc()
		}
	case !outcome.ready:
		w.Limbo.AwaitDeps(opHash, store.AwaitingSysDeps, outcome.deps, nowFn().UnixNano())
	default:
		w.Limbo.Advance(opHash, store.SysValidated)
		if w.Metrics != nil {
			w.Metrics.Processed().Inc()
		}
		w.Trigger.Fire()
	}
}

// AppValidationWorkflow is the second queue consumer: it delegates to the
// DNA's own validation callback across the GuestInvoker capability.
type AppValidationWorkflow struct {
	Limbo   *store.ValidationLimbo
	Guest   GuestInvoker
	Trigger Trigger
	Cfg     Config
	Metrics metrics.WorkflowMetrics
	Log     log.Logger
}

// Run drains the limbo on every trigger fire until ctx is cancelled.
func (w *AppValidationWorkflow) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Trigger.C:
		}
		w.drain(ctx)
	}
}

func (w *AppValidationWorkflow) drain(ctx context.Context) {
	candidates := append(w.Limbo.PendingByStatus(store.SysValidated), w.Limbo.PendingByStatus(store.AwaitingAppDeps)...)
	for _, opHash := range candidates {
		entry, ok := w.Limbo.Get(opHash)
		if !ok || !dueForRetry(entry.LastTry, entry.NumTries, w.Cfg) {
			continue
		}
		w.process(ctx, opHash, entry)
	}
}

func (w *AppValidationWorkflow) process(ctx context.Context, opHash hash.Hash, entry store.LimboEntry) {
	el := record.Element{Signed: record.SignedHeader{Header: entry.Op.Header, Signature: entry.Op.Signature}, Entry: entry.Op.Entry}
	valid, missing, reason, err := w.Guest.ValidateOp(ctx, entry.Op, el)
	if err != nil {
		w.Log.Warn("app validation error", zap.Stringer("op", opHash), zap.Error(err))
		w.Limbo.AwaitDeps(opHash, store.AwaitingAppDeps, entry.Deps, nowFn().UnixNano())
		return
	}
	if entry.NumTries+1 >= w.Cfg.MaxTries && len(missing) > 0 {
		if w.Metrics != nil {
			w.Metrics.Abandoned().Inc()
		}
		w.Limbo.Remove(opHash)
		return
	}
	switch {
	case len(missing) > 0:
		w.Limbo.AwaitDeps(opHash, store.AwaitingAppDeps, missing, nowFn().UnixNano())
	case !valid:
		w.Limbo.Reject(opHash, reason)
		if w.Metrics != nil {
			w.Metrics.Rejected().Inc()
		}
	default:
		w.Limbo.Advance(opHash, store.AwaitingProof)
		if w.Metrics != nil {
			w.Metrics.Processed().Inc()
		}
		w.Trigger.Fire()
	}
}

// IntegrationWorkflow is the third queue consumer: it verifies an op's
// signature (the "proof" AwaitingProof names) and, once satisfied, applies
// the op's relation to the authoritative store.Metadata index and persists
// its element into the Vault, the single-writer step every other workflow
// waits behind.
type IntegrationWorkflow struct {
	Limbo    *store.ValidationLimbo
	Integ    *store.IntegrationLimbo
	Store    *store.Store
	Keystore record.Keystore
	Trigger  Trigger
	Metrics  metrics.WorkflowMetrics
	Log      log.Logger
}

// Run drains the limbo on every trigger fire until ctx is cancelled.
func (w *IntegrationWorkflow) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Trigger.C:
		}
		w.drain()
	}
}

func (w *IntegrationWorkflow) drain() {
	for _, opHash := range w.Limbo.PendingByStatus(store.AwaitingProof) {
		w.Integ.Push(opHash)
	}
	for {
		opHash, ok := w.Integ.Pop()
		if !ok {
			return
		}
		w.integrate(opHash)
	}
}

func (w *IntegrationWorkflow) integrate(opHash hash.Hash) {
	entry, ok := w.Limbo.Get(opHash)
	if !ok {
		return
	}
	canonical, err := codec.Canonical(entry.Op.Header)
	if err != nil {
		w.Log.Error("integration: encode header", zap.Stringer("op", opHash), zap.Error(err))
		return
	}
	if !w.Keystore.Verify(entry.Op.Header.Author, canonical, entry.Op.Signature) {
		w.Limbo.Reject(opHash, "integration: signature verification failed")
		if w.Metrics != nil {
			w.Metrics.Rejected().Inc()
		}
		return
	}

	if err := w.apply(entry.Op); err != nil {
		w.Log.Error("integration: apply op", zap.Stringer("op", opHash), zap.Error(err))
		return
	}
	if err := w.Store.IntegratedOps.Mark(entry.Op); err != nil {
		w.Log.Error("integration: mark integrated", zap.Stringer("op", opHash), zap.Error(err))
		return
	}
	w.Limbo.Advance(opHash, store.Integrated)
	w.Limbo.Remove(opHash)
	if w.Metrics != nil {
		w.Metrics.Processed().Inc()
	}
	w.Trigger.Fire()
}

// apply writes op's implied relation into the authoritative metadata index
// and, for ops that carry a full element, the vault itself, mirroring
// cascade.Cascade.mergeElement's expansion but against authoritative rather
// than network-learned state.
func (w *IntegrationWorkflow) apply(op dhtop.Op) error {
	ts := op.Header.Timestamp
	headerHash, err := (record.SignedHeader{Header: op.Header, Signature: op.Signature}).Hash()
	if err != nil {
		return fmt.Errorf("validation: hash header: %w", err)
	}

	switch op.Kind {
	case dhtop.StoreRecord:
		el := record.Element{Signed: record.SignedHeader{Header: op.Header, Signature: op.Signature}, Entry: op.Entry}
		if err := w.Store.Vault.Put(el); err != nil {
			return fmt.Errorf("validation: put element: %w", err)
		}
		if op.Entry != nil {
			entryHash, err := op.Entry.Hash()
			if err != nil {
				return err
			}
			w.Store.Metadata.AddHeaderOnEntry(entryHash, headerHash, ts)
		}
	case dhtop.StoreEntry:
		w.Store.Metadata.AddHeaderOnEntry(op.Basis, headerHash, ts)
	case dhtop.RegisterAgentActivity:
		w.Store.Metadata.AddActivity(op.Basis, headerHash, ts)
	case dhtop.RegisterUpdatedContent:
		w.Store.Metadata.AddUpdateOnEntry(op.Basis, headerHash, ts)
	case dhtop.RegisterUpdatedRecord:
		w.Store.Metadata.AddUpdateOnHeader(op.Basis, headerHash, ts)
	case dhtop.RegisterDeletedBy:
		w.Store.Metadata.AddDeleteOnHeader(op.Basis, headerHash, ts)
	case dhtop.RegisterDeletedEntryHeader:
		w.Store.Metadata.AddDeleteOnEntry(op.Basis, headerHash, ts)
	case dhtop.RegisterAddLink:
		if op.Header.CreateLink != nil {
			f := op.Header.CreateLink
			w.Store.Metadata.AddLink(f.BaseHash, f.ZomeIndex, f.Tag, headerHash, ts)
		}
	case dhtop.RegisterRemoveLink:
		if op.Header.DeleteLink != nil {
			w.Store.Metadata.RemoveLink(op.Header.DeleteLink.LinkAddHeaderHash, headerHash)
		}
	}
	return nil
}
