// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log adapts github.com/luxfi/log's Logger to the narrower surface
// the DHT core actually calls: With for attaching space/op/workflow fields,
// and the four level methods workflows use to report progress and failure.
package log

import (
	luxlog "github.com/luxfi/log"
)

// Logger is the subset of luxfi/log.Logger that dhtcore components depend
// on. Components take a Logger by field, never a package global, so tests
// can substitute NewNoOpLogger without touching production wiring.
type Logger interface {
	With(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

// wrap adapts a luxlog.Logger to our Logger interface.
type wrap struct {
	inner luxlog.Logger
}

// New wraps an existing luxfi/log.Logger for use by dhtcore components.
func New(inner luxlog.Logger) Logger {
	return wrap{inner: inner}
}

func (w wrap) With(ctx ...interface{}) Logger {
	return wrap{inner: w.inner.With(ctx...)}
}

func (w wrap) Debug(msg string, ctx ...interface{}) { w.inner.Debug(msg, ctx...) }
func (w wrap) Info(msg string, ctx ...interface{})  { w.inner.Info(msg, ctx...) }
func (w wrap) Warn(msg string, ctx ...interface{})  { w.inner.Warn(msg, ctx...) }
func (w wrap) Error(msg string, ctx ...interface{}) { w.inner.Error(msg, ctx...) }

// noOp discards everything; used by tests and by callers that have not
// wired a real logger yet.
type noOp struct{}

// NewNoOpLogger returns a Logger that discards every call.
func NewNoOpLogger() Logger { return noOp{} }

func (noOp) With(ctx ...interface{}) Logger       { return noOp{} }
func (noOp) Debug(msg string, ctx ...interface{}) {}
func (noOp) Info(msg string, ctx ...interface{})  {}
func (noOp) Warn(msg string, ctx ...interface{})  {}
func (noOp) Error(msg string, ctx ...interface{}) {}
