// Package bridge moves byte buffers across the call boundary into the two
// precompiled modules that do the actual CAJ-to-PDF work.
//
// The pipeline is fixed and strictly sequential:
//
//	encode -> conversion module -> decode -> cleanup module (length, pointer, read)
//
// Both modules are injected as capability handles, so the bridge itself has no
// global state and can be tested against fakes.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Bridge runs one conversion at a time against a pair of modules.
type Bridge struct {
	conversion ConversionModule
	cleanup    CleanupModule

	// mu keeps the length query, pointer query and memory read together so no
	// other call can disturb the cleanup module's allocator in between.
	mu sync.Mutex
}

// Result is the outcome of a full conversion.
type Result struct {
	PDF              []byte
	Outline          []OutlineEntry
	InputSize        int
	IntermediateSize int
}

// New creates a bridge over the given modules.
func New(conversion ConversionModule, cleanup CleanupModule) *Bridge {
	return &Bridge{conversion: conversion, cleanup: cleanup}
}

// Ready reports whether both modules finished initializing.
func (b *Bridge) Ready() bool {
	return b.conversion.Ready() && b.cleanup.Ready()
}

// AwaitReady blocks until both modules are ready or ctx ends. The two
// modules initialize independently; the order they finish in does not matter.
func (b *Bridge) AwaitReady(ctx context.Context) error {
	if err := b.conversion.AwaitReady(ctx); err != nil {
		return asKind(err, ErrModuleNotReady, StageReady)
	}
	if err := b.cleanup.AwaitReady(ctx); err != nil {
		return asKind(err, ErrModuleNotReady, StageReady)
	}
	return nil
}

// Convert runs the whole pipeline on one input document. It never waits for
// readiness: a bridge that is not ready rejects the input with
// ErrModuleNotReady.
func (b *Bridge) Convert(ctx context.Context, input []byte) (*Result, error) {
	if !b.Ready() {
		return nil, newError(ErrModuleNotReady, StageReady, nil)
	}

	converted, err := b.InvokeTransformA(ctx, EncodeForTransfer(input))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}

	intermediate, err := DecodeFromTransfer(converted.Document)
	if err != nil {
		return nil, err
	}
	outline := ParseOutline(converted.Outline)

	pdf, err := b.InvokeTransformB(ctx, intermediate, FormatOutline(outline))
	if err != nil {
		return nil, err
	}

	return &Result{
		PDF:              pdf,
		Outline:          outline,
		InputSize:        len(input),
		IntermediateSize: len(intermediate),
	}, nil
}

// InvokeTransformA calls the conversion module's entry point.
func (b *Bridge) InvokeTransformA(ctx context.Context, encoded string) (ConversionOutput, error) {
	var out ConversionOutput
	if !b.conversion.Ready() {
		return out, newError(ErrModuleNotReady, StageConversion, nil)
	}
	err := guard(ErrTransformFailure, StageConversion, func() error {
		var err error
		out, err = b.conversion.Convert(ctx, encoded)
		return err
	})
	return out, err
}

// InvokeTransformB runs the cleanup module's two-step protocol and copies
// exactly n bytes starting at p out of its linear memory.
func (b *Bridge) InvokeTransformB(ctx context.Context, input []byte, outline string) ([]byte, error) {
	if !b.cleanup.Ready() {
		return nil, newError(ErrModuleNotReady, StageLength, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	err := guard(ErrTransformFailure, StageLength, func() error {
		var err error
		n, err = b.cleanup.OutputLength(ctx, input, outline)
		return err
	})
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, newError(ErrTransformFailure, StageLength, fmt.Errorf("negative output length %d", n))
	}
	if n == 0 {
		// Nothing to extract and no buffer of ours to free.
		return []byte{}, nil
	}

	var p uint32
	err = guard(ErrTransformFailure, StagePointer, func() error {
		var err error
		p, err = b.cleanup.OutputPointer(ctx, input, outline)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer b.release(ctx, p)

	region := b.cleanup.Memory()
	if region == nil {
		return nil, newError(ErrTransformFailure, StageExtract, errors.New("module exposes no memory"))
	}

	var data []byte
	err = guard(ErrLengthMismatch, StageExtract, func() error {
		var err error
		data, err = region.Read(p, uint32(n))
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, newError(ErrLengthMismatch, StageExtract,
			fmt.Errorf("read %d bytes at offset %d, module reported %d", len(data), p, n))
	}

	return bytes.Clone(data), nil
}

func (b *Bridge) release(ctx context.Context, p uint32) {
	r, ok := b.cleanup.(Releaser)
	if !ok || p == 0 {
		return
	}
	if err := r.Release(ctx, p); err != nil {
		log.Printf("⚠️  Failed to release cleanup output at %d: %v", p, err)
	}
}

// guard runs fn, turning both returned errors and panics into a bridge Error
// of the given kind. Errors that already carry a kind keep it.
func guard(kind error, stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(kind, stage, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		return asKind(err, kind, stage)
	}
	return nil
}

func asKind(err error, kind error, stage Stage) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return newError(kind, stage, err)
}
