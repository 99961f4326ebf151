// Package wasm hosts the two precompiled WebAssembly modules in-process
// using wazero, and adapts them to the bridge's capability interfaces.
//
// Go Pattern: wazero is a pure-Go WebAssembly runtime: no CGO, no external
// engine. Compilation is the slow part, so we do it once per module at
// startup (in the background) and instantiate cheaply afterwards.
package wasm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

// Config says where the two module binaries come from. Each source is a
// file path or an http(s) URL.
type Config struct {
	ConversionSource string
	CleanupSource    string
	HTTPClient       *http.Client
}

// Host owns the wazero runtime and the compiled modules.
type Host struct {
	cfg     Config
	runtime wazero.Runtime

	conversion *ConversionModule

	// cleanupCompiled opens once the cleanup binary is compiled and its
	// Emscripten imports are in place; instances wait on it.
	cleanupCompiled *bridge.Gate
	cleanup         wazero.CompiledModule
}

// NewHost creates the runtime and registers the WASI host imports. Nothing
// is loaded until Start.
func NewHost(ctx context.Context, cfg Config) (*Host, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}

	// A call whose context ends closes its instance, so a guest stuck in a
	// loop cannot hold a worker past its deadline.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	return &Host{
		cfg:             cfg,
		runtime:         rt,
		conversion:      &ConversionModule{Gate: bridge.NewGate(), runtime: rt},
		cleanupCompiled: bridge.NewGate(),
	}, nil
}

// Start fetches and compiles both modules concurrently. Each module's
// readiness gate opens independently when its own work is done.
func (h *Host) Start(ctx context.Context) {
	go func() {
		compiled, err := h.compile(ctx, "conversion", h.cfg.ConversionSource)
		if err == nil {
			h.conversion.compiled = compiled
		}
		h.conversion.Open(err)
	}()

	go func() {
		compiled, err := h.compile(ctx, "cleanup", h.cfg.CleanupSource)
		if err == nil {
			if _, err = emscripten.InstantiateForModule(ctx, h.runtime, compiled); err != nil {
				err = fmt.Errorf("failed to instantiate emscripten imports: %w", err)
			}
		}
		if err == nil {
			h.cleanup = compiled
		} else {
			log.Printf("❌ Cleanup module unavailable: %v", err)
		}
		h.cleanupCompiled.Open(err)
	}()
}

func (h *Host) compile(ctx context.Context, name, src string) (wazero.CompiledModule, error) {
	start := time.Now()
	bin, err := LoadSource(ctx, h.cfg.HTTPClient, src)
	if err != nil {
		log.Printf("❌ Failed to load %s module: %v", name, err)
		return nil, err
	}

	compiled, err := h.runtime.CompileModule(ctx, bin)
	if err != nil {
		log.Printf("❌ Failed to compile %s module: %v", name, err)
		return nil, fmt.Errorf("failed to compile %s module: %w", name, err)
	}

	log.Printf("📦 %s module compiled from %s (%d bytes, %s)", name, src, len(bin), time.Since(start).Round(time.Millisecond))
	return compiled, nil
}

// ConversionModule returns the shared conversion module handle.
func (h *Host) ConversionModule() *ConversionModule {
	return h.conversion
}

// NewCleanupModule returns a handle whose private instance is created in the
// background once the cleanup binary has been compiled.
func (h *Host) NewCleanupModule(ctx context.Context) *CleanupModule {
	m := &CleanupModule{Gate: bridge.NewGate()}

	go func() {
		if err := h.cleanupCompiled.AwaitReady(ctx); err != nil {
			m.Open(err)
			return
		}

		g, err := h.instantiateCleanup(ctx)
		if err != nil {
			log.Printf("❌ Failed to instantiate cleanup module: %v", err)
			m.Open(fmt.Errorf("failed to instantiate cleanup module: %w", err))
			return
		}
		m.g = g
		m.renew = h.instantiateCleanup
		m.Open(nil)
	}()

	return m
}

// instantiateCleanup creates one anonymous instance of the compiled cleanup
// module and runs its reactor initializer.
func (h *Host) instantiateCleanup(ctx context.Context) (guest, error) {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	mod, err := h.runtime.InstantiateModule(ctx, h.cleanup, cfg)
	if err != nil {
		return nil, err
	}
	return moduleGuest{mod: mod}, nil
}

// NewBridge pairs the shared conversion module with a fresh cleanup instance.
func (h *Host) NewBridge(ctx context.Context) *bridge.Bridge {
	return bridge.New(h.conversion, h.NewCleanupModule(ctx))
}

// Close releases the runtime and every module instantiated from it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}
