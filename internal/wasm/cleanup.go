package wasm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

// Exports of the PDF cleanup module.
const (
	// ExportCleanLength: mupdf_clean_length(input, size, outline) -> i32 byte count
	ExportCleanLength = "mupdf_clean_length"
	// ExportClean: mupdf_clean(input, size, outline) -> i32 pointer to the output
	ExportClean = "mupdf_clean"
	// ExportMalloc: malloc(size) -> i32 pointer
	ExportMalloc = "malloc"
	// ExportFree: free(ptr)
	ExportFree = "free"
)

var (
	errNoGuest        = errors.New("cleanup module has not been instantiated")
	errInstanceClosed = errors.New("cleanup instance was closed by an interrupted call")
)

// CleanupModule is one private instance of the cleanup module: its own
// linear memory and allocator. It implements bridge.CleanupModule and
// bridge.Releaser.
type CleanupModule struct {
	*bridge.Gate

	mu sync.Mutex
	g  guest

	// renew instantiates a replacement once the runtime has closed g
	// because a call outlived its context. Nil leaves the module unusable.
	renew func(ctx context.Context) (guest, error)
}

// newCleanupModule wraps an already-instantiated guest.
func newCleanupModule(g guest) *CleanupModule {
	m := &CleanupModule{Gate: bridge.NewGate(), g: g}
	m.Open(nil)
	return m
}

// OutputLength asks the module how many bytes cleaning input would produce.
func (m *CleanupModule) OutputLength(ctx context.Context, input []byte, outline string) (int, error) {
	res, err := m.invoke(ctx, ExportCleanLength, input, outline)
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res)), nil
}

// OutputPointer cleans input and returns where the module left the result.
// The allocation belongs to the module until Release is called.
func (m *CleanupModule) OutputPointer(ctx context.Context, input []byte, outline string) (uint32, error) {
	res, err := m.invoke(ctx, ExportClean, input, outline)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res), nil
}

// Memory returns the instance's linear memory.
func (m *CleanupModule) Memory() bridge.SharedMemoryRegion {
	if !m.Ready() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.g == nil {
		return nil
	}
	return memoryRegion{g: m.g}
}

// Release frees an output buffer returned by OutputPointer. The call ignores
// ctx cancellation: free is short and must not take the instance down.
func (m *CleanupModule) Release(ctx context.Context, ptr uint32) error {
	if !m.Ready() {
		return errNoGuest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.g == nil {
		return errInstanceClosed
	}
	_, err := m.g.Call(context.WithoutCancel(ctx), ExportFree, uint64(ptr))
	return err
}

// Close tears down the instance.
func (m *CleanupModule) Close(ctx context.Context) error {
	if !m.Ready() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.g == nil {
		return nil
	}
	err := m.g.Close(ctx)
	m.g = nil
	return err
}

// current returns the live guest, instantiating a replacement if an earlier
// call was interrupted. m.mu must be held.
func (m *CleanupModule) current(ctx context.Context) (guest, error) {
	if !m.Ready() {
		return nil, errNoGuest
	}
	if m.g != nil {
		return m.g, nil
	}
	if m.renew == nil {
		return nil, errInstanceClosed
	}
	g, err := m.renew(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to replace cleanup instance: %w", err)
	}
	log.Println("♻️  Cleanup instance replaced after an interrupted call")
	m.g = g
	return g, nil
}

// interrupted drops g when ctx ended during a call. The runtime closes an
// instance whose call outlives its context, so g is no longer usable.
// m.mu must be held.
func (m *CleanupModule) interrupted(ctx context.Context, g guest, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return err
	}
	_ = g.Close(context.Background())
	if m.g == g {
		m.g = nil
	}
	return fmt.Errorf("%w: %w", err, ctxErr)
}

// invoke copies input (and outline, as a C string) into guest memory, calls
// fn(input, size, outline) and frees both copies again. An empty outline is
// passed as a null pointer.
func (m *CleanupModule) invoke(ctx context.Context, fn string, input []byte, outline string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.current(ctx)
	if err != nil {
		return 0, err
	}

	inPtr, err := place(ctx, g, input)
	if err != nil {
		return 0, m.interrupted(ctx, g, fmt.Errorf("failed to copy input into module: %w", err))
	}
	defer free(ctx, g, inPtr)

	var outlinePtr uint32
	if outline != "" {
		outlinePtr, err = place(ctx, g, append([]byte(outline), 0))
		if err != nil {
			return 0, m.interrupted(ctx, g, fmt.Errorf("failed to copy outline into module: %w", err))
		}
		defer free(ctx, g, outlinePtr)
	}

	res, err := g.Call(ctx, fn, uint64(inPtr), uint64(len(input)), uint64(outlinePtr))
	if err != nil {
		return 0, m.interrupted(ctx, g, fmt.Errorf("%s failed: %w", fn, err))
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("%s returned %d results, want 1", fn, len(res))
	}
	return res[0], nil
}

// place mallocs room for data inside the guest and writes it there.
func place(ctx context.Context, g guest, data []byte) (uint32, error) {
	size := len(data)
	if size == 0 {
		size = 1 // malloc(0) may legally return NULL
	}
	res, err := g.Call(ctx, ExportMalloc, uint64(size))
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("malloc returned %d results", len(res))
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("malloc(%d) returned NULL", size)
	}
	if !g.Write(ptr, data) {
		return 0, fmt.Errorf("write of %d bytes at %d is outside linear memory", len(data), ptr)
	}
	return ptr, nil
}

func free(ctx context.Context, g guest, ptr uint32) {
	if ptr == 0 {
		return
	}
	// A failing free only leaks guest memory.
	_, _ = g.Call(context.WithoutCancel(ctx), ExportFree, uint64(ptr))
}
