package wasm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// guest is the slice of an instantiated module the cleanup adapter needs.
// It exists so the adapter can be exercised without a compiled binary.
type guest interface {
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	Close(ctx context.Context) error
}

// moduleGuest adapts a wazero module instance to guest.
type moduleGuest struct {
	mod api.Module
}

func (g moduleGuest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("module does not export %q", name)
	}
	return fn.Call(ctx, params...)
}

func (g moduleGuest) Read(offset, byteCount uint32) ([]byte, bool) {
	mem := g.mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(offset, byteCount)
}

func (g moduleGuest) Write(offset uint32, data []byte) bool {
	mem := g.mod.Memory()
	if mem == nil {
		return false
	}
	return mem.Write(offset, data)
}

func (g moduleGuest) Close(ctx context.Context) error {
	return g.mod.Close(ctx)
}

// memoryRegion exposes a guest's linear memory as a bridge.SharedMemoryRegion.
type memoryRegion struct {
	g guest
}

// Read copies length bytes at offset. wazero hands back a view into live
// memory, which the next guest call may overwrite, so we never return it.
func (r memoryRegion) Read(offset, length uint32) ([]byte, error) {
	view, ok := r.g.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read of %d bytes at offset %d is outside linear memory", length, offset)
	}
	return bytes.Clone(view), nil
}
