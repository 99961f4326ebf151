package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

// fakeGuest mimics the cleanup module: a bump allocator over a byte slice
// and a "clean" that prefixes the input with a PDF header.
type fakeGuest struct {
	mem        []byte
	next       uint32
	allocs     map[uint32]bool
	outlines   []string
	failMalloc bool
	length     func(n int) int32
	closed     bool
}

func newFakeGuest() *fakeGuest {
	return &fakeGuest{mem: make([]byte, 1<<16), next: 1024, allocs: map[uint32]bool{}}
}

func (g *fakeGuest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		g.closed = true
		return nil, err
	}
	switch name {
	case ExportMalloc:
		if g.failMalloc {
			return []uint64{0}, nil
		}
		return []uint64{uint64(g.malloc(uint32(params[0])))}, nil
	case ExportFree:
		ptr := api.DecodeU32(params[0])
		if !g.allocs[ptr] {
			return nil, fmt.Errorf("free of unknown pointer %d", ptr)
		}
		delete(g.allocs, ptr)
		return nil, nil
	case ExportCleanLength:
		out := g.clean(params)
		n := len(out)
		if g.length != nil {
			return []uint64{api.EncodeI32(g.length(n))}, nil
		}
		return []uint64{api.EncodeI32(int32(n))}, nil
	case ExportClean:
		out := g.clean(params)
		ptr := g.malloc(uint32(len(out)))
		copy(g.mem[ptr:], out)
		return []uint64{uint64(ptr)}, nil
	}
	return nil, fmt.Errorf("unknown export %q", name)
}

func (g *fakeGuest) malloc(size uint32) uint32 {
	ptr := g.next
	g.next += (size + 7) &^ 7
	g.allocs[ptr] = true
	return ptr
}

func (g *fakeGuest) clean(params []uint64) []byte {
	in, size, outline := api.DecodeU32(params[0]), api.DecodeU32(params[1]), api.DecodeU32(params[2])
	if outline != 0 {
		end := bytes.IndexByte(g.mem[outline:], 0)
		g.outlines = append(g.outlines, string(g.mem[outline:outline+uint32(end)]))
	} else {
		g.outlines = append(g.outlines, "<null>")
	}
	return append([]byte("%PDF-"), g.mem[in:in+size]...)
}

func (g *fakeGuest) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(g.mem)) {
		return nil, false
	}
	return g.mem[offset:end], true
}

func (g *fakeGuest) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(g.mem)) {
		return false
	}
	copy(g.mem[offset:], data)
	return true
}

func (g *fakeGuest) Close(context.Context) error {
	g.closed = true
	return nil
}

// readyConversion satisfies bridge.ConversionModule for InvokeTransformB tests.
type readyConversion struct{ *bridge.Gate }

func (readyConversion) Convert(context.Context, string) (bridge.ConversionOutput, error) {
	return bridge.ConversionOutput{}, errors.New("unused")
}

func newReadyConversion() readyConversion {
	g := bridge.NewGate()
	g.Open(nil)
	return readyConversion{g}
}

func TestCleanupModule_ThroughBridge(t *testing.T) {
	g := newFakeGuest()
	m := newCleanupModule(g)
	b := bridge.New(newReadyConversion(), m)

	out, err := b.InvokeTransformB(context.Background(), []byte("intermediate"), "1 1 Intro\n")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-intermediate", string(out))

	// Both queries saw the NUL-terminated outline.
	assert.Equal(t, []string{"1 1 Intro\n", "1 1 Intro\n"}, g.outlines)
	// Input, outline and output were all freed.
	assert.Empty(t, g.allocs)
}

func TestCleanupModule_EmptyOutlineIsNull(t *testing.T) {
	g := newFakeGuest()
	m := newCleanupModule(g)

	n, err := m.OutputLength(context.Background(), []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []string{"<null>"}, g.outlines)
}

func TestCleanupModule_EmptyInput(t *testing.T) {
	g := newFakeGuest()
	b := bridge.New(newReadyConversion(), newCleanupModule(g))

	out, err := b.InvokeTransformB(context.Background(), []byte{}, "")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(out))
	assert.Empty(t, g.allocs)
}

func TestCleanupModule_NegativeLength(t *testing.T) {
	g := newFakeGuest()
	g.length = func(int) int32 { return -1 }
	m := newCleanupModule(g)

	n, err := m.OutputLength(context.Background(), []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	_, err = bridge.New(newReadyConversion(), m).InvokeTransformB(context.Background(), []byte("abc"), "")
	assert.True(t, errors.Is(err, bridge.ErrTransformFailure))
}

func TestCleanupModule_LengthBeyondMemory(t *testing.T) {
	g := newFakeGuest()
	g.length = func(int) int32 { return 1 << 20 }
	b := bridge.New(newReadyConversion(), newCleanupModule(g))

	_, err := b.InvokeTransformB(context.Background(), []byte("abc"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrLengthMismatch))
}

func TestCleanupModule_MallocFailure(t *testing.T) {
	g := newFakeGuest()
	g.failMalloc = true
	m := newCleanupModule(g)

	_, err := m.OutputPointer(context.Background(), []byte("abc"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")
}

func TestCleanupModule_NotInstantiated(t *testing.T) {
	m := &CleanupModule{Gate: bridge.NewGate()}

	assert.False(t, m.Ready())
	assert.Nil(t, m.Memory())
	_, err := m.OutputLength(context.Background(), []byte("abc"), "")
	assert.ErrorIs(t, err, errNoGuest)
	assert.ErrorIs(t, m.Release(context.Background(), 8), errNoGuest)
}

func TestCleanupModule_InterruptedCall(t *testing.T) {
	g := newFakeGuest()
	m := newCleanupModule(g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.OutputLength(ctx, []byte("abc"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, g.closed)

	// Without a way to re-instantiate, the handle stays unusable.
	_, err = m.OutputLength(context.Background(), []byte("abc"), "")
	assert.ErrorIs(t, err, errInstanceClosed)
	assert.Nil(t, m.Memory())
	assert.ErrorIs(t, m.Release(context.Background(), 8), errInstanceClosed)

	fresh := newFakeGuest()
	m.renew = func(context.Context) (guest, error) { return fresh, nil }
	n, err := m.OutputLength(context.Background(), []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, fresh.allocs)
}

func TestCleanupModule_RenewFailure(t *testing.T) {
	m := newCleanupModule(newFakeGuest())
	require.NoError(t, m.Close(context.Background()))
	m.renew = func(context.Context) (guest, error) { return nil, errors.New("out of memory") }

	_, err := m.OutputPointer(context.Background(), []byte("abc"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to replace cleanup instance")
}
