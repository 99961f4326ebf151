package bridge

import (
	"context"
	"fmt"
)

// readyGate returns an already-open gate.
func readyGate() *Gate {
	g := NewGate()
	g.Open(nil)
	return g
}

type fakeConversion struct {
	*Gate
	convert func(encoded string) (ConversionOutput, error)
	calls   int
}

func (f *fakeConversion) Convert(_ context.Context, encoded string) (ConversionOutput, error) {
	f.calls++
	return f.convert(encoded)
}

// passthroughConversion echoes its input back as the converted document.
func passthroughConversion(outline string) *fakeConversion {
	return &fakeConversion{
		Gate: readyGate(),
		convert: func(encoded string) (ConversionOutput, error) {
			return ConversionOutput{Document: encoded, Outline: outline}, nil
		},
	}
}

type sliceRegion []byte

func (r sliceRegion) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(r)) {
		return nil, fmt.Errorf("read [%d, %d) outside %d-byte memory", offset, end, len(r))
	}
	out := make([]byte, length)
	copy(out, r[offset:end])
	return out, nil
}

// fakeCleanup places a transformed copy of its input into a fresh memory
// image on every pointer query, like a module that mallocs its output.
type fakeCleanup struct {
	*Gate
	transform   func(input []byte) []byte
	lengthDelta int
	memory      sliceRegion
	outlines    []string
	released    []uint32
	pointerHits int
	panicOn     Stage
}

const fakeOutputOffset = 64

func newFakeCleanup(transform func([]byte) []byte) *fakeCleanup {
	return &fakeCleanup{Gate: readyGate(), transform: transform}
}

func (f *fakeCleanup) OutputLength(_ context.Context, input []byte, outline string) (int, error) {
	if f.panicOn == StageLength {
		panic("length query exploded")
	}
	f.outlines = append(f.outlines, outline)
	return len(f.transform(input)) + f.lengthDelta, nil
}

func (f *fakeCleanup) OutputPointer(_ context.Context, input []byte, _ string) (uint32, error) {
	if f.panicOn == StagePointer {
		panic("pointer query exploded")
	}
	f.pointerHits++
	out := f.transform(input)
	f.memory = make(sliceRegion, fakeOutputOffset+len(out))
	copy(f.memory[fakeOutputOffset:], out)
	return fakeOutputOffset, nil
}

func (f *fakeCleanup) Memory() SharedMemoryRegion {
	return f.memory
}

func (f *fakeCleanup) Release(_ context.Context, ptr uint32) error {
	f.released = append(f.released, ptr)
	return nil
}

func identity(b []byte) []byte { return append([]byte(nil), b...) }

func withPDFHeader(b []byte) []byte {
	return append([]byte("%PDF-1.7\n"), b...)
}
