package bridge

import "context"

// ConversionOutput is what the conversion module hands back: the converted
// document and its bookmark outline, both as transfer text.
type ConversionOutput struct {
	Document string `json:"file"`
	Outline  string `json:"outline"`
}

// ConversionModule is the CAJ-to-PDF module. Convert takes the base-64
// encoded source document.
type ConversionModule interface {
	Readiness
	Convert(ctx context.Context, encoded string) (ConversionOutput, error)
}

// CleanupModule is the PDF repair module. Its two queries are evaluated
// against the same input; the pointer refers into Memory().
type CleanupModule interface {
	Readiness
	OutputLength(ctx context.Context, input []byte, outline string) (int, error)
	OutputPointer(ctx context.Context, input []byte, outline string) (uint32, error)
	Memory() SharedMemoryRegion
}

// SharedMemoryRegion is a module's linear memory as seen by the host.
// Read returns a copy of length bytes starting at offset.
type SharedMemoryRegion interface {
	Read(offset, length uint32) ([]byte, error)
}

// Releaser is optionally implemented by a CleanupModule that can free the
// output allocation once the host has copied it out.
type Releaser interface {
	Release(ctx context.Context, ptr uint32) error
}
