package wasm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxModuleSize caps how much we read for a single module binary (256MB).
const maxModuleSize = 256 << 20

// LoadSource reads a module binary from a local path or an http(s) URL.
func LoadSource(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if !isRemote(src) {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read module %s: %w", src, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/wasm")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch module %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch module %s: HTTP %d", src, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxModuleSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", src, err)
	}
	if len(data) > maxModuleSize {
		return nil, fmt.Errorf("module %s exceeds %d bytes", src, maxModuleSize)
	}
	return data, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
