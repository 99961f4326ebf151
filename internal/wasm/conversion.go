package wasm

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

// maxStderr bounds how much guest stderr ends up in an error message.
const maxStderr = 2 << 10

// ConversionModule runs the CAJ-to-PDF command module. It is a WASI command:
// base-64 input on stdin, a JSON object {"file", "outline"} on stdout.
//
// Every call gets a fresh, anonymous instance, so calls never share linear
// memory and the handle is safe for concurrent use.
type ConversionModule struct {
	*bridge.Gate

	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// Convert implements bridge.ConversionModule.
func (m *ConversionModule) Convert(ctx context.Context, encoded string) (bridge.ConversionOutput, error) {
	if !m.Ready() {
		return bridge.ConversionOutput{}, errors.New("conversion module has not been compiled")
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs("caj2pdf").
		WithStdin(strings.NewReader(encoded)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil && !cleanExit(err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The runtime closed the instance when ctx ended.
			return bridge.ConversionOutput{}, fmt.Errorf("conversion module stopped: %w%s", ctxErr, stderrSuffix(&stderr))
		}
		return bridge.ConversionOutput{}, fmt.Errorf("conversion module failed: %w%s", err, stderrSuffix(&stderr))
	}

	out, err := parseConversionOutput(stdout.Bytes())
	if err != nil {
		return bridge.ConversionOutput{}, fmt.Errorf("%w%s", err, stderrSuffix(&stderr))
	}
	return out, nil
}

// cleanExit reports whether err is just the guest calling proc_exit(0).
func cleanExit(err error) bool {
	var exitErr *sys.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 0
}

func parseConversionOutput(stdout []byte) (bridge.ConversionOutput, error) {
	var out bridge.ConversionOutput
	if len(bytes.TrimSpace(stdout)) == 0 {
		return out, errors.New("conversion module produced no output")
	}
	if err := json.Unmarshal(stdout, &out); err != nil {
		return out, fmt.Errorf("invalid conversion module output: %w", err)
	}
	return out, nil
}

func stderrSuffix(stderr *bytes.Buffer) string {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return ""
	}
	if len(msg) > maxStderr {
		msg = msg[:maxStderr] + "..."
	}
	return " (stderr: " + msg + ")"
}
