// Package main is the caj2pdf command line tool. It runs the same two
// WebAssembly modules as the API server, in-process, against local files.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/wasm"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the caj2pdf CLI.
var rootCmd = &cobra.Command{
	Use:   "caj2pdf",
	Short: "Convert CAJ documents to PDF",
	Long: `caj2pdf converts CAJ documents to PDF locally. The conversion module
turns the CAJ file into a raw PDF plus its bookmark outline; the cleanup
module repairs the PDF and writes the outline back as bookmarks.

Module locations default to $CONVERSION_MODULE and $CLEANUP_MODULE and may
be file paths or http(s) URLs.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("conversion-module", envOr("CONVERSION_MODULE", "wasm/caj2pdf.wasm"), "CAJ -> PDF module (path or URL)")
	rootCmd.PersistentFlags().String("cleanup-module", envOr("CLEANUP_MODULE", "wasm/mupdf.wasm"), "PDF cleanup module (path or URL)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "overall deadline, including module loading")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// startHost creates the wasm host from the persistent flags and begins
// loading both modules. The returned context carries the --timeout deadline.
func startHost(cmd *cobra.Command) (context.Context, *wasm.Host, func(), error) {
	conversionSrc, _ := cmd.Flags().GetString("conversion-module")
	cleanupSrc, _ := cmd.Flags().GetString("cleanup-module")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	host, err := wasm.NewHost(ctx, wasm.Config{
		ConversionSource: conversionSrc,
		CleanupSource:    cleanupSrc,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	host.Start(ctx)

	cleanup := func() {
		host.Close(context.Background())
		cancel()
	}
	return ctx, host, cleanup, nil
}
