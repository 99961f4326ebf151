package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file.caj>",
	Short: "Print the bookmark outline of a CAJ file",
	Long: `Outline runs only the conversion module and prints the bookmarks it
extracts, indented by level. Use --json for machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutline,
}

func init() {
	outlineCmd.Flags().Bool("json", false, "print entries as JSON")

	rootCmd.AddCommand(outlineCmd)
}

func runOutline(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx, host, cleanup, err := startHost(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	mod := host.ConversionModule()
	if err := mod.AwaitReady(ctx); err != nil {
		return fmt.Errorf("loading conversion module: %w", err)
	}

	out, err := mod.Convert(ctx, bridge.EncodeForTransfer(data))
	if err != nil {
		return err
	}

	return printOutline(cmd.OutOrStdout(), bridge.ParseOutline(out.Outline), asJSON)
}

func printOutline(w io.Writer, entries []bridge.OutlineEntry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []bridge.OutlineEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "(no bookmarks)")
		return err
	}
	for _, e := range entries {
		indent := strings.Repeat("  ", max(e.Level-1, 0))
		if _, err := fmt.Fprintf(w, "%s%s (p. %d)\n", indent, e.Title, e.Page); err != nil {
			return err
		}
	}
	return nil
}
