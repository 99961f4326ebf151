package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pdfservice "github.com/Shimizu-Technology/caj2pdf-api/internal/services/pdf"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.caj>",
	Short: "Convert a CAJ file to PDF",
	Long: `Convert runs the full pipeline on one CAJ file: conversion, cleanup and
bookmark insertion. The PDF is written next to the input unless -o is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output PDF path (default: input name with .pdf)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutput(input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	ctx, host, cleanup, err := startHost(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	b := host.NewBridge(ctx)
	if err := b.AwaitReady(ctx); err != nil {
		return fmt.Errorf("loading modules: %w", err)
	}

	result, err := b.Convert(ctx, data)
	if err != nil {
		return err
	}

	pages, err := pageCount(result.PDF)
	if err != nil {
		return fmt.Errorf("checking output: %w", err)
	}

	if err := os.WriteFile(output, result.PDF, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d pages, %d bookmarks, %d bytes)\n",
		input, output, pages, len(result.Outline), len(result.PDF))
	return nil
}

// pageCount only rejects output that is not a PDF at all. A document the
// parser cannot open is still written, reported with 0 pages.
func pageCount(pdf []byte) (int, error) {
	info, err := pdfservice.Inspect(pdf)
	if errors.Is(err, pdfservice.ErrNotPDF) {
		return 0, err
	}
	if err != nil {
		log.Printf("⚠️  Could not count pages: %v", err)
		return 0, nil
	}
	return info.PageCount, nil
}

// defaultOutput swaps the input's extension for .pdf.
func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".pdf"
}
