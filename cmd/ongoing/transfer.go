package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ongoing/pkg/rules"
)

var (
	importLegacy bool
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export channel, bots and filters as YAML",
	Long: `Write the rule set as YAML to file, or to stdout when no file is given.

Examples:
  ongoing export > rules.yaml
  ongoing export ~/backups/rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Replace the rule set from a YAML export or legacy files",
	Long: `Replace channel, bots and filters with the contents of a YAML export.
With --legacy, read bots.json and filters.json from the given directory.
Every pattern is validated before anything is written.

Examples:
  ongoing import rules.yaml
  ongoing import --legacy ~/.weechat/ongoing`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importLegacy, "legacy", false, "read bots.json and filters.json from a directory")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	var store *rules.Store
	cleanup, err := withCLIApp(&store)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if len(args) == 1 {
		if err := rules.WriteBackup(ctx, store, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rules exported to %s\n", args[0])
		return nil
	}

	snap, err := rules.Export(ctx, store)
	if err != nil {
		return err
	}
	return rules.WriteYAML(cmd.OutOrStdout(), snap)
}

func runImport(cmd *cobra.Command, args []string) error {
	snap, err := readSnapshot(args[0], importLegacy)
	if err != nil {
		return err
	}

	var store *rules.Store
	cleanup, err := withCLIApp(&store)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := rules.Import(context.Background(), store, snap); err != nil {
		return err
	}
	channel := snap.Channel
	if strings.TrimSpace(channel) == "" {
		channel = "(unchanged)"
	}
	fmt.Printf("Imported %d bots and %d filters, channel %s\n", len(snap.Bots), len(snap.Filters), channel)
	return nil
}

func readSnapshot(path string, legacy bool) (*rules.Snapshot, error) {
	if legacy {
		return rules.ReadLegacyDir(path)
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return rules.ReadYAML(r)
}
