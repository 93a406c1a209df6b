// Package main is the entry point for the ongoing CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ongoing/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ongoing",
	Short: "ongoing - automatic XDCC release fetcher",
	Long: `ongoing watches IRC channels for release announcements from known bots,
matches them against your filters and requests matching packs automatically.

Run the daemon with 'ongoing run' and manage bots and filters with
'ongoing admin', 'ongoing shell', or the "!ongoing" private message command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
