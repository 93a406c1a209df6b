package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ongoing/pkg/commands"
	"ongoing/pkg/config"
)

var adminCmd = &cobra.Command{
	Use:   "admin <subcommand> [args...]",
	Short: "Manage bots, filters and the monitored channel",
	Long: `Run one rule administration command against the configured store.

Subcommands:
  channel [<name>]              show or set the monitored channel
  add_bot <name> <regex>        watch a bot; the regex's first group is the pack number
  del_bot <name>                stop watching a bot
  list_bots                     list watched bots
  add_filter <regex>            append a release filter
  del_filter <id>               remove a filter by its list id
  list_filters                  list filters in match order
  stats                         show rule counts

Examples:
  ongoing admin add_bot KareRaisu 'SEND\s([0-9]+)'
  ongoing admin add_filter 'Kantai.*720p'
  ongoing admin del_filter 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdmin,
}

func init() {
	rootCmd.AddCommand(adminCmd)
}

func runAdmin(cmd *cobra.Command, args []string) error {
	var (
		registry *commands.Registry
		cfg      *config.Config
	)
	cleanup, err := withCLIApp(&registry, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := registry.Execute(context.Background(),
		commands.CommandRequest{Source: "cli"},
		adminCommandText(cfg.Monitor.CommandName, args))
	if out := strings.TrimRight(resp.Content, "\n"); out != "" {
		if err != nil {
			fmt.Fprintln(os.Stderr, out)
		} else {
			fmt.Println(out)
		}
	}
	if err != nil {
		// Already reported to the user.
		return errSilent
	}
	return nil
}

// adminCommandText rebuilds the text command from CLI arguments.
func adminCommandText(commandName string, args []string) string {
	return commandName + " " + strings.Join(args, " ")
}

// errSilent makes the process exit non-zero without printing again.
var errSilent = errors.New("")
