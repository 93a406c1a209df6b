package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ongoing/pkg/commands"
	"ongoing/pkg/config"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive rule administration",
	Long: `Start an interactive prompt for rule administration. Type subcommands
without the command name ("list_bots", "add_filter Kantai"), or "help".
Exit with "exit", "quit" or Ctrl+D.`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	var (
		registry *commands.Registry
		cfg      *config.Config
	)
	cleanup, err := withCLIApp(&registry, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	name := cfg.Monitor.CommandName
	exec := func(line string) {
		resp, _ := registry.Execute(ctx, commands.CommandRequest{Source: "cli"}, shellCommandText(registry, name, line))
		if out := strings.TrimRight(resp.Content, "\n"); out != "" {
			fmt.Println(out)
		}
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return simpleShellLoop(os.Stdin, exec)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          name + "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".ongoing_history"),
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Warning: readline not available, using simple mode\n")
		return simpleShellLoop(os.Stdin, exec)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		exec(input)
	}
}

// simpleShellLoop reads commands line by line, for piped input.
func simpleShellLoop(r io.Reader, exec func(string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		exec(input)
	}
	return scanner.Err()
}

// shellCommandText prefixes bare subcommands with the command name.
// Lines that already start with a registered command pass through.
func shellCommandText(registry *commands.Registry, commandName, line string) string {
	if registry.IsCommand(line) {
		return line
	}
	return commandName + " " + line
}
