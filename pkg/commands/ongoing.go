package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ongoing/pkg/admin"
)

const listRule = "------------------------------------"

type subcommand struct {
	name  string
	args  string
	about string
	run   func(ctx context.Context, svc *admin.Service, args string) (string, error)
}

var subcommands = []subcommand{
	{name: "channel", args: "[<name>]", about: "show or set the monitored channel", run: runChannel},
	{name: "add_bot", args: "<name> <regex>", about: "watch a bot; the regex's first group is the pack number", run: runAddBot},
	{name: "del_bot", args: "<name>", about: "stop watching a bot", run: runDelBot},
	{name: "list_bots", about: "list watched bots", run: runListBots},
	{name: "add_filter", args: "<regex>", about: "append a release filter", run: runAddFilter},
	{name: "del_filter", args: "<id>", about: "remove a filter by its list id", run: runDelFilter},
	{name: "list_filters", about: "list filters in match order", run: runListFilters},
	{name: "stats", about: "show rule counts and dispatch counters", run: runStats},
}

// OngoingCommand returns the rule administration command registered under
// name (normally "ongoing").
func OngoingCommand(name string, svc *admin.Service) *Command {
	name = normalizeName(name)
	return &Command{
		Name:        name,
		Description: "Manage watched bots, release filters and the monitored channel",
		Usage:       ongoingUsage(name),
		Handler: func(ctx context.Context, req CommandRequest) (CommandResponse, error) {
			sub, args, _ := strings.Cut(strings.TrimSpace(req.Args), " ")
			args = strings.TrimSpace(args)
			if sub == "" {
				return CommandResponse{Content: ongoingUsage(name)}, nil
			}

			for _, sc := range subcommands {
				if sc.name != sub {
					continue
				}
				content, err := sc.run(ctx, svc, args)
				if errors.Is(err, admin.ErrUsage) && content == "" {
					content = fmt.Sprintf("Usage: %s %s %s", name, sc.name, sc.args)
				}
				return CommandResponse{Content: content}, err
			}

			err := fmt.Errorf("%w: %s", ErrUnknownSubcommand, sub)
			return CommandResponse{
				Content: fmt.Sprintf("Unknown subcommand %q.\n%s", sub, ongoingUsage(name)),
			}, err
		},
	}
}

func ongoingUsage(name string) string {
	var sb strings.Builder
	sb.WriteString("Usage:\n")
	for _, sc := range subcommands {
		line := strings.TrimSpace(fmt.Sprintf("%s %s %s", name, sc.name, sc.args))
		fmt.Fprintf(&sb, "  %-40s %s\n", line, sc.about)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func runChannel(ctx context.Context, svc *admin.Service, args string) (string, error) {
	if args == "" {
		ch, err := svc.GetChannel(ctx)
		if err != nil {
			return "Could not read the channel: " + err.Error(), err
		}
		return "The current channel is " + ch, nil
	}
	ch, err := svc.SetChannel(ctx, args)
	if err != nil {
		return "", err
	}
	return "The channel set to " + ch, nil
}

func runAddBot(ctx context.Context, svc *admin.Service, args string) (string, error) {
	name, pattern, ok := strings.Cut(args, " ")
	pattern = strings.TrimSpace(pattern)
	if !ok || name == "" || pattern == "" {
		return "", admin.ErrUsage
	}
	replaced, err := svc.AddBot(ctx, name, pattern)
	if err != nil {
		return patternError(err)
	}
	if replaced {
		return fmt.Sprintf("Updated %s in XDCC providers list.", name), nil
	}
	return fmt.Sprintf("Added %s to XDCC providers list.", name), nil
}

func runDelBot(ctx context.Context, svc *admin.Service, args string) (string, error) {
	if args == "" {
		return "", admin.ErrUsage
	}
	if err := svc.RemoveBot(ctx, args); err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return fmt.Sprintf("There is no bot named %s in the list to delete.", args), err
		}
		return "Could not remove bot: " + err.Error(), err
	}
	return fmt.Sprintf("%s has been removed from the list.", args), nil
}

func runListBots(ctx context.Context, svc *admin.Service, _ string) (string, error) {
	bots, err := svc.ListBots(ctx)
	if err != nil {
		return "Could not read bots: " + err.Error(), err
	}
	if len(bots) == 0 {
		return "There are no added bots to watch for updates on.", nil
	}

	var sb strings.Builder
	sb.WriteString("-- List of the watched bots --------\n")
	for _, b := range bots {
		fmt.Fprintf(&sb, "  %-24s %s\n", b.Name, b.Pattern)
	}
	sb.WriteString(listRule)
	return sb.String(), nil
}

func runAddFilter(ctx context.Context, svc *admin.Service, args string) (string, error) {
	if args == "" {
		return "", admin.ErrUsage
	}
	if _, err := svc.AddFilter(ctx, args); err != nil {
		return patternError(err)
	}
	return fmt.Sprintf("Added %s to file filters list.", args), nil
}

func runDelFilter(ctx context.Context, svc *admin.Service, args string) (string, error) {
	if args == "" {
		return "", admin.ErrUsage
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Sprintf("Invalid filter ID %s.", args), fmt.Errorf("%w: invalid filter ID %q", admin.ErrUsage, args)
	}
	removed, err := svc.RemoveFilter(ctx, id)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return fmt.Sprintf("There is no filter ID %s in the list to delete.", args), err
		}
		return "Could not remove filter: " + err.Error(), err
	}
	return fmt.Sprintf("%s has been removed from the list.", removed), nil
}

func runListFilters(ctx context.Context, svc *admin.Service, _ string) (string, error) {
	filters, err := svc.ListFilters(ctx)
	if err != nil {
		return "Could not read filters: " + err.Error(), err
	}
	if len(filters) == 0 {
		return "There are no added file filters.", nil
	}

	var sb strings.Builder
	sb.WriteString("-- List of the file filters --------\n")
	for _, f := range filters {
		fmt.Fprintf(&sb, "%4d  %s\n", f.ID, f.Pattern)
	}
	sb.WriteString(listRule)
	return sb.String(), nil
}

func runStats(ctx context.Context, svc *admin.Service, _ string) (string, error) {
	st, err := svc.Stats(ctx)
	if err != nil {
		return "Could not read stats: " + err.Error(), err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", st.Channel)
	fmt.Fprintf(&sb, "Bots: %d  Filters: %d\n", st.Bots, st.Filters)
	m := st.Monitor
	if m == nil {
		sb.WriteString("Monitor: not running in this process")
		return sb.String(), nil
	}
	fmt.Fprintf(&sb, "Seen: %d  Dispatched: %d  Errors: %d\n", m.Seen, m.Dispatched, m.Errors)
	fmt.Fprintf(&sb, "Skipped: wrong channel %d, unknown nick %d, no filter %d, capture miss %d\n",
		m.WrongChannel, m.UnknownNick, m.NoFilter, m.CaptureMiss)
	if last := m.LastDispatch; last != nil {
		fmt.Fprintf(&sb, "Last dispatch: %s %s/%s #%s\n",
			last.Time.Format(time.RFC3339), last.Server, last.Nick, last.Identifier)
	}
	fmt.Fprintf(&sb, "Uptime: %s", m.Uptime.Round(time.Second))
	return sb.String(), nil
}

func patternError(err error) (string, error) {
	if errors.Is(err, admin.ErrInvalidPattern) {
		return "Rejected pattern: " + err.Error(), err
	}
	if errors.Is(err, admin.ErrUsage) {
		return "", err
	}
	return "Could not save: " + err.Error(), err
}
