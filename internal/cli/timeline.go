package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sureflap-monitor/internal/surehub"
)

var (
	timelineHousehold int64
	timelinePet       int64
	timelinePageSize  int
	timelineSince     string
	timelineInterval  time.Duration
	timelineOnce      bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Follow the event timeline",
	Long: `Print timeline entries as they arrive, oldest first.

Without --household or --pet the timeline of the whole account is followed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(runTimeline)
	},
}

func init() {
	flags := timelineCmd.Flags()
	flags.Int64Var(&timelineHousehold, "household", 0, "Follow one household")
	flags.Int64Var(&timelinePet, "pet", 0, "Follow one pet")
	flags.IntVar(&timelinePageSize, "page-size", 25, "Number of entries fetched on the first poll")
	flags.StringVar(&timelineSince, "since", "", "Only print entries after this entry id")
	flags.DurationVar(&timelineInterval, "interval", 30*time.Second, "Time between polls")
	flags.BoolVar(&timelineOnce, "once", false, "Poll once and exit")
	timelineCmd.MarkFlagsMutuallyExclusive("household", "pet")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(ctx context.Context, w io.Writer) int {
	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	watcher, err := openTimeline(ctx, client)
	if err != nil {
		return writeError(w, err)
	}

	for {
		entries, err := watcher.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0
			}
			if timelineOnce {
				return writeError(w, err)
			}
			fmt.Fprintln(w, errorStyle.Render("Error:"), err)
		}
		for _, e := range entries {
			if IsJSONOutput() {
				fmt.Fprintln(w, string(e.Raw))
			} else {
				fmt.Fprintln(w, formatEntry(e))
			}
		}
		if timelineOnce {
			return 0
		}

		select {
		case <-ctx.Done():
			return 0
		case <-time.After(timelineInterval):
		}
	}
}

func openTimeline(ctx context.Context, client *surehub.Client) (*surehub.Watcher, error) {
	opts := []surehub.WatcherOption{surehub.WithPageSize(timelinePageSize)}
	if timelineSince != "" {
		opts = append(opts, surehub.WithSince(surehub.EntryID(timelineSince)))
	}

	switch {
	case timelineHousehold > 0:
		household, err := client.Household(ctx, timelineHousehold)
		if err != nil {
			return nil, err
		}
		return household.Timeline(opts...)
	case timelinePet > 0:
		pet, err := client.Pet(ctx, timelinePet)
		if err != nil {
			return nil, err
		}
		return pet.Timeline(opts...)
	default:
		return client.Timeline(opts...)
	}
}

// formatEntry renders one entry on a single line.
func formatEntry(e surehub.Entry) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(formatTime(e.CreatedAt)))
	fmt.Fprintf(&b, " #%s type %d", e.ID, e.Type)

	names := make([]string, 0, len(e.Pets))
	for _, p := range e.Pets {
		names = append(names, p.Name)
	}
	if len(names) > 0 {
		b.WriteString(" " + titleStyle.Render(strings.Join(names, ", ")))
	}
	for _, m := range e.Movements {
		b.WriteString(" " + directionLabel(m.Direction))
	}
	return b.String()
}

func directionLabel(direction int) string {
	switch direction {
	case 1:
		return insideStyle.Render("came in")
	case 2:
		return outsideStyle.Render("went out")
	default:
		return mutedStyle.Render("looked through")
	}
}
