package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sureflap-monitor/internal/parse"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Show or record where a pet is",
}

var positionGetCmd = &cobra.Command{
	Use:   "get PET_ID",
	Short: "Show the current position of a pet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runPositionGet(ctx, w, args[0])
		})
	},
}

var positionSetCmd = &cobra.Command{
	Use:   "set PET_ID inside|outside [SINCE]",
	Short: "Record that a pet is inside or outside",
	Long: `Record that a pet is inside or outside.

SINCE is "now" (the default), an RFC 3339 timestamp, a date (YYYY-MM-DD,
local time) or a negative duration such as -15m.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runPositionSet(ctx, w, args)
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report PET_ID [KEY=VALUE...]",
	Short: "Show the report of a pet",
	Long: `Show the report of a pet. Arguments such as from=2024-03-01 select the
aggregate report.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runReport(ctx, w, args)
		})
	},
}

func init() {
	positionCmd.AddCommand(positionGetCmd, positionSetCmd)
	rootCmd.AddCommand(positionCmd, reportCmd)
}

type positionOutput struct {
	PetID    int64     `json:"pet_id"`
	Name     string    `json:"name"`
	Where    string    `json:"where"`
	Since    time.Time `json:"since"`
	DeviceID int64     `json:"device_id,omitempty"`
}

func runPositionGet(ctx context.Context, w io.Writer, rawID string) int {
	petID, err := parse.ID(rawID)
	if err != nil {
		return writeError(w, err)
	}
	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	pet, err := client.Pet(ctx, petID)
	if err != nil {
		return writeError(w, err)
	}
	pos, err := pet.CurrentPosition(ctx)
	if err != nil {
		return writeError(w, err)
	}

	if IsJSONOutput() {
		writeJSON(w, positionOutput{
			PetID:    petID,
			Name:     pet.Name,
			Where:    whereName(pos.Where),
			Since:    pos.Since,
			DeviceID: pos.DeviceID,
		})
		return 0
	}
	fmt.Fprintf(w, "%s is %s %s\n", titleStyle.Render(pet.Name), whereLabel(int(pos.Where)),
		mutedStyle.Render("since "+formatTime(pos.Since)))
	return 0
}

func runPositionSet(ctx context.Context, w io.Writer, args []string) int {
	petID, err := parse.ID(args[0])
	if err != nil {
		return writeError(w, err)
	}
	where, err := parse.Where(args[1])
	if err != nil {
		return writeError(w, err)
	}
	var since time.Time
	if len(args) == 3 {
		since, err = parse.Since(args[2], time.Now(), time.Local)
		if err != nil {
			return writeError(w, err)
		}
	}

	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	pet, err := client.Pet(ctx, petID)
	if err != nil {
		return writeError(w, err)
	}
	result, err := pet.SetPosition(ctx, where, since)
	if err != nil {
		return writeError(w, err)
	}

	if IsJSONOutput() {
		writeRaw(w, result)
		return 0
	}
	fmt.Fprintf(w, "%s is now %s\n", titleStyle.Render(pet.Name), whereLabel(int(where)))
	return 0
}

func runReport(ctx context.Context, w io.Writer, args []string) int {
	petID, err := parse.ID(args[0])
	if err != nil {
		return writeError(w, err)
	}
	query, err := parse.ReportArgs(args[1:])
	if err != nil {
		return writeError(w, err)
	}

	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	pet, err := client.Pet(ctx, petID)
	if err != nil {
		return writeError(w, err)
	}
	report, err := pet.Report(ctx, query)
	if err != nil {
		return writeError(w, err)
	}
	writeRaw(w, report)
	return 0
}

// writeRaw pretty-prints an API payload.
func writeRaw(w io.Writer, raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintln(w, string(raw))
		return
	}
	writeJSON(w, v)
}
