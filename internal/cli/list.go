package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sureflap-monitor/internal/surehub"
)

var householdsCmd = &cobra.Command{
	Use:   "households",
	Short: "List the households of the account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(runHouseholds)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices of the account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(runDevices)
	},
}

var petsCmd = &cobra.Command{
	Use:   "pets",
	Short: "List the pets of the account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(runPets)
	},
}

func init() {
	rootCmd.AddCommand(householdsCmd, devicesCmd, petsCmd)
}

// run calls fn with a context cancelled on SIGINT or SIGTERM and exits with
// its code when non-zero.
func run(fn func(ctx context.Context, w io.Writer) int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := fn(ctx, os.Stdout)
	cancel()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

type householdOutput struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

func runHouseholds(ctx context.Context, w io.Writer) int {
	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	households, err := client.Households(ctx)
	if err != nil {
		return writeError(w, err)
	}

	out := make([]householdOutput, 0, len(households))
	for _, h := range households {
		o := householdOutput{ID: h.ID(), Name: h.Name}
		if h.Timezone != nil {
			o.Timezone = h.Timezone.Timezone
		}
		out = append(out, o)
	}

	if IsJSONOutput() {
		writeJSON(w, out)
		return 0
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Households (%d)", len(out))))
	for _, o := range out {
		fmt.Fprintf(w, "%-10d %s %s\n", o.ID, o.Name, mutedStyle.Render(o.Timezone))
	}
	return 0
}

type deviceOutput struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Product     string `json:"product"`
	HouseholdID int64  `json:"household_id"`
}

func runDevices(ctx context.Context, w io.Writer) int {
	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	devices, err := client.Devices(ctx)
	if err != nil {
		return writeError(w, err)
	}

	out := make([]deviceOutput, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceOutput{ID: d.ID(), Name: d.Name, Product: d.ProductName(), HouseholdID: d.HouseholdID})
	}

	if IsJSONOutput() {
		writeJSON(w, out)
		return 0
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Devices (%d)", len(out))))
	for _, o := range out {
		fmt.Fprintf(w, "%-10d %-24s %s\n", o.ID, o.Name, mutedStyle.Render(o.Product))
	}
	return 0
}

type petOutput struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	HouseholdID int64      `json:"household_id"`
	Where       string     `json:"where,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
}

func runPets(ctx context.Context, w io.Writer) int {
	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	pets, err := client.Pets(ctx)
	if err != nil {
		return writeError(w, err)
	}

	if IsJSONOutput() {
		out := make([]petOutput, 0, len(pets))
		for _, p := range pets {
			o := petOutput{ID: p.ID(), Name: p.Name, HouseholdID: p.HouseholdID}
			if p.Position != nil {
				o.Where = whereName(p.Position.Where)
				since := p.Position.Since
				o.Since = &since
			}
			out = append(out, o)
		}
		writeJSON(w, out)
		return 0
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Pets (%d)", len(pets))))
	for _, p := range pets {
		line := fmt.Sprintf("%-10d %-16s", p.ID(), p.Name)
		if p.Position != nil {
			line += " " + whereLabel(int(p.Position.Where)) + " " + mutedStyle.Render("since "+formatTime(p.Position.Since))
		}
		fmt.Fprintln(w, line)
	}
	return 0
}

func whereName(w surehub.Where) string {
	switch w {
	case surehub.Inside, surehub.Outside:
		return w.String()
	default:
		return "unknown"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
