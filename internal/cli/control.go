package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"sureflap-monitor/internal/parse"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Show or change the settings of a device",
}

var controlGetCmd = &cobra.Command{
	Use:   "get DEVICE_ID",
	Short: "Show the control settings of a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runControl(ctx, w, args[0], "")
		})
	},
}

var controlSetCmd = &cobra.Command{
	Use:   "set DEVICE_ID JSON",
	Short: "Change the control settings of a device",
	Long: `Change the control settings of a device. JSON is sent as is, for
example '{"locking":1}'.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runControl(ctx, w, args[0], args[1])
		})
	},
}

func init() {
	controlCmd.AddCommand(controlGetCmd, controlSetCmd)
	rootCmd.AddCommand(controlCmd)
}

// runControl reads the device control, or changes it when settings is set.
func runControl(ctx context.Context, w io.Writer, rawID, settings string) int {
	deviceID, err := parse.ID(rawID)
	if err != nil {
		return writeError(w, err)
	}
	var opts json.RawMessage
	if settings != "" {
		if !json.Valid([]byte(settings)) {
			return writeError(w, errors.New("settings must be valid JSON"))
		}
		opts = json.RawMessage(settings)
	}

	client, err := newClient()
	if err != nil {
		return writeError(w, err)
	}
	device, err := client.Device(ctx, deviceID)
	if err != nil {
		return writeError(w, err)
	}

	var result json.RawMessage
	if opts == nil {
		result, err = device.Control(ctx)
	} else {
		result, err = device.SetControl(ctx, opts)
	}
	if err != nil {
		return writeError(w, err)
	}
	writeRaw(w, result)
	return 0
}
