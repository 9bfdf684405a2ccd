// Package cli implements the flapctl command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sureflap-monitor/internal/logger"
	"sureflap-monitor/internal/surehub"
)

var (
	email      string
	password   string
	endpoint   string
	deviceID   string
	allProxy   string
	envFile    string
	timeout    time.Duration
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "flapctl",
	Short: "Command line client for Sure Petcare pet doors",
	Long: `flapctl talks to the Sure Petcare cloud API on behalf of one account.

Environment Variables:
  SUREHUB_EMAIL      Account email address
  SUREHUB_PASSWORD   Account password
  SUREHUB_ENDPOINT   API base URL (default: ` + surehub.DefaultEndpoint + `)
  SUREHUB_DEVICE_ID  Installation id sent with the login
  SUREHUB_ALL_PROXY  SSH jump host for API connections

Variables may also be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.Init(level, "text")
		return loadEnvFile(envFile)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&email, "email", "", "Account email (overrides SUREHUB_EMAIL)")
	flags.StringVar(&password, "password", "", "Account password (overrides SUREHUB_PASSWORD)")
	flags.StringVar(&endpoint, "endpoint", "", "API base URL (overrides SUREHUB_ENDPOINT)")
	flags.StringVar(&deviceID, "device-id", "", "Installation id (overrides SUREHUB_DEVICE_ID)")
	flags.StringVar(&allProxy, "all-proxy", "", "ssh+socks5://user@host:port?private-key=PATH jump host (overrides SUREHUB_ALL_PROXY)")
	flags.StringVar(&envFile, "env-file", ".env", "File to read environment variables from")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for each API request")
	flags.BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log API calls")
}

// loadEnvFile reads path into the environment. Variables already set win,
// and a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setting returns the flag value if set, otherwise the environment value.
func setting(flag, env string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(env)
}

// GetCredentials returns the credentials from flags and environment.
func GetCredentials() surehub.Credentials {
	return surehub.Credentials{
		Email:    setting(email, "SUREHUB_EMAIL"),
		Password: setting(password, "SUREHUB_PASSWORD"),
		Endpoint: setting(endpoint, "SUREHUB_ENDPOINT"),
		DeviceID: setting(deviceID, "SUREHUB_DEVICE_ID"),
	}
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

func newClient() (*surehub.Client, error) {
	creds := GetCredentials()
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.New("email and password are required (--email/--password or SUREHUB_EMAIL/SUREHUB_PASSWORD)")
	}
	transport := surehub.NewHTTPTransport(surehub.TransportOptions{
		Timeout:  timeout,
		AllProxy: setting(allProxy, "SUREHUB_ALL_PROXY"),
	})
	session := surehub.NewSession(creds, surehub.WithTransport(transport), surehub.WithLogger(slog.Default()))
	return surehub.NewClient(session), nil
}

func writeJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}

func writeError(w io.Writer, err error) int {
	fmt.Fprintln(w, errorStyle.Render("Error:"), err)
	return 1
}
