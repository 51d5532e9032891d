package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hexbench",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("target", "", "Target URL to load test")
	flags.String("method", "GET", "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("auth-token", "", "Bearer token injected as Authorization header")

	// Load control flags
	flags.IntP("users", "u", 10, "Number of concurrent virtual users")
	flags.DurationP("duration", "d", 60*time.Second, "How long to run the test (e.g. 30s, 5m)")
	flags.IntP("max-rps", "r", 100, "Aggregate requests-per-second cap (0 means default pacing)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")

	// Backend and profile flags
	flags.String("engine", string(EngineAuto), "Load engine: 'auto', 'internal' or 'k6'")
	flags.String("profile", string(ProfileSteadyState), "Load profile: steady_state, ramp_up, spike or soak")
	flags.Int("initial-users", 0, "ramp_up: starting virtual users")
	flags.Int("target-users", 0, "ramp_up: virtual users at end of ramp")
	flags.Duration("ramp-duration", 0, "ramp_up: time to reach target users")
	flags.Duration("hold-duration", 0, "ramp_up: time to hold at target users")
	flags.Int("baseline-users", 0, "spike: baseline virtual users")
	flags.Int("spike-users", 0, "spike: virtual users during the spike")
	flags.Duration("spike-duration", 0, "spike: length of the spike")
	flags.Duration("baseline-duration", 0, "spike: length of the baseline before the spike")

	// Output and observability flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.String("metrics-addr", "", "Listen address for Prometheus /metrics (empty disables)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("otel-endpoint", "", "OTLP exporter endpoint (empty disables tracing)")
	flags.String("otel-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("otel-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("otel-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")

	flags.BoolP("help", "h", false, "Show help")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "hexbench - HTTP load-generation engine")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  hexbench --target <url> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, cmd.Flags().FlagUsages())
}
