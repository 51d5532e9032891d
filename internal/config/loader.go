package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional config file into a Config.
// Flags that were set explicitly override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := &Config{
		Method:          "GET",
		Headers:         map[string]string{},
		ConcurrentUsers: 10,
		Duration:        60 * time.Second,
		MaxRPS:          100,
		Timeout:         30 * time.Second,
		Engine:          EngineAuto,
		Profile:         ProfileSteadyState,
		ConfigFile:      configPath,
		Tracing:         TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := cfgViper.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		))); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// applyFlagOverrides copies explicitly-set flag values over the Config.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "target":
			cfg.TargetURL, _ = flags.GetString(f.Name)
		case "method":
			cfg.Method, _ = flags.GetString(f.Name)
		case "header":
			values, _ := flags.GetStringSlice(f.Name)
			err = mergeHeaderFlags(cfg, values)
		case "body":
			cfg.Body, _ = flags.GetString(f.Name)
		case "auth-token":
			cfg.AuthToken, _ = flags.GetString(f.Name)
		case "users":
			cfg.ConcurrentUsers, _ = flags.GetInt(f.Name)
		case "duration":
			cfg.Duration, _ = flags.GetDuration(f.Name)
		case "max-rps":
			cfg.MaxRPS, _ = flags.GetInt(f.Name)
		case "timeout":
			cfg.Timeout, _ = flags.GetDuration(f.Name)
		case "engine":
			v, _ := flags.GetString(f.Name)
			cfg.Engine = Engine(strings.ToLower(strings.TrimSpace(v)))
		case "profile":
			v, _ := flags.GetString(f.Name)
			cfg.Profile = ProfileKind(strings.ToLower(strings.TrimSpace(v)))
		case "initial-users":
			cfg.ProfileParams.InitialUsers, _ = flags.GetInt(f.Name)
		case "target-users":
			cfg.ProfileParams.TargetUsers, _ = flags.GetInt(f.Name)
		case "ramp-duration":
			cfg.ProfileParams.RampDuration, _ = flags.GetDuration(f.Name)
		case "hold-duration":
			cfg.ProfileParams.HoldDuration, _ = flags.GetDuration(f.Name)
		case "baseline-users":
			cfg.ProfileParams.BaselineUsers, _ = flags.GetInt(f.Name)
		case "spike-users":
			cfg.ProfileParams.SpikeUsers, _ = flags.GetInt(f.Name)
		case "spike-duration":
			cfg.ProfileParams.SpikeDuration, _ = flags.GetDuration(f.Name)
		case "baseline-duration":
			cfg.ProfileParams.BaselineDuration, _ = flags.GetDuration(f.Name)
		case "json-output":
			cfg.JSONOutput, _ = flags.GetBool(f.Name)
		case "metrics-addr":
			cfg.MetricsAddr, _ = flags.GetString(f.Name)
		case "otel-endpoint":
			cfg.Tracing.Endpoint, _ = flags.GetString(f.Name)
		case "otel-protocol":
			cfg.Tracing.Protocol, _ = flags.GetString(f.Name)
		case "otel-insecure":
			cfg.Tracing.Insecure, _ = flags.GetBool(f.Name)
		case "otel-sample-rate":
			cfg.Tracing.SampleRate, _ = flags.GetFloat64(f.Name)
		}
	})
	return err
}

// mergeHeaderFlags folds repeated key=value header flags into the header map.
func mergeHeaderFlags(cfg *Config, values []string) error {
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid header %q: expected key=value", raw)
		}
		cfg.Headers[http.CanonicalHeaderKey(key)] = strings.TrimSpace(value)
	}
	return nil
}
