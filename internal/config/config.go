package config

import (
	"fmt"
	"strings"
	"time"
)

// Engine selects the load-generation backend for an execution.
type Engine string

const (
	EngineAuto     Engine = "auto"
	EngineInternal Engine = "internal"
	EngineK6       Engine = "k6"
)

// ProfileKind is the shape of load over time.
type ProfileKind string

const (
	ProfileSteadyState ProfileKind = "steady_state"
	ProfileRampUp      ProfileKind = "ramp_up"
	ProfileSpike       ProfileKind = "spike"
	ProfileSoak        ProfileKind = "soak"
)

// ProfileParams carries the parameters specific to one profile kind.
// Only the fields relevant to the selected profile are consulted.
type ProfileParams struct {
	InitialUsers     int           `mapstructure:"initial_users"`
	TargetUsers      int           `mapstructure:"target_users"`
	RampDuration     time.Duration `mapstructure:"ramp_duration"`
	HoldDuration     time.Duration `mapstructure:"hold_duration"`
	BaselineUsers    int           `mapstructure:"baseline_users"`
	SpikeUsers       int           `mapstructure:"spike_users"`
	SpikeDuration    time.Duration `mapstructure:"spike_duration"`
	BaselineDuration time.Duration `mapstructure:"baseline_duration"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether an exporter endpoint has been configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Config is the fully-resolved input for one load-test execution. The
// engine trusts it once Validate has accepted it.
type Config struct {
	TargetURL       string            `mapstructure:"target"`
	Method          string            `mapstructure:"method"`
	Headers         map[string]string `mapstructure:"headers"`
	Body            string            `mapstructure:"body"`
	AuthToken       string            `mapstructure:"auth_token"`
	ConcurrentUsers int               `mapstructure:"users"`
	Duration        time.Duration     `mapstructure:"duration"`
	MaxRPS          int               `mapstructure:"max_rps"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Engine          Engine            `mapstructure:"engine"`
	Profile         ProfileKind       `mapstructure:"profile"`
	ProfileParams   ProfileParams     `mapstructure:"profile_params"`
	JSONOutput      bool              `mapstructure:"json_output"`
	MetricsAddr     string            `mapstructure:"metrics_addr"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	ConfigFile      string            `mapstructure:"-"`
}

var supportedMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {}, "PATCH": {}, "HEAD": {}, "OPTIONS": {},
}

// SupportedMethod reports whether method (upper-cased) may be issued.
func SupportedMethod(method string) bool {
	_, ok := supportedMethods[strings.ToUpper(strings.TrimSpace(method))]
	return ok
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required")
	} else if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		issues = append(issues, fmt.Sprintf("target must start with http:// or https://, got %q", target))
	}

	if !SupportedMethod(c.Method) {
		issues = append(issues, fmt.Sprintf("method %q is not supported", c.Method))
	}

	if c.ConcurrentUsers < 1 {
		issues = append(issues, "users must be >= 1")
	}
	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.MaxRPS < 0 {
		issues = append(issues, "max-rps must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.Engine {
	case "", EngineAuto, EngineInternal, EngineK6:
	default:
		issues = append(issues, fmt.Sprintf("engine must be 'auto', 'internal' or 'k6', got %q", c.Engine))
	}

	issues = append(issues, validateProfile(c.Profile, c.ProfileParams)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateProfile(kind ProfileKind, params ProfileParams) []string {
	var issues []string

	switch kind {
	case "", ProfileSteadyState, ProfileSoak:
	case ProfileRampUp:
		if params.TargetUsers < 1 {
			issues = append(issues, "profile: target_users must be >= 1 for ramp_up")
		}
		if params.InitialUsers < 0 {
			issues = append(issues, "profile: initial_users must be >= 0")
		}
		if params.InitialUsers > params.TargetUsers {
			issues = append(issues, "profile: initial_users must not exceed target_users")
		}
		if params.RampDuration <= 0 {
			issues = append(issues, "profile: ramp_duration must be > 0 for ramp_up")
		}
		if params.HoldDuration < 0 {
			issues = append(issues, "profile: hold_duration must be >= 0")
		}
	case ProfileSpike:
		if params.SpikeUsers < 1 {
			issues = append(issues, "profile: spike_users must be >= 1 for spike")
		}
		if params.BaselineUsers < 0 {
			issues = append(issues, "profile: baseline_users must be >= 0")
		}
		if params.BaselineUsers > params.SpikeUsers {
			issues = append(issues, "profile: baseline_users must not exceed spike_users")
		}
		if params.SpikeDuration <= 0 {
			issues = append(issues, "profile: spike_duration must be > 0 for spike")
		}
		if params.BaselineDuration < 0 {
			issues = append(issues, "profile: baseline_duration must be >= 0")
		}
	default:
		issues = append(issues, fmt.Sprintf("profile: unsupported kind %q", kind))
	}

	return issues
}

// ProfileOrDefault returns the configured profile kind, defaulting to steady state.
func (c Config) ProfileOrDefault() ProfileKind {
	if c.Profile == "" {
		return ProfileSteadyState
	}
	return c.Profile
}
