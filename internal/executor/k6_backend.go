package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hexbench/hexbench/internal/config"
)

const (
	// Generous fallback added on top of the test duration; the external
	// runner is expected to exit on its own well before this.
	defaultExecutionTimeout = time.Hour

	defaultTerminationGrace = 10 * time.Second

	summaryArtifact   = "summary.json"
	intervalsArtifact = "results.json"

	maxCapturedStderr = 8 * 1024
)

// Each load profile maps to a fixed script identity. A profile without a
// mapping, or a mapping whose script is missing on disk, is a fatal
// configuration error with no fallback.
var profileScripts = map[config.ProfileKind]string{
	config.ProfileSteadyState: "basic-load-test.js",
	config.ProfileRampUp:      "ramp-up-test.js",
	config.ProfileSpike:       "spike-test.js",
	config.ProfileSoak:        "soak-test.js",
}

// k6Backend runs the external k6 process and supervises its lifetime.
// All interaction goes through the process lifecycle and its output
// artifacts, never shared memory.
type k6Backend struct {
	cfg       *config.Config
	logger    *zap.Logger
	binary    string
	scriptDir string
	timeout   time.Duration
	grace     time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	aborted bool
}

func newK6Backend(cfg *config.Config, logger *zap.Logger) (Backend, error) {
	timeout := defaultExecutionTimeout
	if cfg.Duration > 0 {
		timeout = cfg.Duration + defaultExecutionTimeout
	}
	return &k6Backend{
		cfg:       cfg,
		logger:    logger,
		binary:    "k6",
		scriptDir: filepath.Join("scripts", "k6"),
		timeout:   timeout,
		grace:     defaultTerminationGrace,
	}, nil
}

func (b *k6Backend) Kind() Kind {
	return KindK6
}

func (b *k6Backend) Run(ctx context.Context) (*Result, error) {
	script, err := b.scriptPath()
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "hexbench-k6-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"run",
		"--out", "json=" + intervalsArtifact,
		"--summary-export=" + summaryArtifact,
	}
	if b.cfg.Duration > 0 {
		args = append(args, "--duration", fmt.Sprintf("%ds", int(b.cfg.Duration/time.Second)))
	}
	args = append(args, script)

	cmd := exec.Command(b.binary, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), b.environment()...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	b.logger.Info("launching external runner",
		zap.String("binary", b.binary),
		zap.String("script", script),
		zap.String("work_dir", workDir),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.binary, err)
	}

	b.mu.Lock()
	b.cmd = cmd
	b.mu.Unlock()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case werr := <-waitCh:
		return b.finish(werr, workDir, &stderr), nil

	case <-time.After(b.timeout):
		b.logger.Warn("external runner exceeded timeout", zap.Duration("timeout", b.timeout))
		b.terminate()
		<-waitCh // reap
		return &Result{
			Backend: KindK6,
			Error:   "execution timed out",
			Stderr:  truncateStderr(stderr.Bytes()),
		}, nil

	case <-ctx.Done():
		b.terminate()
		<-waitCh
		if b.wasAborted() {
			return &Result{Backend: KindK6, Error: "execution aborted"}, nil
		}
		return &Result{Backend: KindK6, Error: "execution cancelled: " + ctx.Err().Error()}, nil
	}
}

// Abort requests graceful termination; a force-kill follows if the
// process outlives the grace period.
func (b *k6Backend) Abort() error {
	b.mu.Lock()
	b.aborted = true
	b.mu.Unlock()
	b.terminate()
	return nil
}

func (b *k6Backend) finish(werr error, workDir string, stderr *bytes.Buffer) *Result {
	if b.wasAborted() {
		return &Result{Backend: KindK6, Error: "execution aborted"}
	}
	if werr != nil {
		return &Result{
			Backend: KindK6,
			Error:   fmt.Sprintf("%s failed: %v", b.binary, werr),
			Stderr:  truncateStderr(stderr.Bytes()),
		}
	}

	summary, intervals := parseArtifacts(workDir, b.logger)
	return &Result{
		Success:   true,
		Backend:   KindK6,
		Summary:   summary,
		Intervals: intervals,
	}
}

// terminate escalates SIGTERM to SIGKILL after the grace period. Safe to
// call after the process has already exited.
func (b *k6Backend) terminate() {
	b.mu.Lock()
	cmd := b.cmd
	grace := b.grace
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	go func() {
		time.Sleep(grace)
		_ = cmd.Process.Kill()
	}()
}

func (b *k6Backend) wasAborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

func (b *k6Backend) scriptPath() (string, error) {
	profile := b.cfg.ProfileOrDefault()
	name, ok := profileScripts[profile]
	if !ok {
		return "", fmt.Errorf("no runner script mapped for profile %q", profile)
	}
	path := filepath.Join(b.scriptDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("runner script for profile %q not found at %s", profile, path)
	}
	return filepath.Abs(path)
}

// environment builds the variable set the scripts read. Only the
// parameters of the selected profile are populated.
func (b *k6Backend) environment() []string {
	cfg := b.cfg
	headers, _ := json.Marshal(cfg.Headers)

	env := []string{
		"TARGET_URL=" + cfg.TargetURL,
		"TARGET_METHOD=" + cfg.Method,
		"TARGET_HEADERS=" + string(headers),
		"TARGET_BODY=" + cfg.Body,
		"AUTH_TOKEN=" + cfg.AuthToken,
		fmt.Sprintf("TEST_DURATION=%ds", int(cfg.Duration/time.Second)),
		"MAX_RPS=" + strconv.Itoa(cfg.MaxRPS),
	}

	params := cfg.ProfileParams
	switch cfg.ProfileOrDefault() {
	case config.ProfileRampUp:
		env = append(env,
			"INITIAL_USERS="+strconv.Itoa(params.InitialUsers),
			"TARGET_USERS="+strconv.Itoa(params.TargetUsers),
			fmt.Sprintf("RAMP_DURATION=%d", int(params.RampDuration/time.Second)),
			fmt.Sprintf("HOLD_DURATION=%d", int(params.HoldDuration/time.Second)),
		)
	case config.ProfileSpike:
		env = append(env,
			"BASELINE_USERS="+strconv.Itoa(params.BaselineUsers),
			"SPIKE_USERS="+strconv.Itoa(params.SpikeUsers),
			fmt.Sprintf("SPIKE_DURATION=%d", int(params.SpikeDuration/time.Second)),
			fmt.Sprintf("BASELINE_DURATION=%d", int(params.BaselineDuration/time.Second)),
		)
	case config.ProfileSoak:
		env = append(env,
			"CONCURRENT_USERS="+strconv.Itoa(cfg.ConcurrentUsers),
			fmt.Sprintf("SOAK_DURATION=%d", int(cfg.Duration/time.Second)),
		)
	}

	return env
}

func truncateStderr(data []byte) string {
	if len(data) > maxCapturedStderr {
		data = data[len(data)-maxCapturedStderr:]
	}
	return string(data)
}
