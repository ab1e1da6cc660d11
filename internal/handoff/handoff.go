// Package handoff covers the boundary after acceptance: invoking the
// CONFLUENCE workflow on a synthesized configuration and locating the
// outputs a finished run leaves behind.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

// Directive describes one accepted configuration ready for execution.
type Directive struct {
	// ConfigPath is the synthesized YAML file.
	ConfigPath string

	// DataDir is the CONFLUENCE data root containing domain directories.
	DataDir string

	// DomainName and ExperimentID match the stamps in the YAML.
	DomainName   string
	ExperimentID string

	// Model is the configured hydrological model family.
	Model string
}

// RunReport is the outcome of one CONFLUENCE invocation.
type RunReport struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration_ns"`
}

// outputTail caps how much combined output a report retains.
const outputTail = 4096

// Runner executes the CONFLUENCE workflow as a subprocess.
type Runner struct {
	binary string
	log    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBinary overrides the CONFLUENCE executable path.
func WithBinary(path string) RunnerOption {
	return func(r *Runner) { r.binary = path }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a Runner. The default binary is "confluence" from
// PATH.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{binary: "confluence", log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs the workflow for a config file and reports the outcome.
// A non-zero exit is returned as an error alongside the report so
// callers can log the captured output.
func (r *Runner) Execute(ctx context.Context, configPath string) (*RunReport, error) {
	cmd := exec.CommandContext(ctx, r.binary, "--config", configPath)
	r.log.Info("running CONFLUENCE", "command", cmd.String())

	start := time.Now()
	out, err := cmd.CombinedOutput()
	report := &RunReport{
		Command:  cmd.String(),
		Output:   tail(string(out)),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			report.ExitCode = exitErr.ExitCode()
			return report, fmt.Errorf("handoff: CONFLUENCE exited with code %d", report.ExitCode)
		}
		return report, fmt.Errorf("handoff: run CONFLUENCE: %w", err)
	}

	r.log.Info("CONFLUENCE run complete", "duration", report.Duration)
	return report, nil
}

func tail(s string) string {
	if len(s) <= outputTail {
		return s
	}
	return s[len(s)-outputTail:]
}

// ResultSet points at the outputs a completed run leaves on disk.
type ResultSet struct {
	SimulationDir string `json:"simulation_dir"`

	// Streamflow is the routed streamflow output, when the model has a
	// known layout.
	Streamflow string `json:"streamflow,omitempty"`

	// StateDir holds model state files, when the model produces them.
	StateDir string `json:"state_dir,omitempty"`
}

// Locate maps a directive to the run's expected output locations. The
// layout follows the framework's domain_<name>/simulations/<experiment>
// convention; models without a known layout get the simulation
// directory only.
func Locate(d Directive) *ResultSet {
	simDir := filepath.Join(d.DataDir, "domain_"+d.DomainName, "simulations", d.ExperimentID)
	rs := &ResultSet{SimulationDir: simDir}

	switch d.Model {
	case "SUMMA":
		rs.Streamflow = filepath.Join(simDir, "mizuRoute", d.ExperimentID+".nc")
		rs.StateDir = filepath.Join(simDir, "SUMMA", "stateFiles")
	case "MESH":
		rs.Streamflow = filepath.Join(simDir, "MESH", d.ExperimentID+".nc")
	}

	return rs
}
