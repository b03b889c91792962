package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nvandessel/vampireman/internal/constants"
)

// CommandRunner starts a process in dir and waits for it to finish.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. Nil writers discard output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements CommandRunner. The process is killed when ctx is done.
func (e ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return cmd.Run()
}

// Options configures how the simulator is invoked.
type Options struct {
	// Mpirun wraps the simulator in "mpirun -n Procs".
	Mpirun bool
	Procs  int

	// Mute passes -screen_output off to the simulator.
	Mute bool

	// Force re-simulates directories that already hold results.
	Force bool

	// Binary overrides the simulator executable. Defaults to "pflotran".
	Binary string
}

// Result describes the outcome for one datapoint directory.
type Result struct {
	Dir      string        `json:"dir"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Runner simulates datapoint directories one after another.
type Runner struct {
	cmd    CommandRunner
	opts   Options
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger *slog.Logger, opts Options, cmd CommandRunner) *Runner {
	if opts.Binary == "" {
		opts.Binary = constants.SimulatorBinary
	}
	if opts.Procs < 1 {
		opts.Procs = constants.DefaultMpirunProcs
	}
	return &Runner{cmd: cmd, opts: opts, logger: logger}
}

// Command returns the executable and arguments run in every directory.
func (r *Runner) Command() (string, []string) {
	var args []string
	if r.opts.Mute {
		args = append(args, "-screen_output", "off")
	}
	if !r.opts.Mpirun {
		return r.opts.Binary, args
	}
	return constants.MpirunBinary, append([]string{"-n", strconv.Itoa(r.opts.Procs), r.opts.Binary}, args...)
}

// Run simulates every directory in order. It stops at the first failure or
// when ctx is cancelled and returns the results gathered so far.
func (r *Runner) Run(ctx context.Context, dirs []string) ([]Result, error) {
	name, args := r.Command()
	results := make([]Result, 0, len(dirs))

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("simulation interrupted: %w", err)
		}

		if !r.opts.Force && Completed(dir) {
			r.logger.Info("skipping simulated datapoint", "dir", dir)
			results = append(results, Result{Dir: dir, Skipped: true})
			continue
		}

		r.logger.Info("simulating datapoint", "dir", dir)
		r.logger.Debug("simulator command", "name", name, "args", args)
		start := time.Now()
		if err := r.cmd.Run(ctx, dir, name, args...); err != nil {
			return results, fmt.Errorf("simulating %s: %w", dir, err)
		}
		elapsed := time.Since(start)
		r.logger.Debug("datapoint simulated", "dir", dir, "duration", elapsed)
		results = append(results, Result{Dir: dir, Duration: elapsed})
	}

	return results, nil
}

// Completed reports whether dir already holds simulator output and results.
func Completed(dir string) bool {
	for _, f := range []string{constants.PflotranOutputFile, constants.PflotranResultFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}
