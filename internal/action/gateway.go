// Package action performs the two side-effecting operations the panic
// button exposes, lock and verify, either for real by running the
// operator's command or simulated through a mock policy.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/msfocb/panicbutton/internal/errors"
	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/monitoring"
)

// Kind identifies an action.
type Kind int

const (
	Lock Kind = iota
	Verify
)

// String returns the lower-case name used in routes, logs and metrics.
func (k Kind) String() string {
	switch k {
	case Lock:
		return "lock"
	case Verify:
		return "verify"
	default:
		return "unknown"
	}
}

// Status values reported to callers.
const (
	StatusOK  = "OK"
	StatusNOK = "NOK"
)

// Status maps a boolean outcome to its wire value.
func Status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusNOK
}

// Outcome is the result of one Perform call. Output is for operator logs
// and is never sent to the caller.
type Outcome struct {
	Success bool
	Output  string
	Err     error
}

// Status returns the wire status for the outcome.
func (o Outcome) Status() string {
	return Status(o.Success)
}

// Commands binds each action kind to its command string.
type Commands struct {
	Lock   string
	Verify string
}

// For returns the command bound to kind.
func (c Commands) For(kind Kind) (string, error) {
	switch kind {
	case Lock:
		return c.Lock, nil
	case Verify:
		return c.Verify, nil
	default:
		return "", fmt.Errorf("unknown action kind %d", int(kind))
	}
}

// Options configures a Gateway.
type Options struct {
	Commands Commands
	Runner   CommandRunner
	Mock     MockPolicy
	// Timeout bounds a real-mode command. Zero means no bound.
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *monitoring.Metrics
}

// Gateway runs actions. It holds only immutable configuration and is safe
// for concurrent use.
type Gateway struct {
	commands Commands
	runner   CommandRunner
	mock     MockPolicy
	timeout  time.Duration
	logger   logging.Logger
	metrics  *monitoring.Metrics
	errs     *errors.ErrorHandler
}

// NewGateway creates a gateway. Runner defaults to ExecRunner and Mock to
// the random policy.
func NewGateway(opts Options) *Gateway {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	if opts.Mock == nil {
		opts.Mock = NewRandomPolicy(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	logger := opts.Logger.WithComponent("gateway")

	return &Gateway{
		commands: opts.Commands,
		runner:   opts.Runner,
		mock:     opts.Mock,
		timeout:  opts.Timeout,
		logger:   logger,
		metrics:  opts.Metrics,
		errs:     errors.NewErrorHandler(logger),
	}
}

// Perform executes kind once. In mock mode the mock policy decides and the
// runner is never touched. In real mode the bound command runs to
// completion; success means exit code zero. Launch failures are logged and
// folded into a failed outcome so one bad request never takes the service
// down.
//
// The command runs on a context detached from ctx: a caller disconnecting
// does not abort a lock that has already started.
func (g *Gateway) Perform(ctx context.Context, kind Kind, mock bool) Outcome {
	start := time.Now()

	if mock {
		g.logger.Info(ctx, "Mock mode, producing a response from policy",
			"action", kind.String(), "policy", g.mock.Name())
		outcome := Outcome{Success: g.mock.Outcome()}
		g.metrics.ActionPerformed(kind.String(), "mock", resultLabel(outcome), time.Since(start))
		return outcome
	}

	command, err := g.commands.For(kind)
	if err != nil {
		outcome := Outcome{Err: errors.NewInternalError(errors.ErrCodeInternalError, "unknown action", err)}
		g.errs.Handle(ctx, outcome.Err)
		return outcome
	}

	g.logger.Info(ctx, "Real mode, running command", "action", kind.String())

	runCtx := context.WithoutCancel(ctx)
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, g.timeout)
		defer cancel()
	}

	exit, err := g.runner.Run(runCtx, command)
	if err != nil {
		outcome := Outcome{Err: errors.NewActionLaunchFailed(kind.String(), command, err)}
		g.errs.Handle(ctx, outcome.Err)
		g.metrics.ActionPerformed(kind.String(), "real", "launch_failed", time.Since(start))
		return outcome
	}

	outcome := Outcome{
		Success: exit.Success(),
		Output:  string(exit.Output),
	}

	g.logger.Info(ctx, "Command finished",
		"action", kind.String(),
		"exit_code", exit.ExitCode,
		"signaled", exit.Signaled,
		"duration", time.Since(start).String(),
		"output", logging.TruncateForLog(outcome.Output))

	if exit.OutputIncomplete {
		g.logger.Warn(ctx, nil, "Command left output pipes open, output may be incomplete",
			"action", kind.String())
	}

	if !outcome.Success {
		outcome.Err = errors.NewActionFailed(kind.String(), exit.ExitCode, exit.Signaled)
		g.errs.Handle(ctx, outcome.Err)
	}

	g.metrics.ActionPerformed(kind.String(), "real", resultLabel(outcome), time.Since(start))
	return outcome
}

func resultLabel(o Outcome) string {
	if o.Success {
		return "ok"
	}
	return "nok"
}
