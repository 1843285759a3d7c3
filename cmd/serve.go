package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msfocb/panicbutton/internal/action"
	"github.com/msfocb/panicbutton/internal/auth"
	"github.com/msfocb/panicbutton/internal/config"
	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/monitoring"
	"github.com/msfocb/panicbutton/internal/server"
	"github.com/msfocb/panicbutton/internal/validation"
)

// maxHealthyGoroutines is generous: each in-flight request holds one and a
// slow lock command can pin many.
const maxHealthyGoroutines = 10000

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the control panel and API server",
	Long: `Start the HTTP server that hosts the control panel and the lock and
verify API.

Examples:
  panicbutton serve --listen_port 8080 --lock_script /usr/local/bin/lock \
    --verify_script /usr/local/bin/verify --disable_targets a b
  panicbutton serve --config /etc/panicbutton.yml
  PANIC_BUTTON_SERVER_LISTEN_PORT=9000 panicbutton serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	srv, err := buildServer(cfg, logger, monitoring.NewMetrics())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warnCommandLines(ctx, logger, cfg)

	logger.Info(ctx, "Starting panic button server",
		"addr", cfg.Addr(),
		"targets", len(cfg.Publish.DisableTargets),
		"mock_policy", cfg.Mock.Policy)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info(context.Background(), "Server stopped")
	return nil
}

// warnCommandLines logs quoting in the configured commands, which reaches
// the program unchanged.
func warnCommandLines(ctx context.Context, logger logging.Logger, cfg *config.Config) {
	for name, command := range map[string]string{
		"lock_script":   cfg.Actions.LockScript,
		"verify_script": cfg.Actions.VerifyScript,
	} {
		for _, warning := range validation.CommandLineWarnings(command) {
			logger.Warn(ctx, nil, "Command string "+warning, "parameter", name)
		}
	}
}

// loadConfig binds the command's flags and loads the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.GetViper()
	if err := bindConfigFlags(v, cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

// buildServer wires the validator, gateway and HTTP server together.
func buildServer(cfg *config.Config, logger logging.Logger, metrics *monitoring.Metrics) (*server.Server, error) {
	policy, err := action.NewMockPolicy(cfg.Mock.Policy, cfg.Mock.Seed)
	if err != nil {
		return nil, err
	}

	gateway := action.NewGateway(action.Options{
		Commands: action.Commands{
			Lock:   cfg.Actions.LockScript,
			Verify: cfg.Actions.VerifyScript,
		},
		Runner:  action.NewExecRunner(),
		Mock:    policy,
		Timeout: cfg.Actions.CommandTimeout,
		Logger:  logger,
		Metrics: metrics,
	})

	health := monitoring.NewHealthMonitor(logger)
	health.RegisterCheck(monitoring.CommandHealthChecker("lock_command", cfg.Actions.LockScript))
	health.RegisterCheck(monitoring.CommandHealthChecker("verify_command", cfg.Actions.VerifyScript))
	health.RegisterCheck(monitoring.StaticDirHealthChecker(cfg.Server.StaticDir))
	health.RegisterCheck(monitoring.GoroutineHealthChecker(maxHealthyGoroutines))

	return server.New(server.Dependencies{
		Config:  cfg,
		Gateway: gateway,
		Checker: auth.NewValidator(auth.RealClock()),
		Logger:  logger,
		Metrics: metrics,
		Health:  health,
	}), nil
}
