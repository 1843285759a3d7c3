// Package cmd provides the command-line interface for the panic button
// service.
//
// Configuration System:
//
//	Every setting can come from several sources, highest priority first:
//	1. Command-line flags (--listen_port, --lock_script, ...)
//	2. Environment variables with the PANIC_BUTTON_ prefix, using the
//	   <SECTION>_<OPTION> pattern (PANIC_BUTTON_ACTIONS_LOCK_SCRIPT)
//	3. A YAML file named by --config or PANIC_BUTTON_CONFIG_FILE, or
//	   .panicbutton.yml in the working directory
//	4. Built-in defaults
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PANIC_BUTTON"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panicbutton",
	Short: "Remote lock-down control plane for a fleet of machines",
	Long: `panicbutton serves a control panel and a small HTTP API that lets an
operator trigger a lock-down of a fleet of machines and verify that it
took effect.

Both actions are guarded by a rolling key derived from the current time,
and both can be simulated with mock=true to rehearse without side effects.

Quick Start:
  panicbutton serve --listen_port 8080 \
    --lock_script /usr/local/bin/fleet-lock \
    --verify_script /usr/local/bin/fleet-verify \
    --disable_targets laptop-1,laptop-2
  panicbutton token               Print the key valid right now
  panicbutton config show         Print the resolved configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	rootCmd.SetArgs(expandListFlags(os.Args[1:]))
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .panicbutton.yml, can also use PANIC_BUTTON_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig points viper at the config file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(envPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".panicbutton")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing default file is fine. Anything else is reported but not
	// fatal here; config.Load decides whether what remains is usable.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}
