package cmd

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/msfocb/panicbutton/internal/config"
)

// configFlag ties a command-line flag to its viper key. Flag names keep
// underscores so existing deployment scripts continue to work; see
// expandListFlags for the space-separated host list form.
type configFlag struct {
	name string
	key  string
}

var configFlags = []configFlag{
	{"listen_port", config.KeyListenPort},
	{"host", config.KeyHost},
	{"static_dir", config.KeyStaticDir},
	{"allowed_origins", config.KeyAllowedOrigins},
	{"max_connections", config.KeyMaxConnections},
	{"rate_limit", config.KeyRateLimit},
	{"rate_burst", config.KeyRateBurst},
	{"lock_script", config.KeyLockScript},
	{"verify_script", config.KeyVerifyScript},
	{"command_timeout", config.KeyCommandTimeout},
	{"disable_targets", config.KeyDisableTargets},
	{"poll_interval", config.KeyPollInterval},
	{"lock_retry_max_count", config.KeyLockRetryMaxCount},
	{"verify_retry_max_count", config.KeyVerifyRetryMaxCount},
	{"mock_policy", config.KeyMockPolicy},
	{"mock_seed", config.KeyMockSeed},
	{"log-level", config.KeyLogLevel},
	{"log-format", config.KeyLogFormat},
}

// addConfigFlags registers the service flags on fs. Defaults live in
// config.SetDefaults, so the flag defaults here are only shown in help.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.Int("listen_port", 0, "port to listen on (required)")
	fs.String("host", "", "address to bind to (default all interfaces)")
	fs.String("static_dir", config.DefaultStaticDir, "directory holding index.html and assets")
	fs.StringSlice("allowed_origins", []string{"*"}, "CORS origins allowed to call the API")
	fs.Int("max_connections", 0, "cap on concurrent connections (0 = unlimited)")
	fs.Float64("rate_limit", 0, "requests per second per client on action routes (0 = off)")
	fs.Int("rate_burst", config.DefaultRateBurst, "burst allowance when rate_limit is set")
	fs.String("lock_script", "", "command run for a lock request (required)")
	fs.String("verify_script", "", "command run for a verify request (required)")
	fs.Duration("command_timeout", 0, "kill a command running longer than this (0 = never)")
	fs.StringSlice("disable_targets", nil, "hosts shown on the control panel (required, may be empty)")
	fs.Int("poll_interval", config.DefaultPollInterval, "seconds the panel waits between retries")
	fs.Int("lock_retry_max_count", config.DefaultLockRetryMaxCount, "lock attempts the panel makes")
	fs.Int("verify_retry_max_count", config.DefaultVerifyRetryMaxCount, "verify attempts the panel makes")
	fs.String("mock_policy", "random", "outcome of mock requests (random, success)")
	fs.Uint64("mock_seed", 0, "seed for the random mock policy (0 = time based)")
}

// bindConfigFlags binds fs to v. Only flags the user actually set override
// the file and environment. Flags missing from fs are skipped.
func bindConfigFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, f := range configFlags {
		flag := fs.Lookup(f.name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(f.key, flag); err != nil {
			return err
		}
	}
	return nil
}

// listFlags accept their values as separate words as well as one comma
// list, and may be given with no value at all.
var listFlags = []string{"disable_targets"}

// expandListFlags rewrites "--disable_targets a b c" as
// "--disable_targets=a,b,c" and a bare "--disable_targets" as
// "--disable_targets=" so pflag binds every host and accepts an empty list.
// Collection stops at the next flag or at "--".
func expandListFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if !strings.HasPrefix(arg, "--") || !lo.Contains(listFlags, arg[2:]) {
			out = append(out, arg)
			continue
		}

		var values []string
		for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			values = append(values, args[i])
		}
		out = append(out, arg+"="+strings.Join(values, ","))
	}
	return out
}
