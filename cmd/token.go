package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msfocb/panicbutton/internal/auth"
)

var tokenAt int64

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the access key for the current time",
	Long: `Print the rolling access key the server accepts right now.

The key changes every two seconds and stays valid for the following
window as well, so a printed key is usable for two to four seconds.

Examples:
  panicbutton token
  curl -X POST "http://localhost:8080/api/lock?key=$(panicbutton token)&mock=true"
  panicbutton token --at 1700000000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if tokenAt != 0 {
			now = time.Unix(tokenAt, 0)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), auth.Token(now))
		return err
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Int64Var(&tokenAt, "at", 0, "unix time to compute the key for (default now)")
}
