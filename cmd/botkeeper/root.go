package main

import (
	"time"

	"github.com/spf13/cobra"
)

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
}

// RemoteFlags select a running `botkeeper serve` instead of the local system.
type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// PsFlags holds flags for the ps command.
type PsFlags struct {
	RemoteFlags
	JSON bool
	User string
	All  bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	checkFlags := &RemoteFlags{}

	root := createRootCommand(globalFlags, checkFlags)
	root.AddCommand(
		createCheckCommand(globalFlags, checkFlags),
		createWatchCommand(globalFlags),
		createServeCommand(globalFlags),
		createStatusCommand(&RemoteFlags{}),
		createPsCommand(globalFlags, &PsFlags{}),
	)
	return root
}

func createRootCommand(flags *GlobalFlags, checkFlags *RemoteFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "botkeeper",
		Short: "Keep a bot process alive",
		Long: `botkeeper checks whether the watched program is running under the
configured user and starts it, detached, when it is not.

Run from cron for one-shot checks, or use watch/serve to keep checking.

Examples:
  botkeeper                          # one check, same as "botkeeper check"
  botkeeper --config botkeeper.toml watch
  botkeeper serve                    # watch plus HTTP status and /metrics
  botkeeper ps                       # show matching processes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, flags, checkFlags)
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "running botkeeper serve URL (e.g. http://host:9090)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}
