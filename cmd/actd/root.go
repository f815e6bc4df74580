package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand returns the actd command, which runs the daemon.
func newRootCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actd",
		Short: "Run the activation daemon",
		Long: `actd runs the activation daemon, which starts group processes on demand
and activates objects within them.

Settings are read from ACTD_* environment variables and may be overridden by
flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.IntVar(&cfg.Port, "port", cfg.Port, "TCP port of the daemon")
	pf.StringVar(&cfg.Host, "host", cfg.Host, "host of the daemon, used by the client commands")

	f := cmd.Flags()
	f.StringVar(&cfg.LogDirectory, "log", cfg.LogDirectory, "directory containing the daemon's log")
	f.StringVar(&cfg.GroupCommand, "group-command", cfg.GroupCommand, "command used to start group processes")
	f.StringArrayVarP(&cfg.ChildOptions, "child-option", "C", cfg.ChildOptions, "argument passed to every group process")
	f.StringVar(&cfg.ExecPolicy, "exec-policy", cfg.ExecPolicy, `exec policy, either "default" or "none"`)
	f.StringArrayVar(&cfg.AllowCommands, "allow-command", cfg.AllowCommands, "command path permitted by the default exec policy")
	f.StringArrayVar(&cfg.AllowOptions, "allow-option", cfg.AllowOptions, "option permitted by the default exec policy")
	f.BoolVar(&cfg.DebugExec, "debug-exec", cfg.DebugExec, "log the command line of each group process")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "log debug messages")
	f.StringVar(&cfg.MetricsAddress, "metrics-address", cfg.MetricsAddress, "address of the Prometheus metrics endpoint")
	f.IntVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "number of log records between snapshots")
	f.IntVar(&cfg.GroupThrottle, "group-throttle", cfg.GroupThrottle, "number of group processes that may start at once")
	f.DurationVar(&cfg.ExecTimeout, "exec-timeout", cfg.ExecTimeout, "time a group process has to attach after it starts")
	f.DurationVar(&cfg.GroupTimeout, "group-timeout", cfg.GroupTimeout, "time a group process has to exit before it is killed")

	cmd.AddCommand(
		newStopCommand(cfg),
		newGroupCommand(cfg),
		newObjectCommand(cfg),
		newActivateCommand(cfg),
	)

	return cmd
}
