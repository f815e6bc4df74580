package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// config is the configuration of the actd command, populated from ACTD_*
// environment variables and overridden by flags.
type config struct {
	// Port is the TCP port on which the daemon listens.
	Port int `env:"PORT" envDefault:"1098"`

	// Host is the address of the daemon used by the client commands.
	Host string `env:"HOST" envDefault:"127.0.0.1"`

	// LogDirectory contains the daemon's log and snapshot files.
	LogDirectory string `env:"LOG" envDefault:"log"`

	// GroupCommand is the command used to start group processes.
	GroupCommand string `env:"GROUP_COMMAND" envDefault:"actd-group"`

	// ChildOptions are arguments passed to every group process.
	ChildOptions []string `env:"CHILD_OPTIONS" envSeparator:","`

	// ExecPolicy is either "default", which allows only the commands and
	// options that are explicitly permitted, or "none".
	ExecPolicy string `env:"EXEC_POLICY" envDefault:"default"`

	// AllowCommands and AllowOptions are the patterns permitted by the
	// default exec policy.
	AllowCommands []string `env:"ALLOW_COMMANDS" envSeparator:","`
	AllowOptions  []string `env:"ALLOW_OPTIONS" envSeparator:","`

	DebugExec bool `env:"DEBUG_EXEC"`
	Verbose   bool `env:"VERBOSE"`

	// MetricsAddress is the address of the HTTP server that serves
	// Prometheus metrics. Metrics are not served if it is empty.
	MetricsAddress string `env:"METRICS_ADDRESS"`

	SnapshotInterval int           `env:"SNAPSHOT_INTERVAL" envDefault:"200"`
	GroupThrottle    int           `env:"GROUP_THROTTLE" envDefault:"3"`
	ExecTimeout      time.Duration `env:"EXEC_TIMEOUT" envDefault:"30s"`
	GroupTimeout     time.Duration `env:"GROUP_TIMEOUT" envDefault:"60s"`
}

// loadConfig loads the configuration from the environment.
func loadConfig() (*config, error) {
	cfg := &config{}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ACTD_"}); err != nil {
		return nil, fmt.Errorf("unable to parse environment: %w", err)
	}

	return cfg, nil
}

// address returns the address of the daemon.
func (c *config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
