package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/dogmatiq/actd"
	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// runDaemon runs the activation daemon until ctx is canceled or the daemon
// is shut down.
func runDaemon(ctx context.Context, cfg *config) error {
	policy, err := execPolicy(cfg)
	if err != nil {
		return err
	}

	logger := &logging.StandardLogger{
		Target:       log.New(os.Stderr, "", log.LstdFlags),
		CaptureDebug: cfg.Verbose,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d := actd.New(
		actd.WithLogDirectory(cfg.LogDirectory),
		actd.WithSnapshotInterval(cfg.SnapshotInterval),
		actd.WithGroupThrottle(cfg.GroupThrottle),
		actd.WithExecTimeout(cfg.ExecTimeout),
		actd.WithGroupTimeout(cfg.GroupTimeout),
		actd.WithGroupCommand(append([]string{cfg.GroupCommand}, cfg.ChildOptions...)...),
		actd.WithExecPolicy(policy),
		actd.WithDebugExec(cfg.DebugExec),
		actd.WithMetrics(reg),
		actd.WithLogger(logger),
		actd.WithNetworking(
			actd.WithListenAddress(net.JoinHostPort("", strconv.Itoa(cfg.Port))),
		),
	)

	if cfg.MetricsAddress == "" {
		return d.Run(ctx)
	}

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.Run(ctx)
	})

	g.Go(func() error {
		return serveMetrics(ctx, cfg.MetricsAddress, reg, logger, d.Done())
	})

	err = g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// execPolicy returns the exec policy described by cfg.
func execPolicy(cfg *config) (activation.ExecPolicy, error) {
	switch cfg.ExecPolicy {
	case "default", "":
		return &activation.PermissionPolicy{
			Commands: cfg.AllowCommands,
			Options:  cfg.AllowOptions,
		}, nil
	case "none":
		return activation.AllowAll, nil
	default:
		return nil, fmt.Errorf("unrecognized exec policy %q", cfg.ExecPolicy)
	}
}
