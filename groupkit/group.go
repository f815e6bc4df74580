package groupkit

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/api"
	"github.com/dogmatiq/actd/bootstrap"
	"github.com/dogmatiq/actd/internal/x/grpcx"
	"github.com/dogmatiq/actd/internal/x/loggingx"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Run starts the group process's instantiator and attaches it to the daemon
// that started the process.
//
// It serves requests for new instances until ctx is canceled, then reports to
// the daemon that the group is inactive.
func Run(ctx context.Context, options ...Option) error {
	opts := resolveOptions(options...)

	m, err := bootstrap.Read(opts.Stdin)
	if err != nil {
		return fmt.Errorf("unable to read bootstrap message: %w", err)
	}

	props, _ := ParseProperties(opts.Args)
	logger := loggingx.WithPrefix(opts.Logger, "@%s | ", m.GroupID)

	lis, err := net.Listen("tcp", opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("unable to start gRPC listener: %w", err)
	}

	conn, err := grpc.Dial(
		m.SystemAddress,
		append(
			append(
				[]grpc.DialOption{
					grpc.WithTransportCredentials(insecure.NewCredentials()),
				},
				api.DialOptions()...,
			),
			opts.DialOptions...,
		)...,
	)
	if err != nil {
		lis.Close()
		return fmt.Errorf("unable to dial activation system: %w", err)
	}
	defer conn.Close()

	inst := &instantiator{
		address:     lis.Addr().String(),
		groupID:     m.GroupID,
		incarnation: m.Incarnation,
		properties:  props,
		factories:   opts.Factories,
		logger:      logger,
	}

	server := grpc.NewServer(opts.ServerOptions...)
	api.RegisterInstantiatorServer(server, inst)

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer lis.Close()
		return grpcx.Serve(ctx, lis, server, 0)
	})

	g.Go(func() error {
		mon, err := attach(
			ctx,
			api.NewSystemClient(conn),
			inst,
			m,
			opts,
		)
		if err != nil {
			inst.deactivate()
			return err
		}

		logging.Log(
			logger,
			"incarnation %d attached, serving instantiator on %s",
			m.Incarnation,
			inst.address,
		)

		inst.attached(ctx, mon)
		<-ctx.Done()

		inactive(inst, m, opts, logger)

		return ctx.Err()
	})

	err = g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// attach attaches inst to the activation system, retrying while the system
// is unreachable.
func attach(
	ctx context.Context,
	sys activation.System,
	inst activation.Instantiator,
	m bootstrap.Message,
	opts *options,
) (activation.Monitor, error) {
	counter := backoff.Counter{
		Strategy: opts.AttachBackoff,
	}

	for n := 1; ; n++ {
		mon, err := sys.ActiveGroup(ctx, m.GroupID, inst, m.Incarnation)
		if err == nil {
			return mon, nil
		}

		if !errors.Is(err, activation.ErrUnreachable) || n >= opts.AttachAttempts {
			return nil, fmt.Errorf("unable to attach to activation system: %w", err)
		}

		if err := counter.Sleep(ctx, err); err != nil {
			return nil, err
		}
	}
}

// inactive reports to the daemon that the group is no longer active.
func inactive(
	inst *instantiator,
	m bootstrap.Message,
	opts *options,
	logger logging.Logger,
) {
	mon := inst.deactivate()

	ctx, cancel := linger.ContextWithTimeout(
		context.Background(),
		opts.ReportTimeout,
	)
	defer cancel()

	if err := mon.InactiveGroup(ctx, m.GroupID, m.Incarnation, false); err != nil {
		logging.Log(logger, "unable to report inactive group: %s", err)
		return
	}

	logging.Log(logger, "incarnation %d is inactive", m.Incarnation)
}
