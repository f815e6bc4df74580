package main

import (
	"fmt"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/api"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// dial connects to the daemon described by cfg.
func dial(cfg *config) (*grpc.ClientConn, error) {
	conn, err := grpc.Dial(
		cfg.address(),
		append(
			[]grpc.DialOption{
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			},
			api.DialOptions()...,
		)...,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", cfg.address(), err)
	}

	return conn, nil
}

// withSystem returns a cobra RunE function that calls fn with a client for
// the daemon's activation system.
func withSystem(
	cfg *config,
	fn func(*cobra.Command, *api.SystemClient, []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conn, err := dial(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		return fn(cmd, api.NewSystemClient(conn), args)
	}
}

func newStopCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Shut down a running daemon",
		Args:  cobra.NoArgs,
		RunE: withSystem(cfg, func(cmd *cobra.Command, sys *api.SystemClient, _ []string) error {
			return sys.Shutdown(cmd.Context())
		}),
	}
}

func newGroupCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage activation groups",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <descriptor.toml>",
			Short: "Register a group and print its ID",
			Args:  cobra.ExactArgs(1),
			RunE: withSystem(cfg, func(cmd *cobra.Command, sys *api.SystemClient, args []string) error {
				desc, err := loadGroupDescriptor(args[0])
				if err != nil {
					return err
				}

				id, err := sys.RegisterGroup(cmd.Context(), desc)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "unregister <group-id>",
			Short: "Unregister a group and all of its objects",
			Args:  cobra.ExactArgs(1),
			RunE: withSystem(cfg, func(cmd *cobra.Command, sys *api.SystemClient, args []string) error {
				id, err := activation.ParseGroupID(args[0])
				if err != nil {
					return err
				}

				return sys.UnregisterGroup(cmd.Context(), id)
			}),
		},
	)

	return cmd
}

func newObjectCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Manage activatable objects",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <descriptor.toml>",
			Short: "Register an object and print its ID",
			Args:  cobra.ExactArgs(1),
			RunE: withSystem(cfg, func(cmd *cobra.Command, sys *api.SystemClient, args []string) error {
				desc, err := loadDescriptor(args[0])
				if err != nil {
					return err
				}

				id, err := sys.RegisterObject(cmd.Context(), desc)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "unregister <object-id>",
			Short: "Unregister an object",
			Args:  cobra.ExactArgs(1),
			RunE: withSystem(cfg, func(cmd *cobra.Command, sys *api.SystemClient, args []string) error {
				id, err := activation.ParseObjectID(args[0])
				if err != nil {
					return err
				}

				return sys.UnregisterObject(cmd.Context(), id)
			}),
		},
	)

	return cmd
}

func newActivateCommand(cfg *config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "activate <object-id>",
		Short: "Activate an object and print its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := activation.ParseObjectID(args[0])
			if err != nil {
				return err
			}

			conn, err := dial(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			h, err := api.NewActivatorClient(conn).Activate(cmd.Context(), id, force)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(h))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "activate a new instance even if the object is active")

	return cmd
}
