package api_test

import (
	"context"
	"net"

	"github.com/dogmatiq/actd/activation"
	. "github.com/dogmatiq/actd/api"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type activatorStub struct {
	ActivateFunc func(context.Context, activation.ObjectID, bool) (activation.Handle, error)
}

func (s *activatorStub) Activate(ctx context.Context, id activation.ObjectID, force bool) (activation.Handle, error) {
	return s.ActivateFunc(ctx, id, force)
}

type systemStub struct {
	activation.System

	RegisterGroupFunc func(context.Context, activation.GroupDescriptor) (activation.GroupID, error)
	ActiveGroupFunc   func(context.Context, activation.GroupID, activation.Instantiator, uint64) (activation.Monitor, error)
	ShutdownFunc      func(context.Context) error
}

func (s *systemStub) RegisterGroup(ctx context.Context, desc activation.GroupDescriptor) (activation.GroupID, error) {
	return s.RegisterGroupFunc(ctx, desc)
}

func (s *systemStub) ActiveGroup(
	ctx context.Context,
	id activation.GroupID,
	inst activation.Instantiator,
	inc uint64,
) (activation.Monitor, error) {
	return s.ActiveGroupFunc(ctx, id, inst, inc)
}

func (s *systemStub) Shutdown(ctx context.Context) error {
	return s.ShutdownFunc(ctx)
}

type monitorStub struct {
	activation.Monitor

	InactiveGroupFunc func(context.Context, activation.GroupID, uint64, bool) error
}

func (s *monitorStub) InactiveGroup(
	ctx context.Context,
	id activation.GroupID,
	inc uint64,
	crashed bool,
) error {
	return s.InactiveGroupFunc(ctx, id, inc, crashed)
}

type instantiatorStub struct {
	NewInstanceFunc func(context.Context, activation.ObjectID, activation.Descriptor) (activation.Handle, error)
}

func (s *instantiatorStub) NewInstance(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Handle, error) {
	return s.NewInstanceFunc(ctx, id, desc)
}

// listen starts s on an in-memory listener and returns options that dial it.
func listen(s *grpc.Server) []grpc.DialOption {
	lis := bufconn.Listen(1024 * 1024)

	go s.Serve(lis)

	return []grpc.DialOption{
		grpc.WithContextDialer(
			func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			},
		),
	}
}

// dial returns a connection to the server reached by options.
func dial(options []grpc.DialOption) *grpc.ClientConn {
	options = append(
		options,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)

	conn, err := grpc.Dial("bufnet", append(options, DialOptions()...)...)
	Expect(err).ShouldNot(HaveOccurred())

	return conn
}

// addrStub is a net.Addr with an arbitrary network and address.
type addrStub struct {
	network, address string
}

func (a addrStub) Network() string { return a.network }
func (a addrStub) String() string  { return a.address }
