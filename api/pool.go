package api

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/linger"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultCallTimeout is the default timeout for calls to a group process's
// instantiator.
var DefaultCallTimeout = 30 * time.Second

// InstantiatorClient is an activation.Instantiator that calls the instantiator
// of a group process.
type InstantiatorClient struct {
	addr    string
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

var _ Addressable = (*InstantiatorClient)(nil)

// NewInstantiatorClient returns a client for the instantiator served on conn
// at the given address.
func NewInstantiatorClient(addr string, conn grpc.ClientConnInterface) *InstantiatorClient {
	return &InstantiatorClient{addr: addr, conn: conn}
}

// Address returns the address of the group process's instantiator.
func (c *InstantiatorClient) Address() string {
	return c.addr
}

// NewInstance creates a new instance of an object within the group process.
func (c *InstantiatorClient) NewInstance(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Handle, error) {
	ctx, cancel := linger.ContextWithTimeout(ctx, c.timeout, DefaultCallTimeout)
	defer cancel()

	res, err := invoke[handleResponse](
		ctx, c.conn, instantiatorService, "NewInstance",
		&newInstanceRequest{ObjectID: id, Descriptor: desc},
	)
	if err != nil {
		return nil, err
	}

	return res.Handle, nil
}

// InstantiatorPool maintains one client per instantiator address.
//
// Because the same address always yields the same client, two instantiators
// are equal if and only if they are served at the same address.
type InstantiatorPool struct {
	// DialOptions are added to the options used to connect to group
	// processes.
	DialOptions []grpc.DialOption

	// CallTimeout is the timeout for each call to an instantiator. If it is
	// zero, DefaultCallTimeout is used.
	CallTimeout time.Duration

	m       sync.Mutex
	clients map[string]*InstantiatorClient
	conns   []*grpc.ClientConn
}

// Get returns the client for the instantiator at addr.
func (p *InstantiatorPool) Get(addr string) (*InstantiatorClient, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if c, ok := p.clients[addr]; ok {
		return c, nil
	}

	options := append(
		[]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		DialOptions()...,
	)

	conn, err := grpc.Dial(addr, append(options, p.DialOptions...)...)
	if err != nil {
		return nil, err
	}

	c := NewInstantiatorClient(addr, conn)
	c.timeout = p.CallTimeout

	if p.clients == nil {
		p.clients = map[string]*InstantiatorClient{}
	}

	p.clients[addr] = c
	p.conns = append(p.conns, conn)

	return c, nil
}

// Close closes every connection in the pool.
func (p *InstantiatorPool) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	var err error
	for _, conn := range p.conns {
		err = multierr.Append(err, conn.Close())
	}

	p.clients = nil
	p.conns = nil

	return err
}
