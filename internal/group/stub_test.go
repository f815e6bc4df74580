package group_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/bootstrap"
	"github.com/dogmatiq/actd/internal/group"
	"github.com/dogmatiq/actd/internal/process/processtest"
)

// instantiatorStub is a test implementation of activation.Instantiator.
type instantiatorStub struct {
	NewInstanceFunc func(context.Context, activation.ObjectID, activation.Descriptor) (activation.Handle, error)

	calls atomic.Int64
}

func (s *instantiatorStub) NewInstance(
	ctx context.Context,
	id activation.ObjectID,
	desc activation.Descriptor,
) (activation.Handle, error) {
	n := s.calls.Add(1)

	if s.NewInstanceFunc != nil {
		return s.NewInstanceFunc(ctx, id, desc)
	}

	return activation.Handle(fmt.Sprintf("%s#%d", id, n)), nil
}

func (s *instantiatorStub) Calls() int {
	return int(s.calls.Load())
}

// indexStub is a test implementation of the Index interface.
type indexStub struct {
	m      sync.Mutex
	groups map[activation.ObjectID]activation.GroupID
}

func (i *indexStub) Put(id activation.ObjectID, g activation.GroupID) {
	i.m.Lock()
	defer i.m.Unlock()

	if i.groups == nil {
		i.groups = map[activation.ObjectID]activation.GroupID{}
	}

	i.groups[id] = g
}

func (i *indexStub) Delete(id activation.ObjectID) {
	i.m.Lock()
	defer i.m.Unlock()

	delete(i.groups, id)
}

func (i *indexStub) Len() int {
	i.m.Lock()
	defer i.m.Unlock()

	return len(i.groups)
}

// attachTo returns a function that causes each launched process to attach
// inst to the entry returned by e once it has read its bootstrap message.
func attachTo(
	e func() *group.Entry,
	inst activation.Instantiator,
) func(*processtest.Process) {
	return func(p *processtest.Process) {
		go func() {
			select {
			case <-p.StdinClosed():
			case <-p.Done():
				return
			}

			m, err := bootstrap.Read(bytes.NewReader(p.Input()))
			if err != nil {
				return
			}

			_ = e().ActiveGroup(inst, m.Incarnation)
		}()
	}
}
