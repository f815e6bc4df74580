package group

import (
	"context"
	"errors"
	"sort"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/multierr"
)

// MaxAttempts is the number of times an activation is attempted before it
// fails.
const MaxAttempts = 2

// Activate returns a handle to an active instance of the object with the
// given ID, activating it if necessary.
//
// If force is false and the object already has an instance, its handle is
// returned without contacting the group process.
func (e *Entry) Activate(
	ctx context.Context,
	id activation.ObjectID,
	force bool,
) (h activation.Handle, err error) {
	cached := false
	defer func() {
		e.env.Metrics.Activation(cached, err)
	}()

	var cause error

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		h, cached, err = e.activate(ctx, id, force)
		if err == nil {
			return h, nil
		}

		var stale activation.IncarnationError

		switch {
		case activation.IsNotFound(err):
			return nil, err

		case errors.Is(err, activation.ErrUnreachable):
			cause = err

		case errors.Is(err, activation.ErrNoSuchObject),
			errors.Is(err, activation.ErrInactiveGroup):
			cause = err

		case errors.As(err, &stale):
			cause = err

		case errors.As(err, &activation.RemoteError{}):
			if cause == nil {
				cause = err
			}

		default:
			return nil, activation.ActivationError{
				ObjectID: id,
				Attempts: attempt,
				Cause:    err,
			}
		}

		logging.Debug(
			e.logger,
			"activation attempt %d of object '%s' failed: %s",
			attempt,
			id,
			err,
		)
	}

	return nil, activation.ActivationError{
		ObjectID: id,
		Attempts: MaxAttempts,
		Cause:    cause,
	}
}

// activate makes a single activation attempt.
func (e *Entry) activate(
	ctx context.Context,
	id activation.ObjectID,
	force bool,
) (activation.Handle, bool, error) {
	e.m.Lock()
	o, err := e.object(id)
	e.m.Unlock()

	if err != nil {
		return nil, false, err
	}

	if !force {
		if h := o.handle.Load(); h != nil {
			return *h, true, nil
		}
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.removed.Load() {
		return nil, false, activation.UnknownObjectError{ObjectID: id}
	}

	// Another caller may have activated the object while this one waited.
	if !force {
		if h := o.handle.Load(); h != nil {
			return *h, true, nil
		}
	}

	e.m.Lock()
	desc := o.desc.Clone()
	inst, err := e.instantiator(ctx)
	inc := e.incarnation
	e.m.Unlock()

	if err != nil {
		return nil, false, err
	}

	h, err := inst.NewInstance(ctx, id, desc)

	e.m.Lock()
	defer e.m.Unlock()

	if err != nil {
		if e.incarnation == inc {
			if errors.Is(err, activation.ErrUnreachable) {
				e.inactive(true)
			} else if errors.Is(err, activation.ErrNoSuchObject) ||
				errors.Is(err, activation.ErrInactiveGroup) {
				e.inactive(false)
			}
		}

		return nil, false, err
	}

	if e.incarnation != inc || e.inst != inst {
		return nil, false, activation.IncarnationError{
			GroupID:     e.ID,
			Incarnation: inc,
			Current:     e.incarnation,
		}
	}

	if o.removed.Load() {
		return nil, false, activation.UnknownObjectError{ObjectID: id}
	}

	h = append(activation.Handle(nil), h...)
	o.handle.Store(&h)

	return h, false, nil
}

// RestartServices activates each of the group's objects that is marked for
// restart.
//
// It returns the combined errors of the activations that failed.
func (e *Entry) RestartServices(ctx context.Context) error {
	e.m.Lock()
	var ids []activation.ObjectID
	for id, o := range e.objects {
		if o.desc.Restart {
			ids = append(ids, id)
		}
	}
	e.m.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	var err error

	for _, id := range ids {
		if e.env.ShuttingDown() {
			return multierr.Append(err, activation.ErrShuttingDown)
		}

		_, aerr := e.Activate(ctx, id, true)
		e.env.Metrics.Restart(aerr)

		if aerr != nil {
			logging.Log(e.logger, "unable to restart object '%s': %s", id, aerr)
			err = multierr.Append(err, aerr)
		} else {
			logging.Debug(e.logger, "restarted object '%s'", id)
		}
	}

	return err
}
