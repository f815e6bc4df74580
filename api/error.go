package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dogmatiq/actd/activation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// errorTrailer is the trailer key that carries the details of an error
// returned by an activation service.
const errorTrailer = "actd-error-bin"

// wireError is the encoding of an error in the error trailer.
type wireError struct {
	Kind        string
	Message     string              `json:",omitempty"`
	ObjectID    activation.ObjectID `json:",omitempty"`
	GroupID     activation.GroupID  `json:",omitempty"`
	Incarnation uint64              `json:",omitempty"`
	Current     uint64              `json:",omitempty"`
	Attempts    int                 `json:",omitempty"`
	Reason      string              `json:",omitempty"`
	Argv        []string            `json:",omitempty"`
	Cause       *wireError          `json:",omitempty"`
}

var sentinels = map[string]error{
	"shutting-down":        activation.ErrShuttingDown,
	"group-already-active": activation.ErrGroupAlreadyActive,
	"group-not-creating":   activation.ErrGroupNotCreating,
	"unreachable":          activation.ErrUnreachable,
	"no-such-object":       activation.ErrNoSuchObject,
	"inactive-group":       activation.ErrInactiveGroup,
}

// marshalError returns the wire representation of err.
func marshalError(err error) *wireError {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case activation.UnknownObjectError:
		return &wireError{Kind: "unknown-object", ObjectID: e.ObjectID}
	case activation.UnknownGroupError:
		return &wireError{Kind: "unknown-group", GroupID: e.GroupID}
	case activation.IncarnationError:
		return &wireError{
			Kind:        "incarnation",
			GroupID:     e.GroupID,
			Incarnation: e.Incarnation,
			Current:     e.Current,
		}
	case activation.InvalidDescriptorError:
		return &wireError{Kind: "invalid-descriptor", ObjectID: e.ObjectID, Reason: e.Reason}
	case activation.ExecDeniedError:
		return &wireError{Kind: "exec-denied", Argv: e.Argv, Reason: e.Reason}
	case activation.SpawnError:
		return &wireError{Kind: "spawn", GroupID: e.GroupID, Cause: marshalError(e.Cause)}
	case activation.TimeoutError:
		return &wireError{Kind: "timeout", GroupID: e.GroupID}
	case activation.ActivationError:
		return &wireError{
			Kind:     "activation",
			ObjectID: e.ObjectID,
			Attempts: e.Attempts,
			Cause:    marshalError(e.Cause),
		}
	case activation.RemoteError:
		return &wireError{Kind: "remote", Cause: marshalError(e.Cause)}
	case activation.LogWriteError:
		return &wireError{Kind: "log-write", Cause: marshalError(e.Cause)}
	case activation.SnapshotError:
		return &wireError{Kind: "snapshot", Cause: marshalError(e.Cause)}
	}

	for k, s := range sentinels {
		if errors.Is(err, s) {
			return &wireError{Kind: k}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &wireError{Kind: "deadline-exceeded", Message: err.Error()}
	}

	if errors.Is(err, context.Canceled) {
		return &wireError{Kind: "canceled", Message: err.Error()}
	}

	return &wireError{Kind: "error", Message: err.Error()}
}

// unmarshalError returns the error described by w.
func unmarshalError(w *wireError) error {
	if w == nil {
		return nil
	}

	if s, ok := sentinels[w.Kind]; ok {
		return s
	}

	switch w.Kind {
	case "unknown-object":
		return activation.UnknownObjectError{ObjectID: w.ObjectID}
	case "unknown-group":
		return activation.UnknownGroupError{GroupID: w.GroupID}
	case "incarnation":
		return activation.IncarnationError{
			GroupID:     w.GroupID,
			Incarnation: w.Incarnation,
			Current:     w.Current,
		}
	case "invalid-descriptor":
		return activation.InvalidDescriptorError{ObjectID: w.ObjectID, Reason: w.Reason}
	case "exec-denied":
		return activation.ExecDeniedError{Argv: w.Argv, Reason: w.Reason}
	case "spawn":
		return activation.SpawnError{GroupID: w.GroupID, Cause: unmarshalError(w.Cause)}
	case "timeout":
		return activation.TimeoutError{GroupID: w.GroupID}
	case "activation":
		return activation.ActivationError{
			ObjectID: w.ObjectID,
			Attempts: w.Attempts,
			Cause:    unmarshalError(w.Cause),
		}
	case "remote":
		return activation.RemoteError{Cause: unmarshalError(w.Cause)}
	case "log-write":
		return activation.LogWriteError{Cause: unmarshalError(w.Cause)}
	case "snapshot":
		return activation.SnapshotError{Cause: unmarshalError(w.Cause)}
	case "deadline-exceeded":
		return fmt.Errorf("%w (remote)", context.DeadlineExceeded)
	case "canceled":
		return fmt.Errorf("%w (remote)", context.Canceled)
	default:
		return errors.New(w.Message)
	}
}

// toStatus converts an error returned by a service implementation into a
// gRPC status error that carries the error's details in a trailer.
func toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	data, merr := json.Marshal(marshalError(err))
	if merr != nil {
		return status.Error(codes.Internal, err.Error())
	}

	if terr := grpc.SetTrailer(ctx, metadata.Pairs(errorTrailer, string(data))); terr != nil {
		return status.Error(codes.Internal, err.Error())
	}

	return status.Error(errorCode(err), err.Error())
}

// errorCode returns the gRPC status code that best describes err.
func errorCode(err error) codes.Code {
	switch {
	case activation.IsNotFound(err),
		errors.Is(err, activation.ErrNoSuchObject):
		return codes.NotFound
	case errors.Is(err, activation.ErrShuttingDown):
		return codes.Aborted
	case errors.Is(err, activation.ErrGroupAlreadyActive):
		return codes.AlreadyExists
	case errors.As(err, &activation.IncarnationError{}),
		errors.Is(err, activation.ErrGroupNotCreating),
		errors.Is(err, activation.ErrInactiveGroup):
		return codes.FailedPrecondition
	case errors.As(err, &activation.InvalidDescriptorError{}):
		return codes.InvalidArgument
	case errors.As(err, &activation.ExecDeniedError{}):
		return codes.PermissionDenied
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &activation.TimeoutError{}):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Unknown
	}
}

// fromStatus converts an error returned by a gRPC call into an activation
// error.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}

	if v := trailer.Get(errorTrailer); len(v) > 0 {
		var w wireError
		if jerr := json.Unmarshal([]byte(v[0]), &w); jerr == nil {
			return unmarshalError(&w)
		}
	}

	s, ok := status.FromError(err)
	if !ok {
		return activation.RemoteError{Cause: err}
	}

	switch s.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", activation.ErrUnreachable, s.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, s.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, s.Message())
	default:
		return activation.RemoteError{Cause: err}
	}
}
