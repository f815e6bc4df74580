// Package bootstrap implements the handshake message that the activation
// daemon writes to the standard input of each group process that it starts.
package bootstrap

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/x/packetx"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
)

// Message tells a group process which group it hosts.
type Message struct {
	GroupID     activation.GroupID
	Descriptor  activation.GroupDescriptor
	Incarnation uint64

	// SystemAddress is the network address of the daemon's activation system
	// endpoint. It is empty if the daemon does not serve its endpoints over
	// the network.
	SystemAddress string
}

var marshaler marshalkit.ValueMarshaler

func init() {
	m, err := codec.NewMarshaler(
		[]reflect.Type{
			reflect.TypeOf(Message{}),
		},
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	marshaler = m
}

// Write writes m to w.
func Write(w io.Writer, m Message) error {
	p, err := marshaler.Marshal(m)
	if err != nil {
		return err
	}

	return packetx.Write(w, p)
}

// Read reads a message from r.
//
// It does not read past the end of the message.
func Read(r io.Reader) (Message, error) {
	p, err := packetx.Read(r)
	if err != nil {
		return Message{}, fmt.Errorf("unable to read bootstrap message: %w", err)
	}

	v, err := marshaler.Unmarshal(p)
	if err != nil {
		return Message{}, fmt.Errorf("unable to read bootstrap message: %w", err)
	}

	m, ok := reflect.Indirect(reflect.ValueOf(v)).Interface().(Message)
	if !ok {
		return Message{}, fmt.Errorf("unable to read bootstrap message: unexpected %T", v)
	}

	return m, nil
}
