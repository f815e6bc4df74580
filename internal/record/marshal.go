package record

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
)

// NewMarshaler returns a marshaler that can marshal every record type and
// State.
func NewMarshaler() marshalkit.ValueMarshaler {
	m, err := codec.NewMarshaler(
		[]reflect.Type{
			reflect.TypeOf(RegisterObject{}),
			reflect.TypeOf(UnregisterObject{}),
			reflect.TypeOf(UpdateDescriptor{}),
			reflect.TypeOf(RegisterGroup{}),
			reflect.TypeOf(UnregisterGroup{}),
			reflect.TypeOf(UpdateGroupDescriptor{}),
			reflect.TypeOf(GroupIncarnation{}),
			reflect.TypeOf(State{}),
		},
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	return m
}

// MarshalState marshals s to a packet.
func MarshalState(m marshalkit.ValueMarshaler, s *State) (marshalkit.Packet, error) {
	return m.Marshal(*s)
}

// UnmarshalState unmarshals a State from p.
func UnmarshalState(m marshalkit.ValueMarshaler, p marshalkit.Packet) (*State, error) {
	v, err := unmarshal(m, p)
	if err != nil {
		return nil, err
	}

	s, ok := v.(State)
	if !ok {
		return nil, fmt.Errorf("snapshot contains %T, expected state", v)
	}

	return &s, nil
}

// UnmarshalRecord unmarshals a Record from p.
func UnmarshalRecord(m marshalkit.ValueMarshaler, p marshalkit.Packet) (Record, error) {
	v, err := unmarshal(m, p)
	if err != nil {
		return nil, err
	}

	r, ok := v.(Record)
	if !ok {
		return nil, fmt.Errorf("log contains %T, expected a record", v)
	}

	return r, nil
}

// unmarshal unmarshals p, dereferencing the result if the codec produces a
// pointer.
func unmarshal(m marshalkit.ValueMarshaler, p marshalkit.Packet) (interface{}, error) {
	v, err := m.Unmarshal(p)
	if err != nil {
		return nil, err
	}

	return reflect.Indirect(reflect.ValueOf(v)).Interface(), nil
}
