package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The engine speaks standard proto3 on the wire without generated code:
// every message is a flat set of string/bool scalars, so each type
// declares its field table and a shared walker handles protowire
// encoding. Unknown fields are skipped, which keeps older engines
// compatible with newer SDKs.

// field binds one proto field number to a struct member
type field struct {
	num protowire.Number
	str *string
	b   *bool
}

// wireMessage is implemented by every NexumService message
type wireMessage interface {
	fields() []field
}

// marshalMessage encodes fields in number order, omitting zero values
// (proto3 default semantics)
func marshalMessage(m wireMessage) []byte {
	var out []byte
	for _, f := range m.fields() {
		switch {
		case f.str != nil:
			if *f.str == "" {
				continue
			}
			out = protowire.AppendTag(out, f.num, protowire.BytesType)
			out = protowire.AppendString(out, *f.str)
		case f.b != nil:
			if !*f.b {
				continue
			}
			out = protowire.AppendTag(out, f.num, protowire.VarintType)
			out = protowire.AppendVarint(out, 1)
		}
	}
	return out
}

// unmarshalMessage decodes data into m, skipping unknown fields
func unmarshalMessage(data []byte, m wireMessage) error {
	table := make(map[protowire.Number]field)
	for _, f := range m.fields() {
		table[f.num] = f
	}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		f, known := table[num]
		if !known {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}

		switch {
		case f.str != nil:
			if typ != protowire.BytesType {
				return fmt.Errorf("field %d: expected bytes, got wire type %d", num, typ)
			}
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			*f.str = v
			data = data[n:]
		case f.b != nil:
			if typ != protowire.VarintType {
				return fmt.Errorf("field %d: expected varint, got wire type %d", num, typ)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			*f.b = v != 0
			data = data[n:]
		}
	}

	return nil
}

// Field tables. Numbers mirror proto/nexum.proto.

func (m *WorkflowIR) fields() []field {
	return []field{
		{num: 1, str: &m.WorkflowID},
		{num: 2, str: &m.VersionHash},
		{num: 3, str: &m.IRJSON},
	}
}

func (m *RegisterResponse) fields() []field {
	return []field{
		{num: 1, b: &m.OK},
		{num: 2, str: &m.Compatibility},
		{num: 3, str: &m.Message},
	}
}

func (m *StartRequest) fields() []field {
	return []field{
		{num: 1, str: &m.WorkflowID},
		{num: 2, str: &m.VersionHash},
		{num: 3, str: &m.InputJSON},
	}
}

func (m *StartResponse) fields() []field {
	return []field{
		{num: 1, str: &m.ExecutionID},
	}
}

func (m *StatusRequest) fields() []field {
	return []field{
		{num: 1, str: &m.ExecutionID},
	}
}

func (m *StatusResponse) fields() []field {
	return []field{
		{num: 1, str: &m.Status},
		{num: 2, str: &m.CompletedNodesJSON},
	}
}

func (m *PollRequest) fields() []field {
	return []field{
		{num: 1, str: &m.WorkerID},
		{num: 2, str: &m.VersionHash},
	}
}

func (m *PollResponse) fields() []field {
	return []field{
		{num: 1, b: &m.HasTask},
		{num: 2, str: &m.TaskID},
		{num: 3, str: &m.NodeID},
		{num: 4, str: &m.ExecutionID},
		{num: 5, str: &m.InputJSON},
	}
}

func (m *CompleteRequest) fields() []field {
	return []field{
		{num: 1, str: &m.TaskID},
		{num: 2, str: &m.OutputJSON},
	}
}

func (m *CompleteResponse) fields() []field { return nil }

func (m *FailRequest) fields() []field {
	return []field{
		{num: 1, str: &m.TaskID},
		{num: 2, str: &m.ErrorMessage},
	}
}

func (m *FailResponse) fields() []field { return nil }

// Codec plugs the wire format into grpc-go. Name reports "proto" because
// the bytes are standard proto3; generated-code clients interoperate.
type Codec struct{}

// Name implements encoding.Codec
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("codec: cannot marshal %T", v)
	}
	return marshalMessage(m), nil
}

// Unmarshal implements encoding.Codec
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("codec: cannot unmarshal into %T", v)
	}
	return unmarshalMessage(data, m)
}
