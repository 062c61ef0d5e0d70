package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func roundTrip(t *testing.T, in, out wireMessage) {
	t.Helper()
	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, Codec{}.Unmarshal(data, out))
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Run("workflow_ir", func(t *testing.T) {
		in := &WorkflowIR{
			WorkflowID:  "deep-research",
			VersionHash: "sha256:abc123",
			IRJSON:      `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}}}`,
		}
		out := new(WorkflowIR)
		roundTrip(t, in, out)
		assert.Equal(t, in, out)
	})

	t.Run("register_response", func(t *testing.T) {
		in := &RegisterResponse{OK: true, Compatibility: "compatible", Message: "first version"}
		out := new(RegisterResponse)
		roundTrip(t, in, out)
		assert.Equal(t, in, out)
	})

	t.Run("poll_response_with_task", func(t *testing.T) {
		in := &PollResponse{
			HasTask:     true,
			TaskID:      "t-1",
			NodeID:      "fetch",
			ExecutionID: "e-1",
			InputJSON:   `{"input": {"q": "x"}, "deps": {}}`,
		}
		out := new(PollResponse)
		roundTrip(t, in, out)
		assert.Equal(t, in, out)
	})

	t.Run("poll_response_empty", func(t *testing.T) {
		in := &PollResponse{HasTask: false}
		out := new(PollResponse)

		data, err := Codec{}.Marshal(in)
		require.NoError(t, err)
		assert.Empty(t, data, "all-default message should encode to zero bytes")

		require.NoError(t, Codec{}.Unmarshal(data, out))
		assert.False(t, out.HasTask)
	})

	t.Run("empty_responses", func(t *testing.T) {
		roundTrip(t, &CompleteResponse{}, new(CompleteResponse))
		roundTrip(t, &FailResponse{}, new(FailResponse))
	})

	t.Run("fail_request", func(t *testing.T) {
		in := &FailRequest{TaskID: "t-9", ErrorMessage: "connection reset"}
		out := new(FailRequest)
		roundTrip(t, in, out)
		assert.Equal(t, in, out)
	})
}

// TestCodec_SkipsUnknownFields checks forward compatibility: a newer SDK
// may send fields this engine does not know
func TestCodec_SkipsUnknownFields(t *testing.T) {
	data, err := Codec{}.Marshal(&StatusRequest{ExecutionID: "e-1"})
	require.NoError(t, err)

	// Append an unknown string field 9 and an unknown varint field 10
	data = protowire.AppendTag(data, 9, protowire.BytesType)
	data = protowire.AppendString(data, "future")
	data = protowire.AppendTag(data, 10, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)

	out := new(StatusRequest)
	require.NoError(t, Codec{}.Unmarshal(data, out))
	assert.Equal(t, "e-1", out.ExecutionID)
}

// TestCodec_WireTypeMismatch checks malformed input is rejected
func TestCodec_WireTypeMismatch(t *testing.T) {
	// Field 1 of StatusRequest is a string; encode it as varint
	var data []byte
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)

	err := Codec{}.Unmarshal(data, new(StatusRequest))
	assert.Error(t, err)
}

// TestCodec_Truncated checks partial messages are rejected
func TestCodec_Truncated(t *testing.T) {
	data, err := Codec{}.Marshal(&WorkflowIR{WorkflowID: "wf", VersionHash: "sha256:aa", IRJSON: `{"nodes": {}}`})
	require.NoError(t, err)

	err = Codec{}.Unmarshal(data[:len(data)-3], new(WorkflowIR))
	assert.Error(t, err)
}

// TestCodec_ProtowireCompat checks the encoding matches what a generated
// proto3 stub would produce for the same scalar fields
func TestCodec_ProtowireCompat(t *testing.T) {
	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "wf-1")
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendString(want, "sha256:ff")

	got, err := Codec{}.Marshal(&PollRequest{WorkerID: "wf-1", VersionHash: "sha256:ff"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCodec_RejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)

	err = Codec{}.Unmarshal([]byte{}, 42)
	assert.Error(t, err)
}
