package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nexum-io/nexum/common/blob"
	"github.com/nexum-io/nexum/common/compiler"
	"github.com/nexum-io/nexum/common/logger"
	"github.com/nexum-io/nexum/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlobStore(t *testing.T) *blob.Store {
	t.Helper()
	store, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"), logger.New("error", "text"))
	require.NoError(t, err)
	return store
}

func TestDepsCompleted(t *testing.T) {
	node := &compiler.Node{
		ID:           "merge",
		Type:         compiler.NodeTypeCompute,
		Dependencies: []string{"a", "b"},
	}

	completed := map[string]json.RawMessage{}
	assert.False(t, depsCompleted(node, completed))

	completed["a"] = json.RawMessage(`{"val":1}`)
	assert.False(t, depsCompleted(node, completed))

	completed["b"] = json.RawMessage(`{"val":2}`)
	assert.True(t, depsCompleted(node, completed))

	root := &compiler.Node{ID: "a", Type: compiler.NodeTypeEffect, Dependencies: []string{}}
	assert.True(t, depsCompleted(root, map[string]json.RawMessage{}))
}

func TestBuildTaskPayload_Shape(t *testing.T) {
	blobs := testBlobStore(t)

	node := &compiler.Node{
		ID:           "b",
		Type:         compiler.NodeTypeCompute,
		Dependencies: []string{"a"},
	}
	completed := map[string]json.RawMessage{
		"a": json.RawMessage(`{"val":1}`),
	}

	raw, err := BuildTaskPayload(json.RawMessage(`{"q":"x"}`), node, completed, blobs)
	require.NoError(t, err)

	var payload models.TaskPayload
	require.NoError(t, json.Unmarshal(raw, &payload))

	assert.JSONEq(t, `{"q":"x"}`, string(payload.Input))
	require.Contains(t, payload.Deps, "a")
	assert.JSONEq(t, `{"val":1}`, string(payload.Deps["a"]))
	assert.Len(t, payload.Deps, 1)
}

func TestBuildTaskPayload_RootNodeHasEmptyDeps(t *testing.T) {
	blobs := testBlobStore(t)

	node := &compiler.Node{ID: "a", Type: compiler.NodeTypeEffect, Dependencies: []string{}}

	raw, err := BuildTaskPayload(json.RawMessage(`{"q":"x"}`), node, nil, blobs)
	require.NoError(t, err)

	// deps must always be present, even when empty
	assert.JSONEq(t, `{"input":{"q":"x"},"deps":{}}`, string(raw))
}

func TestBuildTaskPayload_NilInputBecomesNull(t *testing.T) {
	blobs := testBlobStore(t)

	node := &compiler.Node{ID: "a", Type: compiler.NodeTypeEffect, Dependencies: []string{}}

	raw, err := BuildTaskPayload(nil, node, nil, blobs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":null,"deps":{}}`, string(raw))
}

func TestBuildTaskPayload_ResolvesClaimCheck(t *testing.T) {
	blobs := testBlobStore(t)

	// Store an oversized dep output in the sidecar, reference it by pointer
	big := json.RawMessage(`{"body": "payload that lived above the inline threshold"}`)
	cc, err := blobs.Put(big)
	require.NoError(t, err)

	pointer, err := json.Marshal(cc)
	require.NoError(t, err)

	node := &compiler.Node{
		ID:           "consume",
		Type:         compiler.NodeTypeCompute,
		Dependencies: []string{"produce"},
	}
	completed := map[string]json.RawMessage{
		"produce": pointer,
	}

	raw, err := BuildTaskPayload(json.RawMessage(`null`), node, completed, blobs)
	require.NoError(t, err)

	var payload models.TaskPayload
	require.NoError(t, json.Unmarshal(raw, &payload))

	// The worker sees the payload inline, never the pointer
	assert.JSONEq(t, string(big), string(payload.Deps["produce"]))
	var check map[string]any
	require.NoError(t, json.Unmarshal(payload.Deps["produce"], &check))
	assert.NotContains(t, check, "__nexum_claim_check__")
}

func TestBuildTaskPayload_MissingDep(t *testing.T) {
	blobs := testBlobStore(t)

	node := &compiler.Node{
		ID:           "b",
		Type:         compiler.NodeTypeCompute,
		Dependencies: []string{"a"},
	}

	_, err := BuildTaskPayload(json.RawMessage(`null`), node, map[string]json.RawMessage{}, blobs)
	assert.Error(t, err)
}

func TestBuildTaskPayload_CorruptBlobPropagatesDataLoss(t *testing.T) {
	blobs := testBlobStore(t)

	cc, err := blobs.Put([]byte(`"original"`))
	require.NoError(t, err)

	// Corrupt the blob on disk so its hash no longer matches the pointer
	require.NoError(t, os.WriteFile(cc.Path, []byte(`"tampered"`), 0o644))

	pointer, err := json.Marshal(cc)
	require.NoError(t, err)

	node := &compiler.Node{
		ID:           "b",
		Type:         compiler.NodeTypeCompute,
		Dependencies: []string{"a"},
	}
	completed := map[string]json.RawMessage{"a": pointer}

	_, err = BuildTaskPayload(json.RawMessage(`null`), node, completed, blobs)
	assert.ErrorIs(t, err, models.ErrDataLoss)
}
