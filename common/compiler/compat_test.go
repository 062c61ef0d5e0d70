package compiler

import (
	"testing"

	"github.com/nexum-io/nexum/common/models"
)

func mustParse(t *testing.T, irJSON string) *IR {
	t.Helper()
	ir, err := Parse(irJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return ir
}

// TestCompare tests version compatibility classification
func TestCompare(t *testing.T) {
	base := `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}}}`

	tests := []struct {
		name string
		next string
		want string
	}{
		{
			name: "superset_new_leaf",
			next: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}, "c": {"type": "COMPUTE", "dependencies": ["b"]}}}`,
			want: models.CompatibilityCompatible,
		},
		{
			name: "unchanged_structure",
			next: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}}}`,
			want: models.CompatibilityCompatible,
		},
		{
			name: "node_removed",
			next: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}}}`,
			want: models.CompatibilityBreaking,
		},
		{
			name: "type_changed",
			next: `{"nodes": {"a": {"type": "COMPUTE", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}}}`,
			want: models.CompatibilityBreaking,
		},
		{
			name: "dependency_added_to_existing",
			next: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "x": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a", "x"]}}}`,
			want: models.CompatibilityBreaking,
		},
		{
			name: "dependency_order_changed",
			next: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}, "c": {"type": "COMPUTE", "dependencies": ["b", "a"]}}}`,
			want: models.CompatibilityCompatible, // c is new; a and b unchanged
		},
	}

	prev := mustParse(t, base)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := mustParse(t, tt.next)
			if got := Compare(prev, next); got != tt.want {
				t.Errorf("Compare: expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestCompare_DependencyOrderIsContract tests that reordering an existing
// node's dependency list is breaking
func TestCompare_DependencyOrderIsContract(t *testing.T) {
	prev := mustParse(t, `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "EFFECT", "dependencies": []}, "m": {"type": "COMPUTE", "dependencies": ["a", "b"]}}}`)
	next := mustParse(t, `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "EFFECT", "dependencies": []}, "m": {"type": "COMPUTE", "dependencies": ["b", "a"]}}}`)

	if got := Compare(prev, next); got != models.CompatibilityBreaking {
		t.Errorf("expected breaking on dependency reorder, got %s", got)
	}
}
