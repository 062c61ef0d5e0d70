package compiler

import (
	"errors"
	"testing"

	"github.com/nexum-io/nexum/common/models"
)

// TestParse_LinearChain tests a -> b sequential workflow
func TestParse_LinearChain(t *testing.T) {
	ir, err := Parse(`{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "COMPUTE", "dependencies": ["a"]}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(ir.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(ir.Nodes))
	}

	nodeA := ir.Nodes["a"]
	if nodeA.Type != NodeTypeEffect {
		t.Errorf("Node a: expected type EFFECT, got %s", nodeA.Type)
	}
	if len(nodeA.Dependencies) != 0 {
		t.Errorf("Node a should have no dependencies (entry node)")
	}

	nodeB := ir.Nodes["b"]
	if len(nodeB.Dependencies) != 1 || nodeB.Dependencies[0] != "a" {
		t.Errorf("Node b: expected dependency [a], got %v", nodeB.Dependencies)
	}

	roots := ir.Roots()
	if len(roots) != 1 || roots[0].ID != "a" {
		t.Errorf("Expected roots [a], got %v", roots)
	}
}

// TestParse_DeclarationOrder tests that node order survives parsing
func TestParse_DeclarationOrder(t *testing.T) {
	ir, err := Parse(`{"nodes": {"z": {"type": "EFFECT", "dependencies": []}, "m": {"type": "EFFECT", "dependencies": []}, "a": {"type": "COMPUTE", "dependencies": ["z", "m"]}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []string{"z", "m", "a"}
	if len(ir.Order) != len(want) {
		t.Fatalf("Expected order of %d nodes, got %d", len(want), len(ir.Order))
	}
	for i, id := range want {
		if ir.Order[i] != id {
			t.Errorf("Order[%d]: expected %s, got %s", i, id, ir.Order[i])
		}
	}
}

// TestParse_FanIn tests {a, b} -> merge
func TestParse_FanIn(t *testing.T) {
	ir, err := Parse(`{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "b": {"type": "EFFECT", "dependencies": []}, "merge": {"type": "COMPUTE", "dependencies": ["a", "b"]}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	merge := ir.Nodes["merge"]
	if len(merge.Dependencies) != 2 {
		t.Errorf("merge: expected 2 dependencies, got %d", len(merge.Dependencies))
	}

	if len(ir.Roots()) != 2 {
		t.Errorf("Expected 2 root nodes, got %d", len(ir.Roots()))
	}
}

// TestParse_Timer tests TIMER delay handling
func TestParse_Timer(t *testing.T) {
	ir, err := Parse(`{"nodes": {"wait": {"type": "TIMER", "dependencies": [], "delay_seconds": 2}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	wait := ir.Nodes["wait"]
	if wait.DelaySeconds != 2 {
		t.Errorf("Expected delay_seconds=2, got %d", wait.DelaySeconds)
	}
	if !wait.Schedulable() {
		t.Errorf("TIMER nodes should be schedulable")
	}
}

// TestParse_UnschedulableTypes tests that ROUTER and HUMAN_APPROVAL parse
// but are not schedulable
func TestParse_UnschedulableTypes(t *testing.T) {
	ir, err := Parse(`{"nodes": {"route": {"type": "ROUTER", "dependencies": []}, "approve": {"type": "HUMAN_APPROVAL", "dependencies": ["route"]}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ir.Nodes["route"].Schedulable() {
		t.Errorf("ROUTER should not be schedulable")
	}
	if ir.Nodes["approve"].Schedulable() {
		t.Errorf("HUMAN_APPROVAL should not be schedulable")
	}
}

// TestParse_Validation tests parse and validation errors
func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name   string
		irJSON string
	}{
		{
			name:   "not_json",
			irJSON: `nodes: {}`,
		},
		{
			name:   "missing_dependency",
			irJSON: `{"nodes": {"a": {"type": "EFFECT", "dependencies": ["ghost"]}}}`,
		},
		{
			name:   "self_dependency",
			irJSON: `{"nodes": {"a": {"type": "EFFECT", "dependencies": ["a"]}}}`,
		},
		{
			name:   "cycle",
			irJSON: `{"nodes": {"a": {"type": "EFFECT", "dependencies": ["b"]}, "b": {"type": "EFFECT", "dependencies": ["a"]}}}`,
		},
		{
			name:   "longer_cycle",
			irJSON: `{"nodes": {"a": {"type": "EFFECT", "dependencies": ["c"]}, "b": {"type": "EFFECT", "dependencies": ["a"]}, "c": {"type": "EFFECT", "dependencies": ["b"]}}}`,
		},
		{
			name:   "unknown_type",
			irJSON: `{"nodes": {"a": {"type": "TELEPORT", "dependencies": []}}}`,
		},
		{
			name:   "timer_missing_delay",
			irJSON: `{"nodes": {"wait": {"type": "TIMER", "dependencies": []}}}`,
		},
		{
			name:   "timer_zero_delay",
			irJSON: `{"nodes": {"wait": {"type": "TIMER", "dependencies": [], "delay_seconds": 0}}}`,
		},
		{
			name:   "duplicate_node_id",
			irJSON: `{"nodes": {"a": {"type": "EFFECT", "dependencies": []}, "a": {"type": "COMPUTE", "dependencies": []}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.irJSON)
			if err == nil {
				t.Fatalf("Expected error, got nil")
			}
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

// TestParse_DiamondNoCycle tests that a diamond fan-out/fan-in is accepted
func TestParse_DiamondNoCycle(t *testing.T) {
	_, err := Parse(`{"nodes": {
		"a": {"type": "EFFECT", "dependencies": []},
		"b": {"type": "COMPUTE", "dependencies": ["a"]},
		"c": {"type": "COMPUTE", "dependencies": ["a"]},
		"d": {"type": "COMPUTE", "dependencies": ["b", "c"]}
	}}`)
	if err != nil {
		t.Errorf("diamond DAG should parse: %v", err)
	}
}

// TestParse_IgnoresUnknownTopLevelKeys tests forward compatibility with
// extra IR metadata
func TestParse_IgnoresUnknownTopLevelKeys(t *testing.T) {
	ir, err := Parse(`{"metadata": {"sdk": "py"}, "nodes": {"a": {"type": "EFFECT", "dependencies": []}}}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(ir.Nodes) != 1 {
		t.Errorf("Expected 1 node, got %d", len(ir.Nodes))
	}
}
