package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexum-io/nexum/common/models"
)

// Node type constants
const (
	NodeTypeCompute       = "COMPUTE"
	NodeTypeEffect        = "EFFECT"
	NodeTypeTimer         = "TIMER"
	NodeTypeRouter        = "ROUTER"
	NodeTypeHumanApproval = "HUMAN_APPROVAL"
)

// knownNodeTypes defines the set of node types the parser accepts
var knownNodeTypes = map[string]bool{
	NodeTypeCompute:       true,
	NodeTypeEffect:        true,
	NodeTypeTimer:         true,
	NodeTypeRouter:        true,
	NodeTypeHumanApproval: true,
}

// schedulableNodeTypes are the types the scheduler materialises queue
// entries for. ROUTER and HUMAN_APPROVAL parse and persist but are not
// schedulable until their semantics are pinned.
var schedulableNodeTypes = map[string]bool{
	NodeTypeCompute: true,
	NodeTypeEffect:  true,
	NodeTypeTimer:   true,
}

// IR is the parsed workflow DAG
type IR struct {
	Nodes map[string]*Node

	// Node ids in IR declaration order. The SDK's canonical encoding keeps
	// insertion order, and tie-breaks on multi-ready steps follow it.
	Order []string
}

// Node is one unit of work in the DAG
type Node struct {
	ID           string
	Type         string
	Dependencies []string
	DelaySeconds int
}

// Schedulable reports whether the scheduler may materialise a queue entry
// for this node
func (n *Node) Schedulable() bool {
	return schedulableNodeTypes[n.Type]
}

// nodeSpec is the on-the-wire shape of one IR node
type nodeSpec struct {
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies"`
	DelaySeconds *int     `json:"delay_seconds,omitempty"`
}

// Parse decodes canonical IR JSON into the in-memory DAG, preserving node
// declaration order, and validates it. The raw text is never re-serialised;
// version hashing happened SDK-side over these exact bytes.
func Parse(irJSON string) (*IR, error) {
	ir, err := decode(irJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	if err := validate(ir); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	return ir, nil
}

// decode walks the JSON token stream so the "nodes" object's key order
// survives (encoding/json maps would lose it)
func decode(irJSON string) (*IR, error) {
	dec := json.NewDecoder(strings.NewReader(irJSON))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("ir must be a JSON object: %w", err)
	}

	ir := &IR{Nodes: make(map[string]*Node)}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", keyTok)
		}

		if key != "nodes" {
			// Unknown top-level keys are skipped, not rejected
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("nodes must be a JSON object: %w", err)
		}

		for dec.More() {
			idTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			id, ok := idTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected node key %v", idTok)
			}
			if _, exists := ir.Nodes[id]; exists {
				return nil, fmt.Errorf("duplicate node id: %s", id)
			}

			var spec nodeSpec
			if err := dec.Decode(&spec); err != nil {
				return nil, fmt.Errorf("node %s: %w", id, err)
			}

			node := &Node{
				ID:           id,
				Type:         spec.Type,
				Dependencies: spec.Dependencies,
			}
			if node.Dependencies == nil {
				node.Dependencies = []string{}
			}
			if spec.DelaySeconds != nil {
				node.DelaySeconds = *spec.DelaySeconds
			} else {
				node.DelaySeconds = -1 // absent
			}

			ir.Nodes[id] = node
			ir.Order = append(ir.Order, id)
		}

		// Closing brace of the nodes object
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	}

	return ir, nil
}

func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || rune(d) != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// validate checks the IR for correctness
func validate(ir *IR) error {
	// 1. Node types and per-type requirements
	for _, id := range ir.Order {
		node := ir.Nodes[id]

		if !knownNodeTypes[node.Type] {
			return fmt.Errorf("node %s: unknown node type: %s", id, node.Type)
		}

		switch node.Type {
		case NodeTypeTimer:
			if node.DelaySeconds < 0 {
				return fmt.Errorf("node %s: TIMER requires delay_seconds", id)
			}
			if node.DelaySeconds == 0 {
				return fmt.Errorf("node %s: TIMER delay_seconds must be > 0", id)
			}
		default:
			node.DelaySeconds = 0
		}
	}

	// 2. Dependencies reference nodes in the same IR
	for _, id := range ir.Order {
		for _, dep := range ir.Nodes[id].Dependencies {
			if _, exists := ir.Nodes[dep]; !exists {
				return fmt.Errorf("node %s: dependency references non-existent node: %s", id, dep)
			}
			if dep == id {
				return fmt.Errorf("node %s: depends on itself", id)
			}
		}
	}

	// 3. Acyclicity via Kahn's topological sort
	if err := checkAcyclic(ir); err != nil {
		return err
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm; leftover nodes mean a cycle
func checkAcyclic(ir *IR) error {
	indegree := make(map[string]int, len(ir.Nodes))
	dependents := make(map[string][]string, len(ir.Nodes))

	for _, id := range ir.Order {
		indegree[id] = len(ir.Nodes[id].Dependencies)
		for _, dep := range ir.Nodes[id].Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range ir.Order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if processed != len(ir.Nodes) {
		return fmt.Errorf("dependency graph contains a cycle")
	}

	return nil
}

// Roots returns nodes with no dependencies, in declaration order
func (ir *IR) Roots() []*Node {
	var roots []*Node
	for _, id := range ir.Order {
		if len(ir.Nodes[id].Dependencies) == 0 {
			roots = append(roots, ir.Nodes[id])
		}
	}
	return roots
}
