package compiler

import "github.com/nexum-io/nexum/common/models"

// Compare classifies a new IR against the latest registered one.
//
//	compatible: every existing node retained with identical type and
//	            dependency list; new leaf nodes are allowed
//	breaking:   any existing node changed in type or dependency list,
//	            or removed
//
// Hash-identical registrations never reach this point; the registry
// answers "identical" from the store.
func Compare(prev, next *IR) string {
	for id, prevNode := range prev.Nodes {
		nextNode, exists := next.Nodes[id]
		if !exists {
			return models.CompatibilityBreaking
		}
		if nextNode.Type != prevNode.Type {
			return models.CompatibilityBreaking
		}
		if !sameDependencies(prevNode.Dependencies, nextNode.Dependencies) {
			return models.CompatibilityBreaking
		}
	}
	return models.CompatibilityCompatible
}

// sameDependencies compares dependency lists element-wise; order is part
// of the contract
func sameDependencies(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
