package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/controlvector/cv-core/internal/model"
)

// computeCyclomaticComplexity counts decision points under a symbol's body
// node, starting from a base complexity of 1 as required by model.SymbolNode's
// invariant (complexity >= 1). This fills in what the teacher's CYCLO signal
// (internal/signals/complexity/cyclo.go) left as a stub: one linearly
// independent path to start, plus one per branch/loop/case/short-circuit
// operator encountered.
func computeCyclomaticComplexity(body *tree_sitter.Node, lang model.Language) int {
	complexity := 1
	if body == nil {
		return complexity
	}
	spec, ok := specFor(lang)
	if !ok {
		return complexity
	}
	decisionKinds := make(map[string]bool, len(spec.ConditionalKinds))
	for _, k := range spec.ConditionalKinds {
		decisionKinds[k] = true
	}
	walkNodes(body, func(n *tree_sitter.Node) {
		if !decisionKinds[n.Kind()] {
			return
		}
		// A binary expression is a decision point only for && and ||.
		if n.Kind() == "binary_expression" {
			op := treeChildByFieldName(n, "operator")
			if op == nil || (op.Kind() != "&&" && op.Kind() != "||") {
				return
			}
		}
		complexity++
	})
	return complexity
}

// walkNodes visits every descendant of n (n included) in a pre-order walk.
func walkNodes(n *tree_sitter.Node, visit func(*tree_sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walkNodes(n.Child(uint(i)), visit)
	}
}
