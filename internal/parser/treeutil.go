package parser

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// treeChildByKind returns the first direct child of node matching kind,
// mirroring the teacher's TranslateFromSyntaxTree.TreeChildByKind.
func treeChildByKind(node *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && set[child.Kind()] {
			return child
		}
	}
	return nil
}

// treeChildByFieldName returns the direct child of node in the named field,
// mirroring the teacher's TranslateFromSyntaxTree.TreeChildByFieldName.
func treeChildByFieldName(node *tree_sitter.Node, fieldName string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == fieldName {
			return node.Child(i)
		}
	}
	return nil
}

// fieldChildren returns every direct child of node in the named field, for
// grammars that repeat a field across siblings (e.g. Go's "var a, b int"
// repeats the "name" field once per identifier).
func fieldChildren(node *tree_sitter.Node, fieldName string) []*tree_sitter.Node {
	if node == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == fieldName {
			out = append(out, node.Child(i))
		}
	}
	return out
}

// isRootNode reports whether n spans the same byte range as root; Node
// values returned by separate Parent()/Child() calls for the same underlying
// node aren't guaranteed pointer-identical, so byte-range equality is the
// safe way to check "is this the file's root node".
func isRootNode(n, root *tree_sitter.Node) bool {
	return n != nil && root != nil && n.StartByte() == root.StartByte() && n.EndByte() == root.EndByte()
}

// nodeText slices the original source for node's byte range.
func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(content) {
		end = uint(len(content))
	}
	if start > end {
		return ""
	}
	return string(content[start:end])
}

// lineRange converts a node's tree-sitter position range to 1-based
// inclusive start/end lines, matching model.SymbolNode's invariant.
func lineRange(node *tree_sitter.Node) (start, end int) {
	if node == nil {
		return 1, 1
	}
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}

// hasConditionalAncestor reports whether any ancestor of n, up to (and
// excluding) stop, is one of the given conditional node kinds. This grounds
// CallInfo.IsConditional's ancestor-walk requirement.
func hasConditionalAncestor(n, stop *tree_sitter.Node, conditionalKinds map[string]bool) bool {
	for p := n.Parent(); p != nil && !(stop != nil && p.Kind() == stop.Kind() && isRootNode(p, stop)); p = p.Parent() {
		if conditionalKinds[p.Kind()] {
			return true
		}
	}
	return false
}

// headerText returns the source text of node up to (but excluding) its
// bodyField child, e.g. "public static async foo(...)" without the brace
// block that follows. Modifier keywords (public/private/static/async/...)
// live in this prefix in every grammar this package supports, so callers can
// substring-match it instead of walking individual modifier nodes. Falls
// back to the whole node's text when bodyField names no child (leaf
// declarations like a field or a variable spec).
func headerText(node *tree_sitter.Node, content []byte, bodyField string) string {
	if node == nil {
		return ""
	}
	if bodyField != "" {
		if body := treeChildByFieldName(node, bodyField); body != nil {
			start, end := node.StartByte(), body.StartByte()
			if int(end) > len(content) {
				end = uint(len(content))
			}
			if start <= end {
				return string(content[start:end])
			}
		}
	}
	return nodeText(node, content)
}
