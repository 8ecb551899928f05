package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/controlvector/cv-core/internal/model"
)

// nativeParser wraps a tree-sitter parser for one language, grounded in the
// teacher's parse.FileParser.GetLanguageParser/CreateTranslatorWithContent.
type nativeParser struct {
	lang   model.Language
	parser *tree_sitter.Parser
}

func languageGrammar(lang model.Language) (*tree_sitter.Language, error) {
	switch lang {
	case model.LanguageGo:
		return tree_sitter.NewLanguage(golang.Language()), nil
	case model.LanguagePython:
		return tree_sitter.NewLanguage(python.Language()), nil
	case model.LanguageJavaScript:
		return tree_sitter.NewLanguage(javascript.Language()), nil
	case model.LanguageTypeScript:
		return tree_sitter.NewLanguage(typescript.LanguageTypescript()), nil
	case model.LanguageJava:
		return tree_sitter.NewLanguage(java.Language()), nil
	default:
		return nil, fmt.Errorf("unsupported language for native parsing: %s", lang)
	}
}

func newNativeParser(lang model.Language) (*nativeParser, error) {
	grammar, err := languageGrammar(lang)
	if err != nil {
		return nil, err
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("failed to set parser language %s: %w", lang, err)
	}
	return &nativeParser{lang: lang, parser: p}, nil
}

// parse walks the syntax tree for content and returns a ParsedFile.
// Mirrors the shape of the teacher's FileParser.ParseAndTraverseWithContent,
// but returns a value instead of writing into a graph mid-traversal.
func (np *nativeParser) parse(repoID, path string, content []byte) (model.ParsedFile, error) {
	tree := np.parser.Parse(content, nil)
	if tree == nil {
		return model.ParsedFile{}, fmt.Errorf("failed to parse %s", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return model.ParsedFile{}, fmt.Errorf("no root node for %s", path)
	}

	spec, _ := specFor(np.lang)
	sum := sha256.Sum256(content)
	lines := strings.Split(string(content), "\n")
	leader := docCommentLeader[string(np.lang)]

	pf := model.ParsedFile{
		RepoID:    repoID,
		Path:      path,
		Language:  np.lang,
		Hash:      hex.EncodeToString(sum[:]),
		LineCount: strings.Count(string(content), "\n") + 1,
	}

	symbolKinds := make(map[string]model.SymbolKind)
	for _, k := range spec.FunctionKinds {
		symbolKinds[k] = model.SymbolFunction
	}
	for _, k := range spec.MethodKinds {
		symbolKinds[k] = model.SymbolMethod
	}
	for _, k := range spec.ClassKinds {
		symbolKinds[k] = model.SymbolClass
	}
	for _, k := range spec.InterfaceKinds {
		symbolKinds[k] = model.SymbolInterface
	}
	if np.lang == model.LanguageGo {
		// Go's type_declaration covers structs, interfaces and plain type
		// aliases alike; handled node-by-node below instead of as a single
		// kind, so it's excluded from the generic dispatch table.
		delete(symbolKinds, "type_declaration")
	}

	variableKinds := make(map[string]bool, len(spec.VariableKinds))
	for _, k := range spec.VariableKinds {
		variableKinds[k] = true
	}
	constantKinds := make(map[string]bool, len(spec.ConstantKinds))
	for _, k := range spec.ConstantKinds {
		constantKinds[k] = true
	}
	callKinds := make(map[string]bool, len(spec.CallKinds))
	for _, k := range spec.CallKinds {
		callKinds[k] = true
	}
	conditionalKinds := make(map[string]bool, len(spec.ConditionalKinds))
	for _, k := range spec.ConditionalKinds {
		conditionalKinds[k] = true
	}
	importKinds := make(map[string]bool, len(spec.ImportKinds))
	for _, k := range spec.ImportKinds {
		importKinds[k] = true
	}

	var enclosingClass string
	walkNodes(root, func(n *tree_sitter.Node) {
		if np.lang == model.LanguageGo && n.Kind() == "type_declaration" {
			np.handleGoTypeDecl(n, content, repoID, path, &pf, lines, &enclosingClass)
			return
		}
		if np.lang == model.LanguagePython && isPythonModuleAssignment(n, root) {
			appendPythonAssignment(n, content, repoID, path, &pf, lines)
			return
		}

		if variableKinds[n.Kind()] && isTopLevelDecl(n, root, np.lang) {
			np.appendDeclSymbols(n, content, model.SymbolVariable, repoID, path, enclosingClass, &pf, lines)
			return
		}
		if constantKinds[n.Kind()] && isTopLevelDecl(n, root, np.lang) {
			np.appendDeclSymbols(n, content, model.SymbolConstant, repoID, path, enclosingClass, &pf, lines)
			return
		}

		kind, ok := symbolKinds[n.Kind()]
		if !ok {
			if importKinds[n.Kind()] {
				pf.Imports = append(pf.Imports, extractImport(n, content))
			}
			return
		}

		name := symbolName(n, content, spec)
		if name == "" {
			return
		}

		if kind == model.SymbolClass || kind == model.SymbolInterface {
			enclosingClass = name
		}

		startLine, endLine := lineRange(n)
		if endLine < startLine {
			endLine = startLine
		}

		body := treeChildByFieldName(n, spec.BodyField)
		if body == nil {
			body = n
		}

		qualified := name
		if kind == model.SymbolMethod && enclosingClass != "" {
			qualified = enclosingClass + "." + name
		}

		docStartLine := startLine
		var decoratorText string
		if np.lang == model.LanguagePython {
			if p := n.Parent(); p != nil && p.Kind() == "decorated_definition" {
				docStartLine, _ = lineRange(p)
				decoratorText = nodeText(p, content)
			}
		}
		doc := extractDocComment(lines, docStartLine, leader)

		var vis model.Visibility
		var isAsync, isStatic bool
		if np.lang == model.LanguageGo {
			vis = model.VisibilityPublic
			if !isGoExported(name) {
				vis = model.VisibilityPrivate
			}
		} else {
			header := headerText(n, content, spec.BodyField)
			vis, isAsync, isStatic = detectModifiers(np.lang, header, decoratorText)
			if np.lang == model.LanguagePython && strings.HasPrefix(name, "_") {
				vis = model.VisibilityPrivate
			}
		}

		sym := model.SymbolNode{
			RepoID:        repoID,
			FilePath:      path,
			Kind:          kind,
			Name:          name,
			QualifiedName: qualified,
			StartLine:     startLine,
			EndLine:       endLine,
			Complexity:    computeCyclomaticComplexity(body, np.lang),
			Signature:     nodeText(n, content),
			DocComment:    doc,
			Visibility:    vis,
			IsAsync:       isAsync,
			IsStatic:      isStatic,
		}

		walkNodes(body, func(c *tree_sitter.Node) {
			if !callKinds[c.Kind()] {
				return
			}
			calleeName := calleeName(c, content)
			if calleeName == "" {
				return
			}
			callLine := int(c.StartPosition().Row) + 1
			sym.Calls = append(sym.Calls, model.CallInfo{
				CalleeName:    calleeName,
				Line:          callLine,
				IsConditional: hasConditionalAncestor(c, body, conditionalKinds),
			})
		})

		pf.Symbols = append(pf.Symbols, sym)
	})

	extractExports(np.lang, root, content, &pf)

	return pf, nil
}

// handleGoTypeDecl expands a Go type_declaration into one symbol per
// type_spec it groups (covering both "type X struct{}" and the grouped
// "type (\n X struct{}\n Y interface{}\n)" form), classifying each by its
// spec's own type node instead of collapsing everything into SymbolClass.
func (np *nativeParser) handleGoTypeDecl(n *tree_sitter.Node, content []byte, repoID, path string, pf *model.ParsedFile, lines []string, enclosingClass *string) {
	walkNodes(n, func(spec *tree_sitter.Node) {
		if spec.Kind() != "type_spec" {
			return
		}
		nameNode := treeChildByFieldName(spec, "name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		if name == "" {
			return
		}

		kind := model.SymbolType
		if typeNode := treeChildByFieldName(spec, "type"); typeNode != nil {
			switch typeNode.Kind() {
			case "interface_type":
				kind = model.SymbolInterface
			case "struct_type":
				kind = model.SymbolStruct
			}
		}

		startLine, endLine := lineRange(spec)
		vis := model.VisibilityPublic
		if !isGoExported(name) {
			vis = model.VisibilityPrivate
		}

		*enclosingClass = name

		pf.Symbols = append(pf.Symbols, model.SymbolNode{
			RepoID:        repoID,
			FilePath:      path,
			Kind:          kind,
			Name:          name,
			QualifiedName: name,
			StartLine:     startLine,
			EndLine:       endLine,
			Complexity:    1,
			Signature:     nodeText(spec, content),
			DocComment:    extractDocComment(lines, startLine, "//"),
			Visibility:    vis,
		})
	})
}

// appendDeclSymbols expands a var/const/field declaration node into one
// symbol per name it binds (Go's "var a, b int" and JS/Java's comma-joined
// declarators both bind more than one name per declaration node).
func (np *nativeParser) appendDeclSymbols(n *tree_sitter.Node, content []byte, kind model.SymbolKind, repoID, path, enclosingClass string, pf *model.ParsedFile, lines []string) {
	specKind := "variable_declarator"
	switch n.Kind() {
	case "var_declaration":
		specKind = "var_spec"
	case "const_declaration":
		specKind = "const_spec"
	}

	leader := docCommentLeader[string(np.lang)]
	walkNodes(n, func(spec *tree_sitter.Node) {
		if spec.Kind() != specKind {
			return
		}
		for _, nameNode := range fieldChildren(spec, "name") {
			name := nodeText(nameNode, content)
			if name == "" {
				continue
			}
			startLine, endLine := lineRange(spec)
			qualified := name
			if enclosingClass != "" {
				qualified = enclosingClass + "." + name
			}

			vis := model.VisibilityPublic
			switch np.lang {
			case model.LanguageGo:
				if !isGoExported(name) {
					vis = model.VisibilityPrivate
				}
			case model.LanguageJava:
				vis, _, _ = detectModifiers(np.lang, headerText(n, content, ""), "")
			}

			pf.Symbols = append(pf.Symbols, model.SymbolNode{
				RepoID:        repoID,
				FilePath:      path,
				Kind:          kind,
				Name:          name,
				QualifiedName: qualified,
				StartLine:     startLine,
				EndLine:       endLine,
				Complexity:    1,
				Signature:     nodeText(spec, content),
				DocComment:    extractDocComment(lines, startLine, leader),
				Visibility:    vis,
			})
		}
	})
}

// isTopLevelDecl reports whether a var/const/field declaration node sits at
// the scope its language models top-level bindings in: the file root for
// Go/JS/TS (including one step inside an export_statement wrapper), or a
// class body for Java.
func isTopLevelDecl(n, root *tree_sitter.Node, lang model.Language) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch lang {
	case model.LanguageJava:
		return p.Kind() == "class_body"
	case model.LanguageJavaScript, model.LanguageTypeScript:
		if isRootNode(p, root) {
			return true
		}
		return p.Kind() == "export_statement" && isRootNode(p.Parent(), root)
	default:
		return isRootNode(p, root)
	}
}

// isPythonModuleAssignment reports whether n is a plain "name = value"
// assignment directly at module scope, the shape both plain module-level
// variables and the __all__ export list take.
func isPythonModuleAssignment(n, root *tree_sitter.Node) bool {
	if n.Kind() != "assignment" {
		return false
	}
	stmt := n.Parent()
	if stmt == nil || stmt.Kind() != "expression_statement" {
		return false
	}
	return isRootNode(stmt.Parent(), root)
}

// appendPythonAssignment records a module-level assignment as a variable
// symbol, or a constant when its name is conventionally SCREAMING_CASE.
// __all__ itself isn't indexed as a symbol; it's read separately to build
// the file's export list.
func appendPythonAssignment(n *tree_sitter.Node, content []byte, repoID, path string, pf *model.ParsedFile, lines []string) {
	left := treeChildByFieldName(n, "left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := nodeText(left, content)
	if name == "" || name == "__all__" {
		return
	}

	kind := model.SymbolVariable
	if name == strings.ToUpper(name) {
		kind = model.SymbolConstant
	}

	startLine, endLine := lineRange(n)
	vis := model.VisibilityPublic
	if strings.HasPrefix(name, "_") {
		vis = model.VisibilityPrivate
	}

	pf.Symbols = append(pf.Symbols, model.SymbolNode{
		RepoID:        repoID,
		FilePath:      path,
		Kind:          kind,
		Name:          name,
		QualifiedName: name,
		StartLine:     startLine,
		EndLine:       endLine,
		Complexity:    1,
		Signature:     nodeText(n, content),
		DocComment:    extractDocComment(lines, startLine, "#"),
		Visibility:    vis,
	})
}

// isGoExported reports whether name is an exported Go identifier (starts
// with an uppercase letter), the language's only visibility signal.
func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// detectModifiers derives visibility/async/static from a declaration's
// header text (everything up to its body) plus, for Python, the decorator
// text immediately above it. Go has no modifier keywords and is handled by
// its caller via isGoExported instead.
func detectModifiers(lang model.Language, header, decoratorText string) (vis model.Visibility, isAsync, isStatic bool) {
	vis = model.VisibilityPublic
	fields := strings.Fields(header)
	has := func(tok string) bool {
		for _, f := range fields {
			if f == tok {
				return true
			}
		}
		return false
	}

	switch lang {
	case model.LanguagePython:
		isAsync = has("async")
		isStatic = strings.Contains(decoratorText, "@staticmethod") || strings.Contains(decoratorText, "@classmethod")
	case model.LanguageJavaScript, model.LanguageTypeScript:
		isAsync = has("async")
		isStatic = has("static")
		if has("private") {
			vis = model.VisibilityPrivate
		} else if has("protected") {
			vis = model.VisibilityProtected
		}
	case model.LanguageJava:
		isStatic = has("static")
		if has("private") {
			vis = model.VisibilityPrivate
		} else if has("protected") {
			vis = model.VisibilityProtected
		}
	}
	return
}

// extractExports populates pf.Exports using each language's own notion of
// "visible outside this file": capitalized top-level identifiers for Go,
// the export keyword for JS/TS, __all__ for Python, and the public modifier
// on top-level types for Java.
func extractExports(lang model.Language, root *tree_sitter.Node, content []byte, pf *model.ParsedFile) {
	switch lang {
	case model.LanguageGo:
		for _, s := range pf.Symbols {
			if s.Kind == model.SymbolMethod || s.Visibility != model.VisibilityPublic {
				continue
			}
			pf.Exports = append(pf.Exports, model.Export{Name: s.Name, Kind: s.Kind, Line: s.StartLine})
		}
	case model.LanguageJava:
		for _, s := range pf.Symbols {
			public := false
			for _, tok := range strings.Fields(s.Signature) {
				if tok == "class" || tok == "interface" {
					break
				}
				if tok == "public" {
					public = true
				}
			}
			if (s.Kind != model.SymbolClass && s.Kind != model.SymbolInterface) || !public {
				continue
			}
			pf.Exports = append(pf.Exports, model.Export{Name: s.Name, Kind: s.Kind, Line: s.StartLine})
		}
	case model.LanguageJavaScript, model.LanguageTypeScript:
		extractJSExports(root, content, pf)
	case model.LanguagePython:
		extractPythonAllExports(root, content, pf)
	}
}

func extractJSExports(root *tree_sitter.Node, content []byte, pf *model.ParsedFile) {
	walkNodes(root, func(n *tree_sitter.Node) {
		if n.Kind() != "export_statement" {
			return
		}
		line := int(n.StartPosition().Row) + 1

		if decl := treeChildByFieldName(n, "declaration"); decl != nil {
			switch decl.Kind() {
			case "function_declaration", "class_declaration":
				if nameNode := treeChildByFieldName(decl, "name"); nameNode != nil {
					kind := model.SymbolFunction
					if decl.Kind() == "class_declaration" {
						kind = model.SymbolClass
					}
					pf.Exports = append(pf.Exports, model.Export{Name: nodeText(nameNode, content), Kind: kind, Line: line})
				}
			case "lexical_declaration", "variable_declaration":
				kind := model.SymbolVariable
				if decl.ChildCount() > 0 && nodeText(decl.Child(0), content) == "const" {
					kind = model.SymbolConstant
				}
				walkNodes(decl, func(d *tree_sitter.Node) {
					if d.Kind() != "variable_declarator" {
						return
					}
					if nameNode := treeChildByFieldName(d, "name"); nameNode != nil {
						pf.Exports = append(pf.Exports, model.Export{Name: nodeText(nameNode, content), Kind: kind, Line: line})
					}
				})
			}
			return
		}

		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || child.Kind() != "export_clause" {
				continue
			}
			for j := uint(0); j < child.ChildCount(); j++ {
				spec := child.Child(j)
				if spec == nil || spec.Kind() != "export_specifier" {
					continue
				}
				if nameNode := treeChildByFieldName(spec, "name"); nameNode != nil {
					pf.Exports = append(pf.Exports, model.Export{Name: nodeText(nameNode, content), Kind: model.SymbolFunction, Line: line})
				}
			}
		}
	})
}

func extractPythonAllExports(root *tree_sitter.Node, content []byte, pf *model.ParsedFile) {
	symbolKindByName := make(map[string]model.SymbolKind, len(pf.Symbols))
	for _, s := range pf.Symbols {
		symbolKindByName[s.Name] = s.Kind
	}

	walkNodes(root, func(n *tree_sitter.Node) {
		if n.Kind() != "assignment" {
			return
		}
		left := treeChildByFieldName(n, "left")
		if left == nil || nodeText(left, content) != "__all__" {
			return
		}
		right := treeChildByFieldName(n, "right")
		if right == nil {
			return
		}
		line := int(n.StartPosition().Row) + 1
		walkNodes(right, func(s *tree_sitter.Node) {
			if s.Kind() != "string" {
				return
			}
			name := strings.Trim(nodeText(s, content), "\"'")
			if name == "" {
				return
			}
			kind, ok := symbolKindByName[name]
			if !ok {
				kind = model.SymbolFunction
			}
			pf.Exports = append(pf.Exports, model.Export{Name: name, Kind: kind, Line: line})
		})
	})
}

// symbolName finds a function/method/class node's name child, following the
// same "look for an identifier-kind child, fall back to a name field" idiom
// the teacher's visitors use (e.g. GoVisitor.handleFunctionDeclaration).
func symbolName(n *tree_sitter.Node, content []byte, spec langSpec) string {
	if nameNode := treeChildByFieldName(n, "name"); nameNode != nil {
		return nodeText(nameNode, content)
	}
	if nameNode := treeChildByKind(n, spec.NameKinds...); nameNode != nil {
		return nodeText(nameNode, content)
	}
	return ""
}

// calleeName extracts the identifier being invoked from a call-expression
// node, using the function/name field when present and otherwise the first
// identifier-kind child (covers bare calls and member-call receivers).
func calleeName(call *tree_sitter.Node, content []byte) string {
	target := treeChildByFieldName(call, "function")
	if target == nil {
		target = treeChildByFieldName(call, "constructor")
	}
	if target == nil {
		return ""
	}
	if target.Kind() == "selector_expression" || target.Kind() == "member_expression" || target.Kind() == "field_access" {
		if field := treeChildByFieldName(target, "field"); field != nil {
			return nodeText(field, content)
		}
		if prop := treeChildByFieldName(target, "property"); prop != nil {
			return nodeText(prop, content)
		}
	}
	return nodeText(target, content)
}

// extractImport builds an unresolved model.Import (ResolvedTo left empty)
// from an import-spec-like node; nothing in this module fills in ResolvedTo
// afterwards.
func extractImport(n *tree_sitter.Node, content []byte) model.Import {
	text := strings.Trim(nodeText(n, content), "\"'`")
	line := int(n.StartPosition().Row) + 1
	return model.Import{Path: text, Line: line}
}
