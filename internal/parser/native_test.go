package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlvector/cv-core/internal/model"
)

func parseNative(t *testing.T, lang model.Language, path, content string) model.ParsedFile {
	t.Helper()
	np, err := newNativeParser(lang)
	require.NoError(t, err)
	pf, err := np.parse("repo1", path, []byte(content))
	require.NoError(t, err)
	return pf
}

func symbolByName(t *testing.T, pf model.ParsedFile, name string) model.SymbolNode {
	t.Helper()
	for _, s := range pf.Symbols {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no symbol named %q among %d symbols", name, len(pf.Symbols))
	return model.SymbolNode{}
}

func TestNativeGoDistinguishesStructInterfaceAndAlias(t *testing.T) {
	content := "package main\n\ntype Widget struct {\n\tName string\n}\n\ntype Greeter interface {\n\tGreet() string\n}\n\ntype ID int\n"
	pf := parseNative(t, model.LanguageGo, "main.go", content)

	assert.Equal(t, model.SymbolStruct, symbolByName(t, pf, "Widget").Kind)
	assert.Equal(t, model.SymbolInterface, symbolByName(t, pf, "Greeter").Kind)
	assert.Equal(t, model.SymbolType, symbolByName(t, pf, "ID").Kind)
}

func TestNativeGoVisibilityFromCapitalization(t *testing.T) {
	content := "package main\n\nfunc Public() {}\n\nfunc private() {}\n"
	pf := parseNative(t, model.LanguageGo, "main.go", content)

	assert.Equal(t, model.VisibilityPublic, symbolByName(t, pf, "Public").Visibility)
	assert.Equal(t, model.VisibilityPrivate, symbolByName(t, pf, "private").Visibility)

	var exported []string
	for _, e := range pf.Exports {
		exported = append(exported, e.Name)
	}
	assert.Contains(t, exported, "Public")
	assert.NotContains(t, exported, "private")
}

func TestNativeGoDocCommentExtraction(t *testing.T) {
	content := "package main\n\n// Add returns the sum of a and b.\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"
	pf := parseNative(t, model.LanguageGo, "main.go", content)

	assert.Equal(t, "Add returns the sum of a and b.", symbolByName(t, pf, "Add").DocComment)
}

func TestNativeGoTopLevelVarAndConst(t *testing.T) {
	content := "package main\n\nconst MaxRetries = 3\n\nvar defaultTimeout = 30\n"
	pf := parseNative(t, model.LanguageGo, "main.go", content)

	assert.Equal(t, model.SymbolConstant, symbolByName(t, pf, "MaxRetries").Kind)
	assert.Equal(t, model.SymbolVariable, symbolByName(t, pf, "defaultTimeout").Kind)
	assert.Equal(t, model.VisibilityPrivate, symbolByName(t, pf, "defaultTimeout").Visibility)
}

func TestNativePythonAsyncAndStaticModifiers(t *testing.T) {
	content := "class Worker:\n    @staticmethod\n    def make():\n        pass\n\n\nasync def fetch():\n    pass\n"
	pf := parseNative(t, model.LanguagePython, "worker.py", content)

	assert.True(t, symbolByName(t, pf, "make").IsStatic)
	assert.True(t, symbolByName(t, pf, "fetch").IsAsync)
}

func TestNativePythonAllExports(t *testing.T) {
	content := "__all__ = [\"foo\"]\n\n\ndef foo():\n    pass\n\n\ndef bar():\n    pass\n"
	pf := parseNative(t, model.LanguagePython, "mod.py", content)

	var names []string
	for _, e := range pf.Exports {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"foo"}, names)
}

func TestNativeJSExportedFunctionAndConst(t *testing.T) {
	content := "export function Greet(name) {\n  return name;\n}\n\nexport const Pi = 3.14;\n\nfunction hidden() {}\n"
	pf := parseNative(t, model.LanguageJavaScript, "greet.js", content)

	var names []string
	var kinds []model.SymbolKind
	for _, e := range pf.Exports {
		names = append(names, e.Name)
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, names, "Greet")
	assert.Contains(t, names, "Pi")
	assert.NotContains(t, names, "hidden")
	assert.Contains(t, kinds, model.SymbolConstant)
}

func TestNativeJavaInterfaceAndVisibility(t *testing.T) {
	content := "public interface Shape {\n    double area();\n}\n\nclass Impl {\n    private int count;\n}\n"
	pf := parseNative(t, model.LanguageJava, "Shape.java", content)

	assert.Equal(t, model.SymbolInterface, symbolByName(t, pf, "Shape").Kind)
	assert.Equal(t, model.VisibilityPublic, symbolByName(t, pf, "Shape").Visibility)

	var exported []string
	for _, e := range pf.Exports {
		exported = append(exported, e.Name)
	}
	assert.Contains(t, exported, "Shape")
	assert.NotContains(t, exported, "Impl")
}
