package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser extracts structure from Python sources using tree-sitter.
type PythonParser struct {
	// mu serializes access to the underlying C parser, which holds
	// mutable state across ParseCtx calls and is not safe for
	// concurrent use.
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewPythonParser creates a Python parser.
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: p}
}

// Language name
func (p *PythonParser) Language() string { return "python" }

// Extensions handled
func (p *PythonParser) Extensions() []string { return []string{".py"} }

// Parse one Python file. Safe for concurrent use; callers from the
// audit worker pool share one parser instance.
func (p *PythonParser) Parse(ctx context.Context, path string, src []byte) (*SourceFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	file := &SourceFile{
		Path:     path,
		Language: "python",
		Source:   src,
		Lines:    splitLines(src),
	}

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		p.extractTopLevel(root.NamedChild(i), src, file, nil)
	}
	p.extractCalls(root, src, file)

	return file, nil
}

// extractTopLevel handles definitions and imports at one nesting level.
func (p *PythonParser) extractTopLevel(node *sitter.Node, src []byte, file *SourceFile, decorators []string) {
	switch node.Type() {
	case "function_definition":
		if def := p.definition(node, src, KindFunction, decorators); def != nil {
			file.Definitions = append(file.Definitions, *def)
		}

	case "class_definition":
		if def := p.definition(node, src, KindClass, decorators); def != nil {
			file.Definitions = append(file.Definitions, *def)
			// Methods inside the class body
			if body := node.ChildByFieldName("body"); body != nil {
				for i := 0; i < int(body.NamedChildCount()); i++ {
					child := body.NamedChild(i)
					switch child.Type() {
					case "function_definition":
						if m := p.definition(child, src, KindMethod, nil); m != nil {
							file.Definitions = append(file.Definitions, *m)
						}
					case "decorated_definition":
						decs := p.decorators(child, src)
						if inner := p.findDecorated(child); inner != nil && inner.Type() == "function_definition" {
							if m := p.definition(inner, src, KindMethod, decs); m != nil {
								file.Definitions = append(file.Definitions, *m)
							}
						}
					}
				}
			}
		}

	case "decorated_definition":
		decs := p.decorators(node, src)
		if inner := p.findDecorated(node); inner != nil {
			p.extractTopLevel(inner, src, file, decs)
		}

	case "import_statement", "import_from_statement":
		file.Imports = append(file.Imports, p.imports(node, src)...)
	}
}

// definition builds a Definition from a function/class node.
func (p *PythonParser) definition(node *sitter.Node, src []byte, kind DefinitionKind, decorators []string) *Definition {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &Definition{
		Kind:       kind,
		Name:       string(src[nameNode.StartByte():nameNode.EndByte()]),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Decorators: decorators,
	}
}

// decorators collects the @name list of a decorated_definition.
func (p *PythonParser) decorators(node *sitter.Node, src []byte) []string {
	var decs []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			text := string(src[child.StartByte():child.EndByte()])
			// Keep the decorator name without call arguments
			if idx := strings.IndexByte(text, '('); idx > 0 {
				text = text[:idx]
			}
			decs = append(decs, strings.TrimPrefix(text, "@"))
		}
	}
	return decs
}

// findDecorated returns the wrapped definition node.
func (p *PythonParser) findDecorated(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "function_definition" || child.Type() == "class_definition" {
			return child
		}
	}
	return nil
}

// imports extracts dotted module paths from an import node.
func (p *PythonParser) imports(node *sitter.Node, src []byte) []Import {
	var out []Import
	line := int(node.StartPoint().Row) + 1
	if node.Type() == "import_from_statement" {
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			out = append(out, Import{Path: string(src[mod.StartByte():mod.EndByte()]), Line: line})
		}
		return out
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, Import{Path: string(src[child.StartByte():child.EndByte()]), Line: line})
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				out = append(out, Import{Path: string(src[name.StartByte():name.EndByte()]), Line: line})
			}
		}
	}
	return out
}

// extractCalls walks the whole tree collecting call expressions and any
// string literal arguments, which structural rules match against.
func (p *PythonParser) extractCalls(node *sitter.Node, src []byte, file *SourceFile) {
	if node.Type() == "call" {
		fn := node.ChildByFieldName("function")
		if fn != nil {
			call := Call{
				Callee: string(src[fn.StartByte():fn.EndByte()]),
				Line:   int(node.StartPoint().Row) + 1,
			}
			if args := node.ChildByFieldName("arguments"); args != nil {
				for i := 0; i < int(args.NamedChildCount()); i++ {
					arg := args.NamedChild(i)
					if arg.Type() == "string" {
						call.LiteralArgs = append(call.LiteralArgs, stripPyQuotes(string(src[arg.StartByte():arg.EndByte()])))
					}
				}
			}
			file.Calls = append(file.Calls, call)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.extractCalls(node.NamedChild(i), src, file)
	}
}

// stripPyQuotes removes string prefixes and quote characters.
func stripPyQuotes(s string) string {
	s = strings.TrimLeft(s, "rbufRBUF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
