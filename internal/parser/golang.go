package parser

import (
	"context"
	goast "go/ast"
	goparser "go/parser"
	"go/token"
	"strconv"
	"strings"
)

// GoParser extracts structure from Go sources using go/ast.
type GoParser struct{}

// NewGoParser creates a Go parser.
func NewGoParser() *GoParser { return &GoParser{} }

// Language name
func (p *GoParser) Language() string { return "go" }

// Extensions handled
func (p *GoParser) Extensions() []string { return []string{".go"} }

// Parse one Go file.
func (p *GoParser) Parse(ctx context.Context, path string, src []byte) (*SourceFile, error) {
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, path, src, goparser.ParseComments)
	if err != nil {
		return nil, err
	}

	file := &SourceFile{
		Path:     path,
		Language: "go",
		Source:   src,
		Lines:    splitLines(src),
	}

	for _, imp := range f.Imports {
		impPath, _ := strconv.Unquote(imp.Path.Value)
		file.Imports = append(file.Imports, Import{
			Path: impPath,
			Line: fset.Position(imp.Pos()).Line,
		})
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *goast.FuncDecl:
			kind := KindFunction
			if d.Recv != nil {
				kind = KindMethod
			}
			file.Definitions = append(file.Definitions, Definition{
				Kind:      kind,
				Name:      d.Name.Name,
				StartLine: fset.Position(d.Pos()).Line,
				EndLine:   fset.Position(d.End()).Line,
			})
		case *goast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*goast.TypeSpec)
				if !ok {
					continue
				}
				if _, isStruct := ts.Type.(*goast.StructType); isStruct {
					file.Definitions = append(file.Definitions, Definition{
						Kind:      KindClass,
						Name:      ts.Name.Name,
						StartLine: fset.Position(ts.Pos()).Line,
						EndLine:   fset.Position(ts.End()).Line,
					})
				}
			}
		}
	}

	goast.Inspect(f, func(n goast.Node) bool {
		call, ok := n.(*goast.CallExpr)
		if !ok {
			return true
		}
		c := Call{
			Callee: calleeName(call.Fun),
			Line:   fset.Position(call.Pos()).Line,
		}
		if c.Callee == "" {
			return true
		}
		for _, arg := range call.Args {
			if lit, ok := arg.(*goast.BasicLit); ok && lit.Kind == token.STRING {
				if s, err := strconv.Unquote(lit.Value); err == nil {
					c.LiteralArgs = append(c.LiteralArgs, s)
				}
			}
		}
		file.Calls = append(file.Calls, c)
		return true
	})

	return file, nil
}

// calleeName flattens a call target expression to dotted form.
func calleeName(expr goast.Expr) string {
	switch e := expr.(type) {
	case *goast.Ident:
		return e.Name
	case *goast.SelectorExpr:
		var parts []string
		if base := calleeName(e.X); base != "" {
			parts = append(parts, base)
		}
		parts = append(parts, e.Sel.Name)
		return strings.Join(parts, ".")
	default:
		return ""
	}
}
