package plugin

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
)

// readHelpers parses dir/requests.go and returns the package name and every
// exported top-level function whose single result is requestType.
func readHelpers(dep, dir, requestType string) (string, []Helper, []byte, error) {
	path := filepath.Join(dir, helpersFilename)
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, nil, &ConfigurationError{Dependency: dep, Field: helpersFilename, Reason: "is missing; helpers must live in " + helpersFilename}
		}
		return "", nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return "", nil, nil, &ConfigurationError{Dependency: dep, Field: helpersFilename, Reason: fmt.Sprintf("does not parse: %v", err)}
	}

	var helpers []Helper
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !fn.Name.IsExported() {
			continue
		}
		if !returnsRequest(fn.Type, requestType) {
			continue
		}
		helpers = append(helpers, helperFromFunc(fn))
	}
	sort.SliceStable(helpers, func(i, j int) bool { return helpers[i].Name < helpers[j].Name })
	return file.Name.Name, helpers, src, nil
}

func returnsRequest(ft *ast.FuncType, requestType string) bool {
	if ft.Results == nil || len(ft.Results.List) != 1 || len(ft.Results.List[0].Names) > 1 {
		return false
	}
	expr := ft.Results.List[0].Type
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name == requestType
	case *ast.IndexExpr:
		id, ok := t.X.(*ast.Ident)
		return ok && id.Name == requestType
	case *ast.IndexListExpr:
		id, ok := t.X.(*ast.Ident)
		return ok && id.Name == requestType
	}
	return false
}

func helperFromFunc(fn *ast.FuncDecl) Helper {
	h := Helper{
		Name:  fn.Name.Name,
		Alias: SnakeCase(fn.Name.Name),
	}
	if tp := fn.Type.TypeParams; tp != nil {
		for _, field := range tp.List {
			for _, n := range field.Names {
				h.TypeParams = append(h.TypeParams, n.Name)
			}
		}
	}

	i := 0
	for _, field := range fn.Type.Params.List {
		typ := field.Type
		variadic := false
		if e, ok := typ.(*ast.Ellipsis); ok {
			typ = e.Elt
			variadic = true
		}
		typeStr := types.ExprString(typ)
		if len(field.Names) == 0 {
			h.Params = append(h.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: typeStr, Variadic: variadic})
			i++
			continue
		}
		for _, n := range field.Names {
			h.Params = append(h.Params, Param{Name: n.Name, Type: typeStr, Variadic: variadic})
			i++
		}
	}

	h.InferMsg = len(h.TypeParams) == 0 || mentionsAll(fn.Type.Params, h.TypeParams)
	return h
}

// mentionsAll reports whether every type parameter appears in some parameter
// type, which is when Go can infer the instantiation from the arguments.
func mentionsAll(params *ast.FieldList, typeParams []string) bool {
	seen := make(map[string]bool, len(typeParams))
	for _, field := range params.List {
		ast.Inspect(field.Type, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok {
				seen[id.Name] = true
			}
			return true
		})
	}
	for _, tp := range typeParams {
		if !seen[tp] {
			return false
		}
	}
	return true
}

// checkBreadcrumb enforces that dir/command.go, when present, holds nothing
// but a package clause and comments.
func checkBreadcrumb(dep, dir string) ([]byte, error) {
	path := filepath.Join(dir, breadcrumbFilename)
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, &ConfigurationError{Dependency: dep, Field: breadcrumbFilename, Reason: fmt.Sprintf("does not parse: %v", err)}
	}
	if len(file.Decls) > 0 {
		pos := fset.Position(file.Decls[0].Pos())
		return nil, &ConfigurationError{Dependency: dep, Field: breadcrumbFilename, Reason: fmt.Sprintf("must contain only comments, found declaration at line %d", pos.Line)}
	}
	return src, nil
}
