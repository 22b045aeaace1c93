package sandbox

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"
)

// defaultDeniedBuiltins are reflective universe builtins rejected unless a
// construction-time allow-list re-enables them.
var defaultDeniedBuiltins = []string{"getattr", "hasattr", "dir"}

// checker walks action source before execution and rejects references to
// capabilities outside the allow-list. Aliasing cannot smuggle a capability
// past it: modules are only reachable through load statements with literal
// names, and builtins only through bare identifiers.
type checker struct {
	allowedModules map[string]bool
	deniedBuiltins map[string]bool
	protected      map[string]bool

	// skip holds identifiers that name something other than a value
	// reference: attribute names, keyword-argument names, parameters.
	skip  map[*syntax.Ident]bool
	fault *Fault
}

func checkSource(f *syntax.File, allowedModules, deniedBuiltins, protected map[string]bool) *Fault {
	c := &checker{
		allowedModules: allowedModules,
		deniedBuiltins: deniedBuiltins,
		protected:      protected,
		skip:           map[*syntax.Ident]bool{},
	}
	for _, stmt := range f.Stmts {
		syntax.Walk(stmt, c.visit)
		if c.fault != nil {
			return c.fault
		}
	}
	return nil
}

func (c *checker) visit(n syntax.Node) bool {
	if n == nil || c.fault != nil {
		return false
	}

	switch node := n.(type) {
	case *syntax.LoadStmt:
		name, _ := node.Module.Value.(string)
		if !c.allowedModules[name] {
			c.reject(node, FaultSafety, fmt.Sprintf("import of %q is not allowed", name))
			return false
		}
		for _, ident := range node.From {
			c.skip[ident] = true
		}
		for _, ident := range node.To {
			if c.protected[ident.Name] {
				c.reject(node, FaultSafety, fmt.Sprintf("cannot rebind %q: it is a registered tool", ident.Name))
				return false
			}
			c.skip[ident] = true
		}

	case *syntax.DotExpr:
		c.skip[node.Name] = true
		if strings.HasPrefix(node.Name.Name, "_") {
			c.reject(node, FaultSafety, fmt.Sprintf("access to attribute %q is not allowed", node.Name.Name))
			return false
		}

	case *syntax.CallExpr:
		c.skipKeywordNames(node.Args)

	case *syntax.DefStmt:
		if c.protected[node.Name.Name] {
			c.reject(node, FaultSafety, fmt.Sprintf("cannot rebind %q: it is a registered tool", node.Name.Name))
			return false
		}
		c.skip[node.Name] = true
		c.skipParamNames(node.Params)

	case *syntax.LambdaExpr:
		c.skipParamNames(node.Params)

	case *syntax.AssignStmt:
		if name, rebinds := c.rebindsProtected(node.LHS); rebinds {
			c.reject(node, FaultSafety, fmt.Sprintf("cannot rebind %q: it is a registered tool", name))
			return false
		}

	case *syntax.ForStmt:
		if name, rebinds := c.rebindsProtected(node.Vars); rebinds {
			c.reject(node, FaultSafety, fmt.Sprintf("cannot rebind %q: it is a registered tool", name))
			return false
		}

	case *syntax.Ident:
		if c.skip[node] {
			return true
		}
		if c.deniedBuiltins[node.Name] {
			c.reject(node, FaultSafety, fmt.Sprintf("use of builtin %q is not allowed", node.Name))
			return false
		}
	}

	return true
}

func (c *checker) reject(n syntax.Node, kind FaultKind, msg string) {
	start, _ := n.Span()
	c.fault = &Fault{
		Kind:    kind,
		Msg:     msg,
		Context: fmt.Sprintf("line %d", start.Line),
	}
}

// skipKeywordNames marks x in f(x=...) as a name, not a value reference.
func (c *checker) skipKeywordNames(args []syntax.Expr) {
	for _, arg := range args {
		bin, ok := arg.(*syntax.BinaryExpr)
		if !ok || bin.Op != syntax.EQ {
			continue
		}
		if ident, ok := bin.X.(*syntax.Ident); ok {
			c.skip[ident] = true
		}
	}
}

// skipParamNames marks parameter names, including defaulted ones.
func (c *checker) skipParamNames(params []syntax.Expr) {
	for _, param := range params {
		switch p := param.(type) {
		case *syntax.Ident:
			c.skip[p] = true
		case *syntax.BinaryExpr:
			if ident, ok := p.X.(*syntax.Ident); ok {
				c.skip[ident] = true
			}
		case *syntax.UnaryExpr:
			if ident, ok := p.X.(*syntax.Ident); ok {
				c.skip[ident] = true
			}
		}
	}
}

// rebindsProtected reports whether an assignment target would overwrite a
// registered tool binding. Destructuring targets are searched recursively.
func (c *checker) rebindsProtected(target syntax.Expr) (string, bool) {
	switch node := target.(type) {
	case *syntax.Ident:
		if c.protected[node.Name] {
			return node.Name, true
		}
	case *syntax.ParenExpr:
		return c.rebindsProtected(node.X)
	case *syntax.TupleExpr:
		for _, elem := range node.List {
			if name, rebinds := c.rebindsProtected(elem); rebinds {
				return name, true
			}
		}
	case *syntax.ListExpr:
		for _, elem := range node.List {
			if name, rebinds := c.rebindsProtected(elem); rebinds {
				return name, true
			}
		}
	}
	return "", false
}
