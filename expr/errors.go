package expr

import "fmt"

// UnboundNameError reports a variable or parameter that is referenced
// but was never registered
type UnboundNameError struct {
	Name string
}

func (e *UnboundNameError) Error() string {
	return fmt.Sprintf("unbound name %q", e.Name)
}

// UnsupportedError reports an operation the engine cannot perform on a
// particular sub-expression
type UnsupportedError struct {
	Op   string
	Expr string
}

func (e *UnsupportedError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("unsupported operation: %s", e.Op)
	}
	return fmt.Sprintf("unsupported operation %s in %s", e.Op, e.Expr)
}

// Unsupported builds an UnsupportedError naming the offending node
func Unsupported(op string, n *Node) error {
	e := &UnsupportedError{Op: op}
	if n != nil {
		e.Expr = n.String()
	}
	return e
}
