// Package expr implements the restricted field-expression algebra used
// by filter, sort, and aggregation stages. Expressions reference
// sample fields with F("path") and combine them with arithmetic,
// comparisons, logic, and a fixed method set. Evaluation is a tree
// walk over sample documents; no host-language execution is possible.
package expr

// Node is a node of the parsed expression tree.
type Node interface {
	node()
}

// Literal is a number, string, boolean, or null constant.
type Literal struct {
	Value interface{}
}

// FieldRef is an F("path") reference.
type FieldRef struct {
	Path string
}

// ListLit is a bracketed list of expressions.
type ListLit struct {
	Elems []Node
}

// Unary is a prefix operation: ! or -.
type Unary struct {
	Op      string
	Operand Node
}

// Binary is an infix operation.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Index is a bracketed subscript: recv[i].
type Index struct {
	Recv  Node
	Index Node
}

// Call is a whitelisted method call: recv.method(args...).
type Call struct {
	Recv   Node
	Method string
	Args   []Node
}

func (*Literal) node()  {}
func (*FieldRef) node() {}
func (*ListLit) node()  {}
func (*Unary) node()    {}
func (*Binary) node()   {}
func (*Index) node()    {}
func (*Call) node()     {}
