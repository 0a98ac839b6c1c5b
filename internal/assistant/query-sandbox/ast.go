// internal/assistant/query-sandbox/ast.go
package querysandbox

import (
	"fmt"
	"strings"
)

// NodeKind enumerates every node the parser can produce. The validator and
// the interpreter switch over it exhaustively.
type NodeKind int

const (
	NodeName NodeKind = iota
	NodeStringLit
	NodeNumberLit
	NodeBoolLit
	NodeList
	NodeAttribute
	NodeIndex
	NodeSlice
	NodeCall
	NodeKeyword
	NodeBinaryOr
	NodeAssign
	NodeDelete
	NodeImport
)

var nodeKindNames = [...]string{
	NodeName:      "Name",
	NodeStringLit: "StringLit",
	NodeNumberLit: "NumberLit",
	NodeBoolLit:   "BoolLit",
	NodeList:      "List",
	NodeAttribute: "Attribute",
	NodeIndex:     "Index",
	NodeSlice:     "Slice",
	NodeCall:      "Call",
	NodeKeyword:   "Keyword",
	NodeBinaryOr:  "BinaryOr",
	NodeAssign:    "Assign",
	NodeDelete:    "Delete",
	NodeImport:    "Import",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is one AST node. Which fields are meaningful depends on Kind:
//
//	Name       Ident
//	StringLit  Str
//	NumberLit  Num, IsInt
//	BoolLit    Bool
//	List       Args (elements)
//	Attribute  X, Ident
//	Index      X, Low
//	Slice      X, Low, High (either may be nil)
//	Call       X (callee), Args (positional and Keyword nodes)
//	Keyword    Ident, Value
//	BinaryOr   Left, Right
//	Assign     Ident, Value
//	Delete     X
//	Import     Ident (module path)
type Node struct {
	Kind  NodeKind
	Pos   int
	Ident string
	Str   string
	Num   float64
	IsInt bool
	Bool  bool

	X           *Node
	Low, High   *Node
	Left, Right *Node
	Value       *Node
	Args        []*Node
}

// Children returns every direct child, in source order.
func (n *Node) Children() []*Node {
	var out []*Node
	add := func(c *Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	add(n.X)
	add(n.Low)
	add(n.High)
	add(n.Left)
	add(n.Right)
	out = append(out, n.Args...)
	add(n.Value)
	return out
}

// Walk visits n and its descendants depth-first, stopping at the first
// error fn returns.
func Walk(n *Node, fn func(*Node) error) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.Children() {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// String renders the node back to expression syntax. Used in logs and tests.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case NodeName:
		return n.Ident
	case NodeStringLit:
		return fmt.Sprintf("%q", n.Str)
	case NodeNumberLit:
		if n.IsInt {
			return fmt.Sprintf("%d", int64(n.Num))
		}
		return fmt.Sprintf("%g", n.Num)
	case NodeBoolLit:
		if n.Bool {
			return "True"
		}
		return "False"
	case NodeList:
		return "[" + joinNodes(n.Args) + "]"
	case NodeAttribute:
		return n.X.String() + "." + n.Ident
	case NodeIndex:
		return n.X.String() + "[" + n.Low.String() + "]"
	case NodeSlice:
		return n.X.String() + "[" + n.Low.String() + ":" + n.High.String() + "]"
	case NodeCall:
		return n.X.String() + "(" + joinNodes(n.Args) + ")"
	case NodeKeyword:
		return n.Ident + "=" + n.Value.String()
	case NodeBinaryOr:
		return n.Left.String() + " | " + n.Right.String()
	case NodeAssign:
		return n.Ident + " = " + n.Value.String()
	case NodeDelete:
		return "del " + n.X.String()
	case NodeImport:
		return "import " + n.Ident
	}
	return "?"
}

func joinNodes(nodes []*Node) string {
	parts := make([]string, len(nodes))
	for i, a := range nodes {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
