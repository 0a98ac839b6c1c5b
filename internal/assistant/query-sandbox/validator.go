// internal/assistant/query-sandbox/validator.go
package querysandbox

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"community-assistant/pkg/registry"
)

// rejection is a validation failure attributed to one layer.
type rejection struct {
	layer  string
	reason string
}

func (r *rejection) Error() string { return r.layer + ": " + r.reason }

func reject(layer, format string, args ...interface{}) *rejection {
	return &rejection{layer: layer, reason: fmt.Sprintf(format, args...)}
}

// checkLexical rejects over-long expressions and any blacklisted substring.
func checkLexical(expr string, cfg *Config) *rejection {
	if strings.TrimSpace(expr) == "" {
		return reject(LayerLexical, "empty expression")
	}
	if n := utf8.RuneCountInString(expr); n > cfg.MaxExpressionLength {
		return reject(LayerLexical, "expression length %d exceeds %d", n, cfg.MaxExpressionLength)
	}
	lower := strings.ToLower(expr)
	for _, word := range cfg.Blacklist {
		if strings.Contains(lower, word) {
			return reject(LayerLexical, "forbidden keyword %q", word)
		}
	}
	return nil
}

// checkStructural walks every node and rejects statements, private names
// and any call outside the whitelist.
func checkStructural(root *Node) *rejection {
	var visit func(n *Node, callee bool) *rejection
	visit = func(n *Node, callee bool) *rejection {
		if n == nil {
			return nil
		}
		switch n.Kind {
		case NodeAssign, NodeDelete, NodeImport:
			return reject(LayerStructural, "%s statements are not allowed", n.Kind)
		case NodeName:
			if strings.HasPrefix(n.Ident, "_") {
				return reject(LayerStructural, "private name %q is not allowed", n.Ident)
			}
			if callee && !allowedFunctions[n.Ident] {
				return reject(LayerStructural, "call to %s is not allowed", n.Ident)
			}
		case NodeAttribute:
			if strings.HasPrefix(n.Ident, "_") {
				return reject(LayerStructural, "private attribute %q is not allowed", n.Ident)
			}
			if callee {
				if !allowedMethods[n.Ident] {
					return reject(LayerStructural, "method %s is not allowed", n.Ident)
				}
			} else if n.Ident != "objects" {
				return reject(LayerStructural, "attribute %s is not allowed", n.Ident)
			}
			return visit(n.X, false)
		case NodeCall:
			if n.X.Kind != NodeName && n.X.Kind != NodeAttribute {
				return reject(LayerStructural, "only named functions and methods may be called")
			}
			if r := visit(n.X, true); r != nil {
				return r
			}
			for _, a := range n.Args {
				if r := visit(a, false); r != nil {
					return r
				}
			}
			return nil
		case NodeKeyword:
			if strings.HasPrefix(n.Ident, "_") {
				return reject(LayerStructural, "private keyword %q is not allowed", n.Ident)
			}
		case NodeStringLit, NodeNumberLit, NodeBoolLit, NodeList, NodeIndex, NodeSlice, NodeBinaryOr:
		default:
			return reject(LayerStructural, "unsupported node %s", n.Kind)
		}
		for _, c := range n.Children() {
			if r := visit(c, false); r != nil {
				return r
			}
		}
		return nil
	}
	return visit(root, false)
}

// checkRootNames fails closed: every free name must be a whitelisted record
// type or an allowed function in call position, and at least one record type
// must be referenced.
func checkRootNames(root *Node, reg *registry.RecordRegistry) *rejection {
	var found bool
	var visit func(n *Node, callee bool) *rejection
	visit = func(n *Node, callee bool) *rejection {
		switch n.Kind {
		case NodeName:
			if callee && allowedFunctions[n.Ident] {
				return nil
			}
			if _, ok := reg.Lookup(n.Ident); !ok {
				return reject(LayerSchema, "unknown name %s", n.Ident)
			}
			found = true
			return nil
		case NodeCall:
			if r := visit(n.X, true); r != nil {
				return r
			}
			for _, a := range n.Args {
				if r := visit(a, false); r != nil {
					return r
				}
			}
			return nil
		}
		for _, c := range n.Children() {
			if r := visit(c, false); r != nil {
				return r
			}
		}
		return nil
	}
	if r := visit(root, false); r != nil {
		return r
	}
	if !found {
		return reject(LayerSchema, "expression references no record type")
	}
	return nil
}
