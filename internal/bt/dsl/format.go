package dsl

import (
	"sort"
	"strings"

	"github.com/cory-johannsen/behave/internal/bt"
)

type propertied interface {
	Properties() map[string]string
}

// Format renders root as DSL text under a tree named treeName. Property keys
// are written in sorted order and every value is quoted, so parsing the output
// with the same registry yields an equivalent tree.
func Format(treeName string, root bt.Node) string {
	var b strings.Builder
	b.WriteString(KeywordTree + " " + treeName + " {\n")
	if root != nil {
		formatNode(&b, root, 1)
	}
	b.WriteString("}\n")
	return b.String()
}

func formatNode(b *strings.Builder, n bt.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	keyword, name := nodeHeader(n)
	b.WriteString(indent + keyword + " " + name + " {")

	var props map[string]string
	if p, ok := n.(propertied); ok {
		props = p.Properties()
	}
	children := n.Children()
	if len(props) == 0 && len(children) == 0 {
		b.WriteString(" }\n")
		return
	}
	b.WriteString("\n")

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(indent + "    " + k + ": " + quote(props[k]) + "\n")
	}
	for _, c := range children {
		formatNode(b, c, depth+1)
	}
	b.WriteString(indent + "}\n")
}

func nodeHeader(n bt.Node) (string, string) {
	switch n.(type) {
	case *bt.Sequence:
		return KeywordSequence, n.Name()
	case *bt.Selector:
		return KeywordSelector, n.Name()
	case *bt.Parallel:
		return KeywordParallel, n.Name()
	case *bt.Inverter:
		return KeywordInverter, n.Name()
	case *bt.Repeat:
		return KeywordRepeat, n.Name()
	case *bt.Retry:
		return KeywordRetry, n.Name()
	case *bt.Timeout:
		return KeywordTimeout, n.Name()
	}
	if kw, script, ok := strings.Cut(n.Name(), ":"); ok {
		if _, leaf := leafKinds[kw]; leaf {
			return kw, script
		}
	}
	return KeywordAction, n.Name()
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
