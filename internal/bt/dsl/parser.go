// Package dsl parses the behaviour-tree text format into a bt.Node tree.
//
// A file holds one tree block whose body is the root node:
//
//	tree ExampleTree {
//	    Selector Root {
//	        Sequence Combat {
//	            Condition EnemyCheck { detection_range: "8.0" }
//	            Action AttackEnemy { damage: 50 }
//	        }
//	        Action Wait { duration: "1.0" }
//	    }
//	}
//
// Composites (Sequence, Selector, Parallel) and decorators (Inverter, Repeat,
// Retry, Timeout) may hold properties and child nodes; leaves (Action,
// Condition) hold properties only and are resolved through a bt.Registry.
// Property values are kept as raw strings. '#' starts a comment that runs to
// the end of the line.
package dsl

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
)

// Keywords of the tree format.
const (
	KeywordTree      = "tree"
	KeywordSequence  = "Sequence"
	KeywordSelector  = "Selector"
	KeywordParallel  = "Parallel"
	KeywordInverter  = "Inverter"
	KeywordRepeat    = "Repeat"
	KeywordRetry     = "Retry"
	KeywordTimeout   = "Timeout"
	KeywordAction    = "Action"
	KeywordCondition = "Condition"
)

// Defaults applied to decorators before their properties are read.
const (
	DefaultRetryCount   = 3
	DefaultTimeoutAfter = 5.0
)

var parentKinds = map[string]func(name string) bt.Parent{
	KeywordSequence: func(name string) bt.Parent { return bt.NewSequence(name) },
	KeywordSelector: func(name string) bt.Parent { return bt.NewSelector(name) },
	KeywordParallel: func(name string) bt.Parent { return bt.NewParallel(name) },
	KeywordInverter: func(name string) bt.Parent { return bt.NewInverter(name) },
	KeywordRepeat:   func(name string) bt.Parent { return bt.NewRepeat(name, bt.Infinite, false) },
	KeywordRetry:    func(name string) bt.Parent { return bt.NewRetry(name, DefaultRetryCount, 0) },
	KeywordTimeout:  func(name string) bt.Parent { return bt.NewTimeout(name, DefaultTimeoutAfter, false) },
}

var leafKinds = map[string]bt.Category{
	KeywordAction:    bt.CategoryAction,
	KeywordCondition: bt.CategoryCondition,
}

// LeafName returns the node name given to a parsed leaf, e.g. "Action:Wait".
func LeafName(keyword, script string) string {
	return keyword + ":" + script
}

// Parser turns DSL text into node trees using a leaf Registry.
//
// Invariant: registry and logger are non-nil.
type Parser struct {
	registry *bt.Registry
	logger   *zap.Logger
}

// NewParser constructs a Parser.
//
// Precondition: registry must not be nil. A nil logger is replaced by a no-op logger.
func NewParser(registry *bt.Registry, logger *zap.Logger) *Parser {
	if registry == nil {
		panic("dsl.NewParser: registry must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{registry: registry, logger: logger}
}

// Registry returns the leaf registry used to resolve scripts.
func (p *Parser) Registry() *bt.Registry { return p.registry }

// ParseContent parses src into a tree.
//
// Postcondition: returns a non-nil root and nil error, or a nil root and an
// error that is a *Error wrapping ErrNoTree, ErrSyntax, ErrUnbalanced,
// ErrUnknownScript or a bt AddChild error. No partial tree is ever returned.
func (p *Parser) ParseContent(src string) (bt.Node, error) {
	root, err := p.parse(src)
	if err != nil {
		p.logger.Warn("dsl: parse failed", zap.Error(err))
		return nil, err
	}
	count := 0
	bt.Walk(root, func(bt.Node, int) bool { count++; return true })
	p.logger.Debug("dsl: parsed tree",
		zap.String("root", root.Name()),
		zap.Int("nodes", count),
	)
	return root, nil
}

// ParseFile reads path and parses its content.
//
// Postcondition: a missing file yields a nil root and an error wrapping
// fs.ErrNotExist.
func (p *Parser) ParseFile(path string) (bt.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("dsl.ParseFile: reading %q: %w", path, err)
		p.logger.Warn("dsl: cannot read tree file", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	root, err := p.parse(string(data))
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.File = path
		}
		p.logger.Warn("dsl: parse failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("dsl: parsed tree file",
		zap.String("path", path),
		zap.String("root", root.Name()),
	)
	return root, nil
}

func (p *Parser) parse(src string) (bt.Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if err := checkBraces(toks); err != nil {
		return nil, err
	}
	ps := &parseState{toks: toks, registry: p.registry}
	return ps.parseFile()
}

// checkBraces verifies that every '{' has a matching '}'.
func checkBraces(toks []token) error {
	var open []token
	for _, t := range toks {
		switch t.kind {
		case tokLBrace:
			open = append(open, t)
		case tokRBrace:
			if len(open) == 0 {
				return newError(t.line, t.col, ErrUnbalanced, "unexpected '}' with no matching '{'")
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		t := open[len(open)-1]
		return newError(t.line, t.col, ErrUnbalanced, "'{' is never closed")
	}
	return nil
}

type parseState struct {
	toks     []token
	pos      int
	registry *bt.Registry
}

func (ps *parseState) peek() token { return ps.toks[ps.pos] }

func (ps *parseState) peekAt(offset int) token {
	i := ps.pos + offset
	if i >= len(ps.toks) {
		return ps.toks[len(ps.toks)-1]
	}
	return ps.toks[i]
}

func (ps *parseState) next() token {
	t := ps.toks[ps.pos]
	if t.kind != tokEOF {
		ps.pos++
	}
	return t
}

func (ps *parseState) expect(kind tokenKind, context string) (token, error) {
	t := ps.next()
	if t.kind != kind {
		return t, newError(t.line, t.col, ErrSyntax, "%s: expected %s, found %s", context, kind, t.describe())
	}
	return t, nil
}

func (ps *parseState) parseFile() (bt.Node, error) {
	first := ps.peek()
	if first.kind == tokEOF {
		return nil, newError(first.line, first.col, ErrNoTree, "input is empty")
	}
	if first.kind != tokWord || first.text != KeywordTree {
		if !ps.hasTreeKeyword() {
			return nil, newError(first.line, first.col, ErrNoTree, "no 'tree' block found")
		}
		return nil, newError(first.line, first.col, ErrSyntax, "unexpected %s before tree block", first.describe())
	}
	ps.next()

	name := ps.next()
	if name.kind != tokWord || !isIdent(name.text) {
		return nil, newError(name.line, name.col, ErrSyntax, "'tree' must be followed by an identifier, found %s", name.describe())
	}
	if _, err := ps.expect(tokLBrace, "tree "+name.text); err != nil {
		return nil, err
	}
	if t := ps.peek(); t.kind == tokRBrace {
		return nil, newError(t.line, t.col, ErrSyntax, "tree %s has no root node", name.text)
	}
	root, err := ps.parseNode()
	if err != nil {
		return nil, err
	}
	if t := ps.peek(); t.kind != tokRBrace {
		return nil, newError(t.line, t.col, ErrSyntax, "tree %s must contain exactly one root node, found %s", name.text, t.describe())
	}
	ps.next()
	if t := ps.peek(); t.kind != tokEOF {
		return nil, newError(t.line, t.col, ErrSyntax, "unexpected %s after tree block", t.describe())
	}
	return root, nil
}

func (ps *parseState) hasTreeKeyword() bool {
	for _, t := range ps.toks {
		if t.kind == tokWord && t.text == KeywordTree {
			return true
		}
	}
	return false
}

func (ps *parseState) parseNode() (bt.Node, error) {
	kw := ps.next()
	if kw.kind != tokWord {
		return nil, newError(kw.line, kw.col, ErrSyntax, "expected a node keyword, found %s", kw.describe())
	}
	if category, ok := leafKinds[kw.text]; ok {
		return ps.parseLeaf(kw, category)
	}
	if ctor, ok := parentKinds[kw.text]; ok {
		return ps.parseParent(kw, ctor)
	}
	return nil, newError(kw.line, kw.col, ErrSyntax, "unknown node type %q", kw.text)
}

func (ps *parseState) header(kw token) (token, error) {
	name := ps.next()
	if name.kind != tokWord || !isIdent(name.text) {
		return name, newError(name.line, name.col, ErrSyntax, "%s must be followed by an identifier, found %s", kw.text, name.describe())
	}
	if _, err := ps.expect(tokLBrace, kw.text+" "+name.text); err != nil {
		return name, err
	}
	return name, nil
}

func (ps *parseState) parseLeaf(kw token, category bt.Category) (bt.Node, error) {
	name, err := ps.header(kw)
	if err != nil {
		return nil, err
	}
	factory, ok := ps.registry.Lookup(category, name.text)
	if !ok {
		return nil, newError(name.line, name.col, ErrUnknownScript, "%s %q is not registered", kw.text, name.text)
	}
	node := factory()
	if node == nil {
		return nil, newError(name.line, name.col, ErrUnknownScript, "%s %q factory returned nil", kw.text, name.text)
	}
	for {
		t := ps.peek()
		if t.kind == tokRBrace {
			ps.next()
			break
		}
		if t.kind == tokWord && ps.peekAt(1).kind != tokColon {
			return nil, newError(t.line, t.col, ErrSyntax, "%s %s cannot contain child nodes", kw.text, name.text)
		}
		if err := ps.parseProperty(node); err != nil {
			return nil, err
		}
	}
	node.SetName(LeafName(kw.text, name.text))
	return node, nil
}

func (ps *parseState) parseParent(kw token, ctor func(string) bt.Parent) (bt.Node, error) {
	name, err := ps.header(kw)
	if err != nil {
		return nil, err
	}
	node := ctor(name.text)
	for {
		t := ps.peek()
		switch {
		case t.kind == tokRBrace:
			ps.next()
			return node, nil
		case t.kind == tokWord && ps.peekAt(1).kind == tokColon:
			if err := ps.parseProperty(node); err != nil {
				return nil, err
			}
		default:
			child, err := ps.parseNode()
			if err != nil {
				return nil, err
			}
			if err := node.AddChild(child); err != nil {
				return nil, &Error{Line: t.line, Col: t.col, Msg: fmt.Sprintf("%s %s: %v", kw.text, name.text, err), Err: err}
			}
		}
	}
}

func (ps *parseState) parseProperty(node bt.Node) error {
	key := ps.next()
	if key.kind != tokWord || !isIdent(key.text) {
		return newError(key.line, key.col, ErrSyntax, "expected a property name, found %s", key.describe())
	}
	if _, err := ps.expect(tokColon, "property "+key.text); err != nil {
		return err
	}
	val := ps.next()
	if val.kind != tokWord && val.kind != tokString {
		return newError(val.line, val.col, ErrSyntax, "property %q has no value", key.text)
	}
	node.SetProperty(key.text, val.text)
	return nil
}
