package leaf

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// PropEnvKey is the environment variable under which an Expr leaf exposes its
// own properties, coerced to numbers or booleans where they parse as such.
// The name is reserved: a blackboard key "prop" is not visible to
// expressions, and its presence is logged once per node.
const PropEnvKey = "prop"

// Expr is a Condition that evaluates a boolean expr-lang expression against a
// snapshot of the blackboard. Blackboard keys are top-level variables;
// undefined variables evaluate to nil.
//
//	Condition EnemyCheck { expr: "enemy_distance <= prop.detection_range" detection_range: 8 }
//
// Properties: expr.
type Expr struct {
	bt.BaseNode
	program *vm.Program
	props   map[string]any
	err     error
	// shadowLogged is set once the reserved-key warning has been written.
	shadowLogged bool
}

// Initialize binds the node and compiles expr.
func (e *Expr) Initialize(owner bt.Owner, bb *blackboard.Blackboard) {
	e.BaseNode.Initialize(owner, bb)
	e.program, e.err = CompileCondition(e.StringProperty("expr", ""))
	if e.err != nil {
		e.Logger().Warn("leaf: expression does not compile", zap.Error(e.err))
	}
	e.shadowLogged = false
	e.props = make(map[string]any)
	for k, v := range e.Properties() {
		if k != "expr" {
			e.props[k] = coerce(v)
		}
	}
}

// Execute evaluates the expression.
//
// Postcondition: Success when it yields true; Failure when it yields false,
// failed to compile or errors at run time.
func (e *Expr) Execute() bt.Result {
	if e.err != nil || e.program == nil || e.Blackboard() == nil {
		return bt.Failure
	}
	env := e.Blackboard().Snapshot()
	if _, clash := env[PropEnvKey]; clash && !e.shadowLogged {
		e.shadowLogged = true
		e.Logger().Warn("leaf: blackboard key is reserved in expressions and hidden",
			zap.String("key", PropEnvKey),
		)
	}
	env[PropEnvKey] = e.props
	out, err := expr.Run(e.program, env)
	if err != nil {
		e.Logger().Debug("leaf: expression evaluation failed", zap.Error(err))
		return bt.Failure
	}
	if ok, _ := out.(bool); ok {
		return bt.Success
	}
	return bt.Failure
}

// Err returns the compile error, if any.
func (e *Expr) Err() error { return e.err }

// CompileCondition compiles src as a boolean expression over a dynamic
// environment.
func CompileCondition(src string) (*vm.Program, error) {
	if src == "" {
		return nil, fmt.Errorf("leaf.CompileCondition: expression is empty")
	}
	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("leaf.CompileCondition: %w", err)
	}
	return program, nil
}

func coerce(raw string) any {
	s := bt.Unquote(raw)
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
