// Package leaf provides generic Action and Condition leaves and the YAML
// catalog that aliases them under host-specific script names.
//
// None of these leaves carry game semantics; they move data through the
// blackboard, measure time, evaluate expressions and delegate to Lua.
package leaf

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/scripting"
)

// Kind names a builtin leaf implementation.
type Kind string

// Builtin leaf kinds.
const (
	KindWait       Kind = "Wait"
	KindSetValue   Kind = "SetValue"
	KindClearValue Kind = "ClearValue"
	KindLog        Kind = "Log"
	KindSucceed    Kind = "Succeed"
	KindFail       Kind = "Fail"
	KindRunning    Kind = "Running"
	KindHasKey     Kind = "HasKey"
	KindExpr       Kind = "Expr"
	KindScript     Kind = "Script"
)

// Deps carries the collaborators some leaves need.
type Deps struct {
	// Scripts runs Script leaves. When nil, Script leaves always fail.
	Scripts *scripting.Manager
	// ScriptVM selects the Lua VM; empty uses scripting.GlobalVM.
	ScriptVM string
}

func (d Deps) vm() string {
	if d.ScriptVM == "" {
		return scripting.GlobalVM
	}
	return d.ScriptVM
}

// kindSpec describes one builtin kind: the categories it may be registered
// under and how to build it.
type kindSpec struct {
	categories []bt.Category
	build      func(deps Deps, category bt.Category) bt.Node
}

var kinds = map[Kind]kindSpec{
	KindWait: {
		categories: []bt.Category{bt.CategoryAction},
		build:      func(Deps, bt.Category) bt.Node { return &Wait{} },
	},
	KindSetValue: {
		categories: []bt.Category{bt.CategoryAction},
		build:      func(Deps, bt.Category) bt.Node { return &SetValue{} },
	},
	KindClearValue: {
		categories: []bt.Category{bt.CategoryAction},
		build:      func(Deps, bt.Category) bt.Node { return &ClearValue{} },
	},
	KindLog: {
		categories: []bt.Category{bt.CategoryAction},
		build:      func(Deps, bt.Category) bt.Node { return &Log{} },
	},
	KindSucceed: {
		categories: []bt.Category{bt.CategoryAction, bt.CategoryCondition},
		build:      func(Deps, bt.Category) bt.Node { return &Constant{Result: bt.Success} },
	},
	KindFail: {
		categories: []bt.Category{bt.CategoryAction, bt.CategoryCondition},
		build:      func(Deps, bt.Category) bt.Node { return &Constant{Result: bt.Failure} },
	},
	KindRunning: {
		categories: []bt.Category{bt.CategoryAction},
		build:      func(Deps, bt.Category) bt.Node { return &Constant{Result: bt.Running} },
	},
	KindHasKey: {
		categories: []bt.Category{bt.CategoryCondition},
		build:      func(Deps, bt.Category) bt.Node { return &HasKey{} },
	},
	KindExpr: {
		categories: []bt.Category{bt.CategoryCondition},
		build:      func(Deps, bt.Category) bt.Node { return &Expr{} },
	},
	KindScript: {
		categories: []bt.Category{bt.CategoryAction, bt.CategoryCondition},
		build: func(deps Deps, category bt.Category) bt.Node {
			return &Script{scripts: deps.Scripts, vm: deps.vm(), condition: category == bt.CategoryCondition}
		},
	},
}

// Kinds returns every builtin kind in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports reports whether kind may be registered under category.
func Supports(kind Kind, category bt.Category) bool {
	spec, ok := kinds[kind]
	if !ok {
		return false
	}
	for _, c := range spec.categories {
		if c == category {
			return true
		}
	}
	return false
}

// Factory returns a factory for kind under category.
//
// Postcondition: returns an error when kind is unknown or not valid for category.
func Factory(kind Kind, category bt.Category, deps Deps) (bt.Factory, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("leaf.Factory: unknown kind %q", kind)
	}
	if !Supports(kind, category) {
		return nil, fmt.Errorf("leaf.Factory: kind %q cannot be a %s", kind, category)
	}
	return func() bt.Node { return spec.build(deps, category) }, nil
}

// RegisterBuiltins registers every builtin kind under its own name in each
// category it supports.
//
// Postcondition: returns the first registration error, e.g. a name collision.
func RegisterBuiltins(reg *bt.Registry, deps Deps) error {
	for _, kind := range Kinds() {
		for _, category := range kinds[kind].categories {
			f, err := Factory(kind, category, deps)
			if err != nil {
				return err
			}
			if err := reg.Register(category, string(kind), f); err != nil {
				return fmt.Errorf("leaf.RegisterBuiltins: %w", err)
			}
		}
	}
	return nil
}
