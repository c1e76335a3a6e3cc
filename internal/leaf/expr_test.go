package leaf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
	"github.com/cory-johannsen/behave/internal/leaf"
	"github.com/cory-johannsen/behave/internal/testutil"
)

func exprNode(t *testing.T, props map[string]string) (bt.Node, *blackboard.Blackboard) {
	t.Helper()
	n := build(t, builtins(t, leaf.Deps{}), bt.CategoryCondition, "Expr", props)
	_, bb := testutil.Init(t, n, 0)
	return n, bb
}

func TestExpr_BlackboardVariables(t *testing.T) {
	n, bb := exprNode(t, map[string]string{"expr": "health < 30 && !fleeing"})
	bb.SetValue("health", 12)
	bb.SetValue("fleeing", false)
	assert.Equal(t, bt.Success, n.Execute())

	bb.SetValue("health", 45)
	assert.Equal(t, bt.Failure, n.Execute())
}

func TestExpr_PropertiesUnderProp(t *testing.T) {
	n, bb := exprNode(t, map[string]string{
		"expr":            "enemy_distance != nil && enemy_distance <= prop.detection_range",
		"detection_range": `"8.0"`,
	})
	assert.Equal(t, bt.Failure, n.Execute(), "undefined variable is nil")

	bb.SetValue("enemy_distance", 6.5)
	assert.Equal(t, bt.Success, n.Execute())

	bb.SetValue("enemy_distance", 9)
	assert.Equal(t, bt.Failure, n.Execute())
}

func TestExpr_ReservedPropKeyIsShadowed(t *testing.T) {
	n := build(t, builtins(t, leaf.Deps{}), bt.CategoryCondition, "Expr",
		map[string]string{"expr": "prop.limit == 3", "limit": "3"})
	owner, logs := testutil.NewObservedOwner(t, 0)
	bb := blackboard.New(nil)
	bb.SetValue(leaf.PropEnvKey, map[string]any{"limit": 99})
	n.Initialize(owner, bb)

	assert.Equal(t, bt.Success, n.Execute(), "node properties win over the blackboard key")
	assert.Equal(t, bt.Success, n.Execute())
	assert.Equal(t, 1, logs.FilterMessage("leaf: blackboard key is reserved in expressions and hidden").Len())
}

func TestExpr_CompileErrorFails(t *testing.T) {
	n, _ := exprNode(t, map[string]string{"expr": "health <"})
	assert.Equal(t, bt.Failure, n.Execute())
	assert.Error(t, n.(*leaf.Expr).Err())

	empty, _ := exprNode(t, nil)
	assert.Equal(t, bt.Failure, empty.Execute())
}

func TestExpr_RuntimeErrorFails(t *testing.T) {
	n, bb := exprNode(t, map[string]string{"expr": "name < 3"})
	bb.SetValue("name", "orc")
	assert.Equal(t, bt.Failure, n.Execute())
}

func TestCompileCondition_RejectsNonBool(t *testing.T) {
	_, err := leaf.CompileCondition(`"text"`)
	assert.Error(t, err)
	p, err := leaf.CompileCondition("x > 1")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

// Property: an Expr threshold condition agrees with the Go comparison.
func TestProperty_ExprThreshold(t *testing.T) {
	n, bb := exprNode(t, map[string]string{"expr": "value >= prop.limit", "limit": "50"})
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.IntRange(-1000, 1000).Draw(rt, "value")
		bb.SetValue("value", v)
		want := bt.Failure
		if v >= 50 {
			want = bt.Success
		}
		if got := n.Execute(); got != want {
			rt.Fatalf("value=%d: got %s want %s", v, got, want)
		}
	})
}
