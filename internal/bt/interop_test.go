package bt_test

import (
	"errors"
	"testing"

	behaviortree "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/testutil"
)

func TestToBehaviorTree_TicksTree(t *testing.T) {
	seq := bt.NewSequence("S")
	require.NoError(t, seq.AddChild(testutil.NewScriptedLeaf("a", bt.Running, bt.Success)))
	testutil.Init(t, seq, 0)

	node := bt.ToBehaviorTree(seq)
	status, err := node.Tick()
	require.NoError(t, err)
	assert.Equal(t, behaviortree.Running, status)

	status, err = node.Tick()
	require.NoError(t, err)
	assert.Equal(t, behaviortree.Success, status)
}

func TestFromBehaviorTree_MapsStatus(t *testing.T) {
	leaf := bt.FromBehaviorTree("Action:Legacy", behaviortree.New(func([]behaviortree.Node) (behaviortree.Status, error) {
		return behaviortree.Success, nil
	}))
	testutil.Init(t, leaf, 0)
	assert.Equal(t, bt.Success, leaf.Execute())
	assert.Equal(t, "Action:Legacy", leaf.Name())
}

func TestFromBehaviorTree_ErrorIsFailure(t *testing.T) {
	leaf := bt.FromBehaviorTree("Action:Broken", behaviortree.New(func([]behaviortree.Node) (behaviortree.Status, error) {
		return behaviortree.Running, errors.New("boom")
	}))
	owner, logs := testutil.NewObservedOwner(t, 0)
	leaf.Initialize(owner, nil)

	assert.Equal(t, bt.Failure, leaf.Execute())
	assert.Equal(t, 1, logs.FilterMessage("bt: behaviortree tick failed").Len())
}

func TestResult_StatusRoundTrip(t *testing.T) {
	for _, r := range []bt.Result{bt.Success, bt.Failure, bt.Running} {
		assert.Equal(t, r, bt.ResultFromStatus(r.Status()))
	}
	assert.Equal(t, "running", bt.Running.String())
	assert.Equal(t, "unknown", bt.Result(42).String())
}
