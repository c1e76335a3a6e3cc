package bt

import (
	behaviortree "github.com/joeycumines/go-behaviortree"
	"go.uber.org/zap"
)

// Status converts r to its go-behaviortree equivalent.
func (r Result) Status() behaviortree.Status {
	switch r {
	case Success:
		return behaviortree.Success
	case Running:
		return behaviortree.Running
	default:
		return behaviortree.Failure
	}
}

// ResultFromStatus converts a go-behaviortree status; unknown values map to
// Failure.
func ResultFromStatus(s behaviortree.Status) Result {
	switch s {
	case behaviortree.Success:
		return Success
	case behaviortree.Running:
		return Running
	default:
		return Failure
	}
}

// ToBehaviorTree exposes an initialized tree as a go-behaviortree node whose
// tick executes n once.
//
// Precondition: n must be initialized.
func ToBehaviorTree(n Node) behaviortree.Node {
	return behaviortree.New(func([]behaviortree.Node) (behaviortree.Status, error) {
		return n.Execute().Status(), nil
	})
}

// BehaviorTreeLeaf adapts a go-behaviortree node into a leaf.
type BehaviorTreeLeaf struct {
	BaseNode
	node behaviortree.Node
}

// FromBehaviorTree wraps node as a leaf named name. Tick errors are logged at
// Warn level and reported as Failure.
func FromBehaviorTree(name string, node behaviortree.Node) *BehaviorTreeLeaf {
	l := &BehaviorTreeLeaf{node: node}
	l.SetName(name)
	return l
}

// Execute ticks the wrapped node.
func (l *BehaviorTreeLeaf) Execute() Result {
	if l.node == nil {
		l.Logger().Warn("bt: behaviortree leaf has no node")
		return Failure
	}
	status, err := l.node.Tick()
	if err != nil {
		l.Logger().Warn("bt: behaviortree tick failed", zap.Error(err))
		return Failure
	}
	return ResultFromStatus(status)
}
