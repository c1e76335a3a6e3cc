package bt

import (
	"errors"
	"math"

	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// ErrDecoratorFull is returned by AddChild on a decorator that already has a
// child. The existing child is kept.
var ErrDecoratorFull = errors.New("bt: decorator already has a child")

// Decorator wraps exactly one child.
type Decorator struct {
	BaseNode
	child Node
}

// AddChild sets the wrapped child.
//
// Postcondition: returns ErrDecoratorFull if a child is already set.
func (d *Decorator) AddChild(child Node) error {
	if child == nil {
		return ErrNilChild
	}
	if d.child != nil {
		return ErrDecoratorFull
	}
	d.child = child
	return nil
}

// Child returns the wrapped child, or nil.
func (d *Decorator) Child() Node { return d.child }

// Children returns the wrapped child as a one-element slice, or nil.
func (d *Decorator) Children() []Node {
	if d.child == nil {
		return nil
	}
	return []Node{d.child}
}

// Initialize binds the decorator and its child.
func (d *Decorator) Initialize(owner Owner, bb *blackboard.Blackboard) {
	d.BaseNode.Initialize(owner, bb)
	if d.child != nil {
		d.child.Initialize(owner, bb)
	}
}

// Reset resets the child.
func (d *Decorator) Reset() {
	if d.child != nil {
		d.child.Reset()
	}
}

func (d *Decorator) missingChild() Result {
	d.Logger().Warn("bt: decorator has no child")
	return Failure
}

// Inverter swaps Success and Failure; Running passes through.
type Inverter struct {
	Decorator
}

// NewInverter returns an Inverter named name.
func NewInverter(name string) *Inverter {
	i := &Inverter{}
	i.SetName(name)
	return i
}

// Execute runs the child and inverts a terminal result.
func (i *Inverter) Execute() Result {
	if i.child == nil {
		return i.missingChild()
	}
	switch i.child.Execute() {
	case Success:
		return Failure
	case Failure:
		return Success
	default:
		return Running
	}
}

// Infinite is the Repeat count meaning "never stop".
const Infinite = -1

// Repeat runs its child once per Execute until it has completed maxCount
// times.
//
// Properties: max_count (int, -1 = infinite), stop_on_failure (bool).
type Repeat struct {
	Decorator
	maxCount      int
	stopOnFailure bool
	currentCount  int
	finished      bool
}

// NewRepeat returns a Repeat named name.
func NewRepeat(name string, maxCount int, stopOnFailure bool) *Repeat {
	r := &Repeat{maxCount: maxCount, stopOnFailure: stopOnFailure}
	r.SetName(name)
	return r
}

// Initialize binds the node and reads max_count and stop_on_failure.
func (r *Repeat) Initialize(owner Owner, bb *blackboard.Blackboard) {
	r.Decorator.Initialize(owner, bb)
	r.maxCount = r.IntProperty("max_count", r.maxCount)
	r.stopOnFailure = r.BoolProperty("stop_on_failure", r.stopOnFailure)
	if r.maxCount < Infinite {
		r.maxCount = Infinite
	}
}

// Execute runs the child once.
//
// Postcondition: Failure when the child fails and stopOnFailure is set;
// Success once currentCount reaches maxCount; Running otherwise. The child is
// reset after every terminal result so the next iteration restarts it.
func (r *Repeat) Execute() Result {
	if r.child == nil {
		return r.missingChild()
	}
	if r.finished {
		r.finished = false
		r.currentCount = 0
	}
	if r.maxCount == 0 {
		r.finished = true
		return Success
	}
	res := r.child.Execute()
	if res == Running {
		return Running
	}
	r.child.Reset()
	if res == Failure && r.stopOnFailure {
		r.finished = true
		return Failure
	}
	r.currentCount++
	if r.maxCount != Infinite && r.currentCount >= r.maxCount {
		r.finished = true
		return Success
	}
	return Running
}

// CurrentCount returns the number of completed iterations in this run.
func (r *Repeat) CurrentCount() int { return r.currentCount }

// MaxCount returns the configured iteration limit.
func (r *Repeat) MaxCount() int { return r.maxCount }

// Reset clears the iteration count and resets the child.
func (r *Repeat) Reset() {
	r.currentCount = 0
	r.finished = false
	r.Decorator.Reset()
}

// Retry re-runs a failing child up to maxRetries more times, waiting
// retryDelay seconds between attempts.
//
// Properties: max_retries (int), retry_delay (seconds).
//
// Invariant: waitElapsed is only meaningful while waiting is set.
type Retry struct {
	Decorator
	maxRetries     int
	retryDelay     float64
	currentRetries int
	waiting        bool
	waitElapsed    float64
}

// NewRetry returns a Retry named name.
func NewRetry(name string, maxRetries int, retryDelay float64) *Retry {
	r := &Retry{maxRetries: maxRetries, retryDelay: retryDelay}
	r.SetName(name)
	return r
}

// Initialize binds the node and reads max_retries and retry_delay.
func (r *Retry) Initialize(owner Owner, bb *blackboard.Blackboard) {
	r.Decorator.Initialize(owner, bb)
	r.maxRetries = r.IntProperty("max_retries", r.maxRetries)
	r.retryDelay = r.FloatProperty("retry_delay", r.retryDelay)
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	if r.retryDelay < 0 {
		r.retryDelay = 0
	}
}

// Execute runs or waits to re-run the child.
//
// Postcondition: Success as soon as the child succeeds; Running while the
// child runs or a retry is pending; Failure on the Execute after the failure
// that exhausts the budget (currentRetries > maxRetries), without waiting out
// retryDelay. Every other failed attempt increments currentRetries and starts
// a retryDelay wait.
func (r *Retry) Execute() Result {
	if r.child == nil {
		return r.missingChild()
	}
	if r.currentRetries > r.maxRetries {
		r.currentRetries = 0
		return Failure
	}
	if r.waiting {
		r.waitElapsed += r.DeltaTime()
		if r.waitElapsed < r.retryDelay {
			return Running
		}
		r.waiting = false
		r.waitElapsed = 0
		r.child.Reset()
	}
	switch r.child.Execute() {
	case Success:
		r.currentRetries = 0
		return Success
	case Running:
		return Running
	default:
		r.currentRetries++
		r.waiting = r.currentRetries <= r.maxRetries
		r.waitElapsed = 0
		return Running
	}
}

// CurrentRetries returns the number of failed attempts in this run.
func (r *Retry) CurrentRetries() int { return r.currentRetries }

// IsWaitingForRetry reports whether a retry delay is in progress.
func (r *Retry) IsWaitingForRetry() bool { return r.waiting }

// Reset clears the retry count and any pending wait, and resets the child.
func (r *Retry) Reset() {
	r.currentRetries = 0
	r.waiting = false
	r.waitElapsed = 0
	r.Decorator.Reset()
}

// Timeout bounds how long its child may keep running.
//
// Properties: timeout or duration (seconds), success_on_timeout (bool).
type Timeout struct {
	Decorator
	timeoutDuration  float64
	successOnTimeout bool
	elapsedTime      float64
	isRunning        bool
}

// NewTimeout returns a Timeout named name.
func NewTimeout(name string, duration float64, successOnTimeout bool) *Timeout {
	t := &Timeout{timeoutDuration: duration, successOnTimeout: successOnTimeout}
	t.SetName(name)
	return t
}

// Initialize binds the node and reads timeout/duration and success_on_timeout.
func (t *Timeout) Initialize(owner Owner, bb *blackboard.Blackboard) {
	t.Decorator.Initialize(owner, bb)
	t.timeoutDuration = t.FloatProperty("duration", t.timeoutDuration)
	t.timeoutDuration = t.FloatProperty("timeout", t.timeoutDuration)
	t.successOnTimeout = t.BoolProperty("success_on_timeout", t.successOnTimeout)
	if t.timeoutDuration < 0 {
		t.timeoutDuration = 0
	}
}

// Execute advances the clock by the owner's delta and runs the child while
// time remains.
//
// Postcondition: on reaching the bound returns Success if successOnTimeout,
// else Failure, and resets the child; a terminal child result is forwarded
// and stops the clock; Running otherwise.
func (t *Timeout) Execute() Result {
	if t.child == nil {
		return t.missingChild()
	}
	if !t.isRunning {
		t.isRunning = true
		t.elapsedTime = 0
	}
	t.elapsedTime += t.DeltaTime()
	if t.elapsedTime >= t.timeoutDuration {
		t.isRunning = false
		t.child.Reset()
		if t.successOnTimeout {
			return Success
		}
		return Failure
	}
	res := t.child.Execute()
	if res != Running {
		t.isRunning = false
	}
	return res
}

// IsRunning reports whether the clock is active.
func (t *Timeout) IsRunning() bool { return t.isRunning }

// ElapsedTime returns the seconds counted in the current or last run.
func (t *Timeout) ElapsedTime() float64 { return t.elapsedTime }

// RemainingTime returns the seconds left before the bound, never negative.
func (t *Timeout) RemainingTime() float64 {
	return math.Max(0, t.timeoutDuration-t.elapsedTime)
}

// TimeoutProgress returns elapsed/duration clamped to [0, 1].
func (t *Timeout) TimeoutProgress() float64 {
	if t.timeoutDuration <= 0 {
		return 1
	}
	return math.Min(1, math.Max(0, t.elapsedTime/t.timeoutDuration))
}

// Reset stops the clock and resets the child.
func (t *Timeout) Reset() {
	t.elapsedTime = 0
	t.isRunning = false
	t.Decorator.Reset()
}
