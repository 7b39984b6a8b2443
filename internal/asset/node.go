package asset

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a Node.
type State int

const (
	// StateDirty means the node's content is being computed or is stale.
	StateDirty State = iota + 1
	// StateAvailable means the node's content is ready and valid.
	StateAvailable
	// StateRemoved is terminal: this ID is not currently produced by
	// this node instance. A later re-production of the same ID creates
	// a fresh node.
	StateRemoved
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDirty:
		return "DIRTY"
	case StateAvailable:
		return "AVAILABLE"
	case StateRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Node is the mutable slot tracking one asset ID's current status.
//
// A Node is mutated only through its owning NodeController; readers use
// State, Asset, Force, WhenAvailable and WhenStateChanges. At most one
// live Node exists for a given ID within a cascade at any instant.
//
// Thread-safety model:
//   - controller transitions: any goroutine, strictly ordered by the
//     node's internal mutex (in practice the owning cascade's loop)
//   - reader methods: safe from any goroutine
//
// Each transition replaces the node's broadcast channel after closing
// the previous one, so a waiter that captured the channel before a
// transition is always woken by that transition: no transition can be
// skipped for a subscriber that registered before it occurred.
type Node struct {
	id ID

	mu      sync.Mutex
	state   State
	asset   *Asset
	forced  bool
	changed chan struct{}

	// forceFn is installed by the producer; invoked at most once per
	// Force call to request eager computation of a lazily-deferred
	// output. Nil for nodes that are never deferred (e.g. sources).
	forceFn func()
}

// NodeController is the exclusive-write handle for one Node. Only the
// entity that produces the asset holds the controller; everything else
// sees the read-only Node.
type NodeController struct {
	node *Node
}

// NewNode creates a DIRTY node for id and returns its controller.
// forceFn, if non-nil, is called when a reader forces the node.
func NewNode(id ID, forceFn func()) *NodeController {
	return &NodeController{node: &Node{
		id:      id,
		state:   StateDirty,
		changed: make(chan struct{}),
		forceFn: forceFn,
	}}
}

// Node returns the read-only view of the controlled node.
func (c *NodeController) Node() *Node {
	return c.node
}

// SetDirty transitions AVAILABLE -> DIRTY. A no-op if the node is
// already DIRTY. Panics if the node is REMOVED: a removed node is
// terminal and must never be resurrected.
func (c *NodeController) SetDirty() {
	n := c.node
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case StateDirty:
		return
	case StateRemoved:
		panic(fmt.Sprintf("asset node %s: SetDirty on removed node", n.id))
	}
	n.state = StateDirty
	n.asset = nil
	n.broadcastLocked()
}

// SetAvailable transitions DIRTY -> AVAILABLE, storing the new snapshot
// and waking all waiters. Panics on any other starting state: the
// owning cascade always dirties a node before re-publishing it.
func (c *NodeController) SetAvailable(a *Asset) {
	n := c.node
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateDirty {
		panic(fmt.Sprintf("asset node %s: SetAvailable from %s", n.id, n.state))
	}
	n.state = StateAvailable
	n.asset = a
	n.broadcastLocked()
}

// SetRemoved transitions any state to REMOVED (terminal for this
// instance), waking waiters; they observe a NotFoundError. Idempotent.
func (c *NodeController) SetRemoved() {
	n := c.node
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateRemoved {
		return
	}
	n.state = StateRemoved
	n.asset = nil
	n.broadcastLocked()
}

// State returns the controlled node's current state.
func (c *NodeController) State() State {
	return c.node.State()
}

// broadcastLocked wakes every waiter registered before this transition
// and installs a fresh channel for the next one. Callers hold n.mu.
func (n *Node) broadcastLocked() {
	close(n.changed)
	n.changed = make(chan struct{})
}

// ID returns the node's asset identifier.
func (n *Node) ID() ID {
	return n.id
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Asset returns the current snapshot, or nil unless the node is
// AVAILABLE.
func (n *Node) Asset() *Asset {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.asset
}

// Forced reports whether a reader has requested eager computation.
func (n *Node) Forced() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.forced
}

// Force hints the owner that an external reader wants this ID computed
// even if it is currently deferred. A no-op if computation has already
// been requested or the producer is not lazy.
func (n *Node) Force() {
	n.mu.Lock()
	fn := n.forceFn
	already := n.forced
	n.forced = true
	n.mu.Unlock()
	if fn != nil && !already {
		fn()
	}
}

// WhenAvailable suspends until the node is AVAILABLE and returns the
// snapshot, or fails with a NotFoundError if the node is REMOVED first.
func (n *Node) WhenAvailable(ctx context.Context) (*Asset, error) {
	for {
		n.mu.Lock()
		switch n.state {
		case StateAvailable:
			a := n.asset
			n.mu.Unlock()
			return a, nil
		case StateRemoved:
			n.mu.Unlock()
			return nil, &NotFoundError{ID: n.id}
		}
		ch := n.changed
		n.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// WhenStateChanges suspends until the very next transition, regardless
// of direction, and returns the state observed after it. Used to
// re-evaluate policy after a lazy output flips state.
func (n *Node) WhenStateChanges(ctx context.Context) (State, error) {
	n.mu.Lock()
	ch := n.changed
	n.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-ch:
		return n.State(), nil
	}
}
