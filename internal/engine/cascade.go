package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cascade-build/cascade/internal/asset"
)

// PassRecorder receives build-pass lifecycle records, typically backed
// by the journal store. All methods are best-effort: a recorder failure
// is logged and never fails the build.
type PassRecorder interface {
	BeginPass(ctx context.Context, token, pkg string, seq int64) error
	FinishPass(ctx context.Context, token string, seq int64, errCount int) error
	RecordAsset(ctx context.Context, token string, id asset.ID, kind string, seq int64) error
	RecordError(ctx context.Context, token, message string, seq int64) error
}

// Cascade owns the ordered phase pipeline for one package: the source
// asset map, in-flight loads, pending asset requests, and the phase
// bookkeeping.
//
// CRITICAL: All mutations happen in the single-writer Run loop
// goroutine. External callers submit events through the exported
// methods, which enqueue and (for reads) wait on reply channels.
//
// Thread-safety model:
//   - UpdateSources / RemoveSources / UpdateTransformers /
//     ForceAllTransforms: safe from any goroutine (enqueue only)
//   - GetAssetNode / GetAllAssets: safe from any goroutine (enqueue,
//     then suspend on the reply)
//   - Run: must be called from exactly one goroutine
//
// INVARIANTS:
//   - at most one live node exists per asset ID at any instant
//   - the cascade is dirty iff a source is loading or some transform
//     has not settled for the current input set
//   - done is announced in the same synchronous step that the dirty
//     flag flips false, so no request can slip into the gap
type Cascade struct {
	pkg      string
	provider ContentProvider
	queue    *eventQueue
	clock    *Clock
	tokens   TokenGenerator
	recorder PassRecorder

	// Loop-owned state. Touched only from the Run goroutine.
	runCtx        context.Context
	phases        []*phase
	sources       map[asset.ID]*asset.NodeController
	loading       map[asset.ID]*CancelableLoad
	pending       map[asset.ID][]chan pendingResult
	settleWaiters []chan settleResult
	passErrors    []error
	earlyErrors   []string
	lastPass      []error
	passToken     string
	dirty         bool
	mutated       bool

	dirtyFlag atomic.Bool

	cbMu      sync.Mutex
	onError   []func(error)
	onDone    []func()
	onSettled []func([]*asset.Asset, error)
	onAsset   []func(*asset.Node)
	onLog     []func(LogEntry)
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithTokenGenerator overrides the build-pass token generator.
// Tests use NewFixedGenerator for deterministic tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Cascade) {
		c.tokens = g
	}
}

// WithRecorder attaches a pass recorder (see package journal).
func WithRecorder(r PassRecorder) Option {
	return func(c *Cascade) {
		c.recorder = r
	}
}

// New creates a cascade for one package with a single, empty phase.
// Transformers are installed with UpdateTransformers; sources with
// UpdateSources. Nothing runs until Run is called.
func New(pkg string, provider ContentProvider, opts ...Option) *Cascade {
	c := &Cascade{
		pkg:      pkg,
		provider: provider,
		queue:    newEventQueue(),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		sources:  make(map[asset.ID]*asset.NodeController),
		loading:  make(map[asset.ID]*CancelableLoad),
		pending:  make(map[asset.ID][]chan pendingResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.phases = []*phase{newPhase(c, 0)}
	return c
}

// Package returns the package name this cascade builds.
func (c *Cascade) Package() string {
	return c.pkg
}

// IsDirty reports whether the cascade has unsettled work.
// Safe from any goroutine; the loop keeps the mirror current.
func (c *Cascade) IsDirty() bool {
	return c.dirtyFlag.Load()
}

// Run starts the single-writer event loop. Blocks until ctx is
// cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. All phase
// bookkeeping, node transitions, and pending-request resolution happen
// in this goroutine.
func (c *Cascade) Run(ctx context.Context) error {
	c.runCtx = ctx
	slog.Info("cascade starting", "package", c.pkg)

	for {
		ev, ok := c.queue.TryDequeue()
		if ok {
			c.processEvent(ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("cascade stopping: context cancelled", "package", c.pkg)
			c.cancelAllLoads()
			c.queue.Close()
			c.failWaiters()
			return ctx.Err()

		case <-c.queue.Wait():
			// The buffered signal coalesces enqueues, so a leftover
			// signal can fire with nothing queued. Only a closed and
			// fully drained queue ends the loop.
			if c.queue.Closed() && c.queue.Len() == 0 {
				slog.Info("cascade stopping: queue closed", "package", c.pkg)
				c.cancelAllLoads()
				c.failWaiters()
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the cascade.
// Closes the event queue, which will cause Run to return.
func (c *Cascade) Stop() {
	c.queue.Close()
}

// Event types. Each carries exactly what its handler needs; reply
// channels are buffered so the loop never blocks on a reader.

type evUpdateSources struct{ ids []asset.ID }
type evRemoveSources struct{ ids []asset.ID }
type evUpdateExternal struct{ assets []*asset.Asset }
type evUpdateTransformers struct{ groups [][]Transformer }
type evLoadDone struct {
	id   asset.ID
	load *CancelableLoad
	a    *asset.Asset
	err  error
}
type evJobDone struct {
	job *transformJob
	seq int64
	tc  *TransformContext
	err error
}
type evGetNode struct {
	id    asset.ID
	reply chan nodeReply
}
type evAllAssets struct{ reply chan settleResult }
type evForceAll struct{}
type evForceOutput struct {
	phase *phase
	id    asset.ID
}

func (*evUpdateSources) isEvent()      {}
func (*evRemoveSources) isEvent()      {}
func (*evUpdateExternal) isEvent()     {}
func (*evUpdateTransformers) isEvent() {}
func (*evLoadDone) isEvent()           {}
func (*evJobDone) isEvent()            {}
func (*evGetNode) isEvent()            {}
func (*evAllAssets) isEvent()          {}
func (*evForceAll) isEvent()           {}
func (*evForceOutput) isEvent()        {}

type nodeReply struct {
	node    *asset.Node
	pending chan pendingResult
	err     error
}

type pendingResult struct {
	node *asset.Node
	err  error
}

type settleResult struct {
	assets []*asset.Asset
	err    error
}

// processEvent routes an event to its handler, then reconciles the
// dirty flag. A dirty->clean flip announces done inside the same step,
// before any other queued event is looked at.
func (c *Cascade) processEvent(ev event) {
	switch e := ev.(type) {
	case *evUpdateSources:
		c.mutated = true
		c.handleUpdateSources(e.ids)
	case *evRemoveSources:
		c.mutated = true
		c.handleRemoveSources(e.ids)
	case *evUpdateExternal:
		c.mutated = true
		c.handleUpdateExternal(e.assets)
	case *evUpdateTransformers:
		c.mutated = true
		c.handleUpdateTransformers(e.groups)
	case *evLoadDone:
		c.handleLoadDone(e)
	case *evJobDone:
		c.handleJobDone(e)
	case *evGetNode:
		c.handleGetNode(e)
	case *evAllAssets:
		c.handleAllAssets(e)
	case *evForceAll:
		c.forceAllInternal()
	case *evForceOutput:
		if c.phaseActive(e.phase) {
			e.phase.forceOutput(e.id)
		}
	}
	c.settleCheck()
}

// --- write path -------------------------------------------------------

// UpdateSources pushes new or changed source IDs into the cascade.
// For each ID, any in-flight load is superseded (last-update-wins) and
// a fresh load starts against the content provider.
// Thread-safe; returns ErrCascadeClosed after Stop.
func (c *Cascade) UpdateSources(ids ...asset.ID) error {
	if !c.queue.Enqueue(&evUpdateSources{ids: ids}) {
		return ErrCascadeClosed
	}
	return nil
}

// RemoveSources removes source IDs. Removing an unknown ID is a no-op,
// not an error. Thread-safe; returns ErrCascadeClosed after Stop.
func (c *Cascade) RemoveSources(ids ...asset.ID) error {
	if !c.queue.Enqueue(&evRemoveSources{ids: ids}) {
		return ErrCascadeClosed
	}
	return nil
}

// UpdateExternalAssets injects already-loaded assets as sources, with
// no content-provider fetch. Used by the package graph to feed a
// dependency's settled outputs into a dependent cascade.
func (c *Cascade) UpdateExternalAssets(assets ...*asset.Asset) error {
	if !c.queue.Enqueue(&evUpdateExternal{assets: assets}) {
		return ErrCascadeClosed
	}
	return nil
}

// UpdateTransformers reconciles the phase list against a new ordered
// stage specification: overlapping positions reconcile in place, new
// trailing positions append fresh phases, and removed trailing
// positions drop their phases. An empty specification clears the first
// phase's transforms rather than deleting the phase itself.
func (c *Cascade) UpdateTransformers(groups [][]Transformer) error {
	if !c.queue.Enqueue(&evUpdateTransformers{groups: groups}) {
		return ErrCascadeClosed
	}
	return nil
}

// ForceAllTransforms forces every lazily-deferred transform result in
// every phase, for callers that need the complete output set rather
// than demand-driven lookups.
func (c *Cascade) ForceAllTransforms() error {
	if !c.queue.Enqueue(&evForceAll{}) {
		return ErrCascadeClosed
	}
	return nil
}

func (c *Cascade) handleUpdateSources(ids []asset.ID) {
	for _, id := range ids {
		c.startSourceLoad(id)
	}
}

// startSourceLoad supersedes any in-flight load for id and begins a new
// one. The node (existing or fresh) is DIRTY until the load lands.
func (c *Cascade) startSourceLoad(id asset.ID) {
	if l := c.loading[id]; l != nil {
		l.Cancel()
		delete(c.loading, id)
	}

	ctrl := c.sources[id]
	if ctrl == nil {
		ctrl = asset.NewNode(id, nil)
		c.sources[id] = ctrl
		c.phases[0].addInput(ctrl.Node())
	} else {
		ctrl.SetDirty()
		if pi := c.phases[0].inputs[id]; pi != nil {
			c.phases[0].inputStateChanged(pi)
		}
	}

	load := newCancelableLoad()
	c.loading[id] = load
	load.Start(c.runCtx, c.provider, id, func(a *asset.Asset, err error) {
		c.queue.Enqueue(&evLoadDone{id: id, load: load, a: a, err: err})
	})
}

func (c *Cascade) handleLoadDone(e *evLoadDone) {
	if c.loading[e.id] != e.load {
		return // superseded by a newer update
	}
	delete(c.loading, e.id)

	ctrl := c.sources[e.id]
	if ctrl == nil {
		return
	}

	if e.err != nil {
		c.reportError(&LoadError{ID: e.id, Err: e.err})
		ctrl.SetRemoved()
		delete(c.sources, e.id)
		c.phases[0].removeInput(e.id)
		return
	}

	ctrl.SetAvailable(e.a)
	if pi := c.phases[0].inputs[e.id]; pi != nil {
		c.phases[0].inputStateChanged(pi)
	}
}

func (c *Cascade) handleRemoveSources(ids []asset.ID) {
	for _, id := range ids {
		if l := c.loading[id]; l != nil {
			l.Cancel()
			delete(c.loading, id)
		}
		ctrl := c.sources[id]
		if ctrl == nil {
			continue // double removal is a no-op
		}
		ctrl.SetRemoved()
		delete(c.sources, id)
		c.phases[0].removeInput(id)
	}
}

func (c *Cascade) handleUpdateExternal(assets []*asset.Asset) {
	for _, a := range assets {
		id := a.ID()
		if l := c.loading[id]; l != nil {
			l.Cancel()
			delete(c.loading, id)
		}
		ctrl := c.sources[id]
		if ctrl == nil {
			ctrl = asset.NewNode(id, nil)
			c.sources[id] = ctrl
			c.phases[0].addInput(ctrl.Node())
		} else {
			ctrl.SetDirty()
		}
		ctrl.SetAvailable(a)
		if pi := c.phases[0].inputs[id]; pi != nil {
			c.phases[0].inputStateChanged(pi)
		}
	}
}

func (c *Cascade) handleUpdateTransformers(groups [][]Transformer) {
	if len(groups) == 0 {
		c.phases[0].updateTransformers(nil)
		c.dropPhasesAfter(0)
		c.resolvePendingAgainstOutputs()
		return
	}

	for i, g := range groups {
		if i < len(c.phases) {
			c.phases[i].updateTransformers(g)
			continue
		}
		p := newPhase(c, i)
		prev := c.phases[i-1]
		prev.next = p
		c.phases = append(c.phases, p)
		for _, slot := range prev.slotSnapshot() {
			p.addInput(slot.node())
		}
		p.updateTransformers(g)
	}
	if len(groups) < len(c.phases) {
		c.dropPhasesAfter(len(groups) - 1)
	}
	c.resolvePendingAgainstOutputs()
}

// dropPhasesAfter truncates the phase list after index k. Dropped
// phases' output nodes go REMOVED so their waiters fail over to a fresh
// lookup against the new last phase.
func (c *Cascade) dropPhasesAfter(k int) {
	if k+1 >= len(c.phases) {
		return
	}
	dropped := c.phases[k+1:]
	c.phases = c.phases[:k+1]
	c.phases[k].next = nil
	for _, p := range dropped {
		for _, slot := range p.slotSnapshot() {
			slot.ctrl.SetRemoved()
		}
	}
}

func (c *Cascade) handleJobDone(e *evJobDone) {
	if !c.phaseActive(e.job.phase) {
		return
	}
	e.job.phase.jobDone(e.job, e.seq, e.tc, e.err)
}

// --- read path --------------------------------------------------------

// GetAssetNode returns the node for id once it is AVAILABLE.
//
// The lookup consults the last phase's output set: an available node
// returns immediately; an unavailable one is forced and awaited; a node
// removed mid-wait restarts the lookup (the ID may be regenerated by a
// different producer). When no node exists and the cascade is settled,
// the answer is a definitive NotFoundError; when it is still dirty, a
// pending request is registered and resolved as soon as the ID is
// produced or the build settles without producing it.
func (c *Cascade) GetAssetNode(ctx context.Context, id asset.ID) (*asset.Node, error) {
	for {
		reply := make(chan nodeReply, 1)
		if !c.queue.Enqueue(&evGetNode{id: id, reply: reply}) {
			return nil, ErrCascadeClosed
		}

		var r nodeReply
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r = <-reply:
		}

		if r.err != nil {
			return nil, r.err
		}

		if r.node == nil {
			// Pending: suspend until the ID is produced or the build
			// settles without it.
			var pr pendingResult
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case pr = <-r.pending:
			}
			if pr.err != nil {
				return nil, pr.err
			}
			r.node = pr.node
		}

		if r.node.State() == asset.StateAvailable {
			return r.node, nil
		}
		r.node.Force()
		if _, err := r.node.WhenAvailable(ctx); err != nil {
			if asset.IsNotFound(err) {
				continue // removed mid-wait: retry the whole lookup
			}
			return nil, err
		}
		return r.node, nil
	}
}

// GetAllAssets awaits settlement and returns a snapshot of the last
// phase's output set, sorted by ID. Lazy transforms are forced first so
// the snapshot is the complete deterministic output set. If any error
// was observed for the awaited pass, the snapshot is withheld and the
// errors are returned, bundled into an AggregateError when there is
// more than one.
func (c *Cascade) GetAllAssets(ctx context.Context) ([]*asset.Asset, error) {
	reply := make(chan settleResult, 1)
	if !c.queue.Enqueue(&evAllAssets{reply: reply}) {
		return nil, ErrCascadeClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-reply:
		if r.err != nil {
			return nil, r.err
		}
		return r.assets, nil
	}
}

func (c *Cascade) handleGetNode(e *evGetNode) {
	if n := c.lastPhase().outputNode(e.id); n != nil {
		e.reply <- nodeReply{node: n}
		return
	}
	if !c.computeDirty() {
		// Settled and not produced: definitive. This is the
		// short-circuit that prevents waiting forever for an ID that
		// will never be produced. If the settled pass failed, the
		// failure is the answer, not a bare not-found.
		if err := bundleErrors(c.lastPass); err != nil {
			e.reply <- nodeReply{err: err}
			return
		}
		e.reply <- nodeReply{err: &asset.NotFoundError{ID: e.id}}
		return
	}
	ch := make(chan pendingResult, 1)
	c.pending[e.id] = append(c.pending[e.id], ch)
	e.reply <- nodeReply{pending: ch}
}

func (c *Cascade) handleAllAssets(e *evAllAssets) {
	c.forceAllInternal()
	if c.computeDirty() {
		c.settleWaiters = append(c.settleWaiters, e.reply)
		return
	}
	e.reply <- settleResult{
		assets: c.snapshotOutputs(),
		err:    bundleErrors(c.lastPass),
	}
}

func (c *Cascade) forceAllInternal() {
	for _, p := range c.phases {
		p.forceAll()
	}
}

// --- settlement -------------------------------------------------------

func (c *Cascade) computeDirty() bool {
	if len(c.loading) > 0 {
		return true
	}
	for _, p := range c.phases {
		if p.dirtyJobs() > 0 {
			return true
		}
	}
	return false
}

// settleCheck reconciles the dirty flag after an event. Both edges are
// announced inside the current synchronous step: a request enqueued
// after this event observes the settled state, never a gap between
// "no longer dirty" and "done announced".
func (c *Cascade) settleCheck() {
	d := c.computeDirty()
	mutated := c.mutated
	c.mutated = false
	if d == c.dirty {
		if !d && mutated {
			// A mutation that required no recomputation (e.g. removing
			// a source nothing consumed) still closes out a pass, so
			// stale errors from the previous pass do not outlive it.
			c.beginPass()
			c.finishPass()
		}
		return
	}
	c.dirty = d
	c.dirtyFlag.Store(d)
	if d {
		c.beginPass()
	} else {
		c.finishPass()
	}
}

func (c *Cascade) beginPass() {
	c.passToken = c.tokens.Generate()
	seq := c.clock.Next()
	slog.Debug("build pass started", "package", c.pkg, "pass", c.passToken, "seq", seq)
	if c.recorder != nil {
		if err := c.recorder.BeginPass(c.runCtx, c.passToken, c.pkg, seq); err != nil {
			slog.Warn("journal begin pass failed", "package", c.pkg, "pass", c.passToken, "error", err)
		}
		for _, msg := range c.earlyErrors {
			if err := c.recorder.RecordError(c.runCtx, c.passToken, msg, c.clock.Next()); err != nil {
				slog.Warn("journal error record failed", "package", c.pkg, "error", err)
			}
		}
	}
	c.earlyErrors = nil
}

func (c *Cascade) finishPass() {
	seq := c.clock.Next()
	snapshot := c.snapshotOutputs()
	passErr := bundleErrors(c.passErrors)
	errCount := len(c.passErrors)
	c.lastPass = c.passErrors
	c.passErrors = nil

	// The build is settled: there is no pending producer left to ask.
	// A clean pass resolves every still-pending request to "not found";
	// a failed pass hands them the pass's errors, since the failure is
	// why the ID was never produced.
	for id, chans := range c.pending {
		resolved := passErr
		if resolved == nil {
			resolved = &asset.NotFoundError{ID: id}
		}
		for _, ch := range chans {
			ch <- pendingResult{err: resolved}
		}
	}
	c.pending = make(map[asset.ID][]chan pendingResult)

	for _, w := range c.settleWaiters {
		w <- settleResult{assets: snapshot, err: passErr}
	}
	c.settleWaiters = nil

	if c.recorder != nil {
		if err := c.recorder.FinishPass(c.runCtx, c.passToken, seq, errCount); err != nil {
			slog.Warn("journal finish pass failed", "package", c.pkg, "pass", c.passToken, "error", err)
		}
	}

	for _, fn := range c.settledCallbacks() {
		fn(snapshot, passErr)
	}
	for _, fn := range c.doneCallbacks() {
		fn()
	}
	slog.Info("build pass settled",
		"package", c.pkg,
		"pass", c.passToken,
		"assets", len(snapshot),
		"errors", errCount,
	)
}

// snapshotOutputs returns the available assets of the last phase,
// sorted by ID for deterministic consumption.
func (c *Cascade) snapshotOutputs() []*asset.Asset {
	last := c.lastPhase()
	assets := make([]*asset.Asset, 0, len(last.slots))
	for _, slot := range last.slots {
		n := slot.node()
		if n.State() == asset.StateAvailable {
			assets = append(assets, n.Asset())
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].ID().String() < assets[j].ID().String()
	})
	return assets
}

func (c *Cascade) lastPhase() *phase {
	return c.phases[len(c.phases)-1]
}

func (c *Cascade) phaseActive(p *phase) bool {
	for _, cp := range c.phases {
		if cp == p {
			return true
		}
	}
	return false
}

// failWaiters resolves every outstanding request when the loop exits,
// so a caller blocked on a background context does not hang forever.
func (c *Cascade) failWaiters() {
	for id, chans := range c.pending {
		for _, ch := range chans {
			ch <- pendingResult{err: ErrCascadeClosed}
		}
		delete(c.pending, id)
	}
	for _, w := range c.settleWaiters {
		w <- settleResult{err: ErrCascadeClosed}
	}
	c.settleWaiters = nil
}

func (c *Cascade) cancelAllLoads() {
	for id, l := range c.loading {
		l.Cancel()
		delete(c.loading, id)
	}
}

// forceFunc builds the Force hook installed on a phase's output nodes.
// Force may be called from any goroutine, so it re-enters as an event.
func (c *Cascade) forceFunc(p *phase, id asset.ID) func() {
	return func() {
		c.queue.Enqueue(&evForceOutput{phase: p, id: id})
	}
}

// outputAdded announces a new last-phase output node. A pending request
// for the ID is handed the node immediately; the requester forces and
// awaits it.
func (c *Cascade) outputAdded(n *asset.Node) {
	c.resolvePending(n)
}

// outputChanged announces a last-phase output transition.
func (c *Cascade) outputChanged(n *asset.Node) {
	c.resolvePending(n)
	if n.State() != asset.StateAvailable {
		return
	}
	for _, fn := range c.assetCallbacks() {
		fn(n)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordAsset(c.runCtx, c.passToken, n.ID(), "available", c.clock.Next()); err != nil {
			slog.Warn("journal asset record failed", "package", c.pkg, "asset", n.ID(), "error", err)
		}
	}
}

func (c *Cascade) resolvePending(n *asset.Node) {
	chans := c.pending[n.ID()]
	if len(chans) == 0 {
		return
	}
	delete(c.pending, n.ID())
	for _, ch := range chans {
		ch <- pendingResult{node: n}
	}
}

// resolvePendingAgainstOutputs re-checks every pending request after a
// pipeline reshape: the new last phase may already hold their IDs.
func (c *Cascade) resolvePendingAgainstOutputs() {
	last := c.lastPhase()
	for id, chans := range c.pending {
		n := last.outputNode(id)
		if n == nil {
			continue
		}
		delete(c.pending, id)
		for _, ch := range chans {
			ch <- pendingResult{node: n}
		}
	}
}

// reportError appends err to the current pass and republishes it on the
// error stream. The cascade never halts other independent work because
// one transform failed.
func (c *Cascade) reportError(err error) {
	c.passErrors = append(c.passErrors, err)
	slog.Warn("build error", "package", c.pkg, "pass", c.passToken, "error", err)
	if c.recorder != nil {
		if !c.dirty {
			// The pass this error belongs to has not begun yet; its
			// token is generated in beginPass once the handler's
			// settleCheck runs. Hold the record until then.
			c.earlyErrors = append(c.earlyErrors, err.Error())
		} else if rerr := c.recorder.RecordError(c.runCtx, c.passToken, err.Error(), c.clock.Next()); rerr != nil {
			slog.Warn("journal error record failed", "package", c.pkg, "error", rerr)
		}
	}
	for _, fn := range c.errorCallbacks() {
		fn(err)
	}
}

func (c *Cascade) emitLogs(entries []LogEntry) {
	if len(entries) == 0 {
		return
	}
	cbs := c.logCallbacks()
	for _, e := range entries {
		slog.Log(c.runCtx, e.Level, e.Message,
			"package", c.pkg,
			"transformer", e.Transformer,
			"asset", e.Asset,
		)
		for _, fn := range cbs {
			fn(e)
		}
	}
}

// --- observers --------------------------------------------------------

// OnError registers a callback invoked synchronously for every build
// error. Callbacks run on the loop goroutine and must not block.
func (c *Cascade) OnError(fn func(error)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onError = append(c.onError, fn)
}

// OnDone registers a callback invoked synchronously each time the
// cascade settles.
func (c *Cascade) OnDone(fn func()) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onDone = append(c.onDone, fn)
}

// OnSettled registers a callback invoked synchronously at settlement
// with the output snapshot and the pass's bundled error (nil on
// success). The package graph uses this to feed dependents.
func (c *Cascade) OnSettled(fn func([]*asset.Asset, error)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onSettled = append(c.onSettled, fn)
}

// OnAsset registers a callback invoked for every externally visible
// output node becoming available or changing.
func (c *Cascade) OnAsset(fn func(*asset.Node)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onAsset = append(c.onAsset, fn)
}

// OnLog registers a callback for transform diagnostic entries.
func (c *Cascade) OnLog(fn func(LogEntry)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onLog = append(c.onLog, fn)
}

func (c *Cascade) errorCallbacks() []func(error) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]func(error){}, c.onError...)
}

func (c *Cascade) doneCallbacks() []func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]func(){}, c.onDone...)
}

func (c *Cascade) settledCallbacks() []func([]*asset.Asset, error) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]func([]*asset.Asset, error){}, c.onSettled...)
}

func (c *Cascade) assetCallbacks() []func(*asset.Node) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]func(*asset.Node){}, c.onAsset...)
}

func (c *Cascade) logCallbacks() []func(LogEntry) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]func(LogEntry){}, c.onLog...)
}
