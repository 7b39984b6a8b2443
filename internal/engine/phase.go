package engine

import (
	"sort"

	"github.com/cascade-build/cascade/internal/asset"
)

// jobState is the per-execution progress marker. A lazy job stays
// notStarted until something forces it; a job counts toward the
// cascade's dirtiness while running, or while dirty and eligible to
// run.
type jobState int

const (
	jobNotStarted jobState = iota
	jobRunning
	jobSettled
)

// jobKey addresses one transform execution within a phase: the
// transformer's position in the phase's set plus the primary input (or
// aggregate group) it is bound to.
type jobKey struct {
	slot    int
	primary string
}

// phaseInput binds one input ID to the node owned by its upstream
// producer (a source controller, or the previous phase's output slot).
type phaseInput struct {
	id   asset.ID
	node *asset.Node
}

// outputSlot is one output node owned by this phase. owner is the
// producing job, or nil for a pass-through slot that mirrors the input
// node named by passSource.
type outputSlot struct {
	id         asset.ID
	ctrl       *asset.NodeController
	owner      *transformJob
	passSource *phaseInput
}

func (s *outputSlot) node() *asset.Node {
	return s.ctrl.Node()
}

// transformJob is one logically independent transform execution: a
// (transformer, primary input) pair, or a (transformer, group) pair for
// aggregates. Its runSeq is bumped on every invalidation so results
// from superseded runs are discarded when they re-enter the loop.
type transformJob struct {
	key         jobKey
	phase       *phase
	transformer Transformer
	aggregate   bool
	lazy        bool

	primaries map[asset.ID]*phaseInput
	state     jobState
	dirty     bool
	forced    bool
	runSeq    int64

	// claimed is every output ID this job has declared or produced;
	// outputs holds the slots it currently owns (a claimed ID has no
	// slot while contested by a collision).
	claimed map[asset.ID]struct{}
	outputs map[asset.ID]*outputSlot

	// deps are secondary inputs read during the last settled run.
	deps map[asset.ID]struct{}
}

// phase is one pipeline stage: it applies its transform set to the
// current input assets and passes through everything it does not
// overwrite, so later phases always see the full asset universe.
//
// All phase methods run on the owning cascade's loop goroutine.
type phase struct {
	cascade      *Cascade
	index        int
	transformers []Transformer
	inputs       map[asset.ID]*phaseInput
	jobs         map[jobKey]*transformJob
	slots        map[asset.ID]*outputSlot
	claims       map[asset.ID][]*transformJob
	next         *phase
}

func newPhase(c *Cascade, index int) *phase {
	return &phase{
		cascade: c,
		index:   index,
		inputs:  make(map[asset.ID]*phaseInput),
		jobs:    make(map[jobKey]*transformJob),
		slots:   make(map[asset.ID]*outputSlot),
		claims:  make(map[asset.ID][]*transformJob),
	}
}

// addInput registers a new input node, binds matching transformers, and
// establishes the pass-through slot if nothing claims the ID.
func (p *phase) addInput(n *asset.Node) {
	id := n.ID()
	pi := &phaseInput{id: id, node: n}
	p.inputs[id] = pi

	for i, t := range p.transformers {
		p.bindTransformer(i, t, pi)
	}
	p.syncPassThrough(id)

	// A previous run may have recorded this ID as a missing secondary
	// input; its arrival re-runs those jobs.
	for _, job := range p.jobSnapshot() {
		if _, ok := job.deps[id]; ok {
			p.invalidateJob(job)
			p.maybeStartJob(job)
		}
	}
}

// bindTransformer creates (or extends, for aggregates) the job that
// consumes pi under transformer t at position slot.
func (p *phase) bindTransformer(slot int, t Transformer, pi *phaseInput) {
	if at, ok := t.(AggregateTransformer); ok {
		group, consumed := at.ClassifyPrimary(pi.id)
		if !consumed {
			return
		}
		k := jobKey{slot: slot, primary: "group:" + group}
		job := p.jobs[k]
		if job == nil {
			job = p.newJob(k, t, true)
		}
		job.primaries[pi.id] = pi
		p.invalidateJob(job)
		p.maybeStartJob(job)
		return
	}

	if !t.CanTransform(pi.id) {
		return
	}
	k := jobKey{slot: slot, primary: pi.id.String()}
	if p.jobs[k] != nil {
		return
	}
	job := p.newJob(k, t, false)
	job.primaries[pi.id] = pi
	if dt, ok := t.(DeclaringTransformer); ok {
		for _, out := range dt.DeclareOutputs(pi.id) {
			p.claimOutput(job, out)
		}
	}
	p.maybeStartJob(job)
}

func (p *phase) newJob(k jobKey, t Transformer, aggregate bool) *transformJob {
	lazy := false
	if lt, ok := t.(LazyTransformer); ok {
		lazy = lt.Deferred()
	}
	job := &transformJob{
		key:         k,
		phase:       p,
		transformer: t,
		aggregate:   aggregate,
		lazy:        lazy,
		primaries:   make(map[asset.ID]*phaseInput),
		state:       jobNotStarted,
		dirty:       true,
		claimed:     make(map[asset.ID]struct{}),
		outputs:     make(map[asset.ID]*outputSlot),
		deps:        make(map[asset.ID]struct{}),
	}
	p.jobs[k] = job
	return job
}

// claimOutput registers job as a producer of id. The second distinct
// producer of an ID within one phase is a collision: the error is
// reported and the ID stays unavailable while contested. Returns the
// slot job may publish to, or nil if the ID is contested.
func (p *phase) claimOutput(job *transformJob, id asset.ID) *outputSlot {
	if _, mine := job.claimed[id]; !mine {
		job.claimed[id] = struct{}{}
		p.claims[id] = append(p.claims[id], job)
		if len(p.claims[id]) > 1 {
			names := make([]string, len(p.claims[id]))
			for i, j := range p.claims[id] {
				names[i] = j.transformer.Name()
			}
			p.cascade.reportError(&CollisionError{ID: id, Transformers: names})
			if slot := p.slots[id]; slot != nil {
				if slot.owner != nil {
					delete(slot.owner.outputs, id)
				}
				p.removeSlot(slot)
			}
		}
	}
	if len(p.claims[id]) > 1 {
		return nil
	}

	slot := p.slots[id]
	if slot == nil {
		slot = p.newSlot(id, job)
	} else if slot.owner == nil {
		// Overwrite the pass-through copy: an update, not a collision.
		slot.owner = job
		slot.passSource = nil
		p.setSlotDirty(slot)
	}
	job.outputs[id] = slot
	return slot
}

// dropClaim forgets job's claim on id.
func (p *phase) dropClaim(job *transformJob, id asset.ID) {
	delete(job.claimed, id)
	claims := p.claims[id]
	for i, j := range claims {
		if j == job {
			claims = append(claims[:i], claims[i+1:]...)
			break
		}
	}
	if len(claims) == 0 {
		delete(p.claims, id)
	} else {
		p.claims[id] = claims
	}
}

// releaseOutput withdraws job's production of id: the slot reverts to
// pass-through when the input still exists, disappears otherwise. When
// releasing resolves a collision, the surviving producer regenerates.
func (p *phase) releaseOutput(job *transformJob, id asset.ID) {
	slot := job.outputs[id]
	delete(job.outputs, id)
	p.dropClaim(job, id)
	remaining := p.claims[id]

	if slot != nil && slot.owner == job {
		if len(remaining) == 0 && p.inputs[id] != nil {
			slot.owner = nil
			slot.passSource = p.inputs[id]
			p.mirrorPass(slot)
		} else {
			p.removeSlot(slot)
		}
	}

	if len(remaining) == 1 {
		survivor := remaining[0]
		p.invalidateJob(survivor)
		p.maybeStartJob(survivor)
	}
}

// newSlot creates the output node for id and hands it to the next phase
// as an input (or exposes it externally from the last phase).
func (p *phase) newSlot(id asset.ID, owner *transformJob) *outputSlot {
	slot := &outputSlot{
		id:    id,
		ctrl:  asset.NewNode(id, p.cascade.forceFunc(p, id)),
		owner: owner,
	}
	p.slots[id] = slot
	if p.next != nil {
		p.next.addInput(slot.node())
	} else {
		p.cascade.outputAdded(slot.node())
	}
	return slot
}

// removeSlot retires a slot: the node goes REMOVED (terminal) and the
// downstream phase drops the input. A later re-production creates a
// fresh node instance.
func (p *phase) removeSlot(slot *outputSlot) {
	delete(p.slots, slot.id)
	slot.ctrl.SetRemoved()
	if p.next != nil {
		p.next.removeInput(slot.id)
	}
}

// syncPassThrough installs the pass-through slot for id if nothing in
// this phase claims it.
func (p *phase) syncPassThrough(id asset.ID) {
	if p.slots[id] != nil || len(p.claims[id]) > 0 {
		return
	}
	pi := p.inputs[id]
	if pi == nil {
		return
	}
	slot := p.newSlot(id, nil)
	slot.passSource = pi
	p.mirrorPass(slot)
}

// mirrorPass copies the pass-through source node's current state onto
// the slot.
func (p *phase) mirrorPass(slot *outputSlot) {
	switch slot.passSource.node.State() {
	case asset.StateAvailable:
		p.setSlotAvailable(slot, slot.passSource.node.Asset())
	case asset.StateDirty:
		p.setSlotDirty(slot)
	case asset.StateRemoved:
		p.removeSlot(slot)
	}
}

func (p *phase) setSlotDirty(slot *outputSlot) {
	if slot.ctrl.State() != asset.StateAvailable {
		return
	}
	slot.ctrl.SetDirty()
	p.slotChanged(slot)
}

func (p *phase) setSlotAvailable(slot *outputSlot, a *asset.Asset) {
	if slot.ctrl.State() == asset.StateAvailable {
		// Re-publish: dirty first, the node state machine only accepts
		// DIRTY -> AVAILABLE.
		slot.ctrl.SetDirty()
	}
	slot.ctrl.SetAvailable(a)
	p.slotChanged(slot)
}

// slotChanged propagates a slot transition downstream, or announces it
// externally from the last phase.
func (p *phase) slotChanged(slot *outputSlot) {
	if p.next != nil {
		if pi := p.next.inputs[slot.id]; pi != nil {
			p.next.inputStateChanged(pi)
		}
		return
	}
	p.cascade.outputChanged(slot.node())
}

// inputStateChanged reacts to a transition on an existing input node:
// mirror pass-through, invalidate or start consuming jobs, re-run jobs
// whose secondary dependencies changed.
func (p *phase) inputStateChanged(pi *phaseInput) {
	st := pi.node.State()
	if st == asset.StateRemoved {
		// Removal always arrives via removeInput.
		return
	}

	if slot := p.slots[pi.id]; slot != nil && slot.owner == nil {
		switch st {
		case asset.StateAvailable:
			p.setSlotAvailable(slot, pi.node.Asset())
		case asset.StateDirty:
			p.setSlotDirty(slot)
		}
	}

	for _, job := range p.jobSnapshot() {
		if _, isPrimary := job.primaries[pi.id]; isPrimary {
			switch st {
			case asset.StateDirty:
				p.invalidateJob(job)
			case asset.StateAvailable:
				p.maybeStartJob(job)
			}
			continue
		}
		if _, isDep := job.deps[pi.id]; isDep {
			p.invalidateJob(job)
			if st == asset.StateAvailable {
				p.maybeStartJob(job)
			}
		}
	}
}

// removeInput drops an input whose upstream node was removed, removing
// jobs it fed (aggregate jobs shrink instead when other members remain)
// and the pass-through slot.
func (p *phase) removeInput(id asset.ID) {
	pi := p.inputs[id]
	if pi == nil {
		return
	}
	delete(p.inputs, id)

	for _, job := range p.jobSnapshot() {
		if _, isPrimary := job.primaries[id]; isPrimary {
			delete(job.primaries, id)
			if job.aggregate && len(job.primaries) > 0 {
				p.invalidateJob(job)
				p.maybeStartJob(job)
			} else {
				p.removeJob(job)
			}
			continue
		}
		if _, isDep := job.deps[id]; isDep {
			p.invalidateJob(job)
			p.maybeStartJob(job)
		}
	}

	if slot := p.slots[id]; slot != nil && slot.owner == nil {
		p.removeSlot(slot)
	}
}

// removeJob retires a job and withdraws everything it produced.
func (p *phase) removeJob(job *transformJob) {
	if p.jobs[job.key] != job {
		return
	}
	delete(p.jobs, job.key)
	job.runSeq++ // poison any in-flight result
	for id := range job.claimed {
		p.releaseOutput(job, id)
	}
}

// invalidateJob marks a job as needing a re-run and dirties its
// outputs. An in-flight run is superseded: its result will fail the
// runSeq check and be discarded.
func (p *phase) invalidateJob(job *transformJob) {
	job.dirty = true
	job.runSeq++
	for _, slot := range job.outputs {
		p.setSlotDirty(slot)
	}
}

// maybeStartJob starts a dirty job whose primaries are all available,
// unless it is lazily deferred and nothing has forced it yet.
func (p *phase) maybeStartJob(job *transformJob) {
	if !job.dirty || job.state == jobRunning {
		return
	}
	if job.lazy && !job.forced {
		return
	}
	if len(job.primaries) == 0 {
		return
	}
	for _, pi := range job.primaries {
		if pi.node.State() != asset.StateAvailable {
			return
		}
	}
	p.startJob(job)
}

// startJob snapshots the job's inputs and runs the transformer on its
// own goroutine; the result re-enters the cascade as an event.
func (p *phase) startJob(job *transformJob) {
	job.state = jobRunning
	job.dirty = false
	job.runSeq++
	seq := job.runSeq
	tc := p.buildContext(job)

	c := p.cascade
	t := job.transformer
	runCtx := c.runCtx
	go func() {
		err := t.Apply(runCtx, tc)
		c.queue.Enqueue(&evJobDone{job: job, seq: seq, tc: tc, err: err})
	}()
}

// buildContext snapshots the currently available inputs for a run.
func (p *phase) buildContext(job *transformJob) *TransformContext {
	tc := &TransformContext{
		transformer: job.transformer.Name(),
		inputs:      make(map[asset.ID]*asset.Asset),
		read:        make(map[asset.ID]struct{}),
	}
	for id, pi := range p.inputs {
		if pi.node.State() == asset.StateAvailable {
			tc.inputs[id] = pi.node.Asset()
		}
	}

	if job.aggregate {
		ids := make([]asset.ID, 0, len(job.primaries))
		for id := range job.primaries {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		group := make([]*asset.Asset, len(ids))
		for i, id := range ids {
			group[i] = job.primaries[id].node.Asset()
		}
		tc.group = group
		tc.primary = group[0]
		return tc
	}

	for _, pi := range job.primaries {
		tc.primary = pi.node.Asset()
	}
	return tc
}

// jobDone applies a finished run's results. Stale results (the job was
// invalidated or removed while running) are discarded; an invalidated
// job restarts immediately when its inputs allow.
func (p *phase) jobDone(job *transformJob, seq int64, tc *TransformContext, err error) {
	if p.jobs[job.key] != job {
		return
	}
	if seq != job.runSeq {
		job.state = jobNotStarted
		p.maybeStartJob(job)
		return
	}

	job.state = jobSettled
	job.deps = make(map[asset.ID]struct{})
	for id := range tc.read {
		if _, isPrimary := job.primaries[id]; !isPrimary {
			job.deps[id] = struct{}{}
		}
	}
	p.cascade.emitLogs(tc.logs)

	if err != nil {
		p.cascade.reportError(&TransformError{
			Transformer: job.transformer.Name(),
			Primary:     tc.primary.ID(),
			Err:         err,
		})
		// One transform's failure does not abort its siblings; its own
		// outputs become unavailable until a new update retries it.
		for id := range job.claimed {
			p.releaseOutput(job, id)
		}
		return
	}

	produced := make(map[asset.ID]*asset.Asset, len(tc.outputs))
	for _, a := range tc.outputs {
		produced[a.ID()] = a
	}
	for id := range job.claimed {
		if _, ok := produced[id]; !ok {
			p.releaseOutput(job, id)
		}
	}
	// Publish in stable order for deterministic downstream event order.
	ids := make([]asset.ID, 0, len(produced))
	for id := range produced {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		slot := p.claimOutput(job, id)
		if slot == nil {
			continue // contested by a collision
		}
		p.setSlotAvailable(slot, produced[id])
	}

	// A secondary input may have changed between the run's snapshot and
	// now; the dependency was only recorded on completion, so no event
	// retriggered the job. Re-run against the current inputs.
	if p.depsStale(job, tc) {
		p.invalidateJob(job)
		p.maybeStartJob(job)
	}
}

// depsStale reports whether any recorded secondary dependency differs
// from the snapshot the finished run saw.
func (p *phase) depsStale(job *transformJob, tc *TransformContext) bool {
	for id := range job.deps {
		var cur *asset.Asset
		if pi := p.inputs[id]; pi != nil && pi.node.State() == asset.StateAvailable {
			cur = pi.node.Asset()
		}
		snap, had := tc.inputs[id]
		if had != (cur != nil) {
			return true
		}
		if had && cur != snap {
			return true
		}
	}
	return false
}

// updateTransformers reconciles the phase against a new transformer
// set: jobs for transformers that remain keep their output nodes, jobs
// for dropped transformers are withdrawn, and new transformers start
// fresh computation against the current inputs.
func (p *phase) updateTransformers(newSet []Transformer) {
	old := p.transformers
	p.transformers = newSet

	indexIn := func(set []Transformer, t Transformer) int {
		for i, st := range set {
			if st == t {
				return i
			}
		}
		return -1
	}

	for _, job := range p.jobSnapshot() {
		ni := indexIn(newSet, job.transformer)
		if ni < 0 {
			p.removeJob(job)
			continue
		}
		if ni != job.key.slot {
			delete(p.jobs, job.key)
			job.key.slot = ni
			p.jobs[job.key] = job
		}
	}

	for i, t := range newSet {
		if indexIn(old, t) >= 0 {
			continue
		}
		for _, pi := range p.inputSnapshot() {
			p.bindTransformer(i, t, pi)
		}
	}
}

// forceAll forces every lazy job in the phase and starts whatever is
// runnable.
func (p *phase) forceAll() {
	for _, job := range p.jobSnapshot() {
		if job.lazy && !job.forced {
			job.forced = true
		}
		p.maybeStartJob(job)
	}
}

// forceOutput reacts to a reader forcing one of this phase's output
// nodes: force the producing job, or propagate upstream through a
// pass-through.
func (p *phase) forceOutput(id asset.ID) {
	slot := p.slots[id]
	if slot == nil {
		return
	}
	if slot.owner != nil {
		slot.owner.forced = true
		p.maybeStartJob(slot.owner)
		return
	}
	if slot.passSource != nil {
		slot.passSource.node.Force()
	}
}

// dirtyJobs counts jobs that keep the cascade dirty: running jobs, and
// dirty jobs that are eligible to run. A lazy job with nothing forcing
// it does not hold up settlement; its declared outputs simply stay
// dirty until forced.
func (p *phase) dirtyJobs() int {
	n := 0
	for _, job := range p.jobs {
		if job.state == jobRunning {
			n++
			continue
		}
		if job.dirty && (!job.lazy || job.forced) {
			n++
		}
	}
	return n
}

// outputNode returns the phase's current output node for id, or nil.
func (p *phase) outputNode(id asset.ID) *asset.Node {
	slot := p.slots[id]
	if slot == nil {
		return nil
	}
	return slot.node()
}

// jobSnapshot copies the job set so handlers can mutate p.jobs while
// iterating.
func (p *phase) jobSnapshot() []*transformJob {
	jobs := make([]*transformJob, 0, len(p.jobs))
	for _, job := range p.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// slotSnapshot copies the slot set in stable ID order.
func (p *phase) slotSnapshot() []*outputSlot {
	slots := make([]*outputSlot, 0, len(p.slots))
	for _, slot := range p.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].id.String() < slots[j].id.String()
	})
	return slots
}

func (p *phase) inputSnapshot() []*phaseInput {
	inputs := make([]*phaseInput, 0, len(p.inputs))
	for _, pi := range p.inputs {
		inputs = append(inputs, pi)
	}
	return inputs
}
