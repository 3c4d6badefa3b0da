// Package mailbox provides the single-slot handoff between the
// reconstruction callback goroutine and the render loop.
//
// The slot is overwrite-on-publish: only the most recently published batch is
// ever observable, because only the latest full reconstruction state is
// meaningful to draw. Publishing never blocks on render activity and a batch
// is consumed at most once.
package mailbox

import (
	"sync/atomic"

	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

// Mailbox is the single-slot mesh handoff plus the pending-clear flag.
//
// Delivery contract: Publish and RequestClear may be called from any
// goroutine; TakeIfPresent and TakeClear are called by the render loop, once
// per tick.
type Mailbox struct {
	slot  atomic.Pointer[mesh.Batch]
	clear atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{}
}

// Publish atomically replaces any unconsumed batch with b. Never blocks,
// never fails. A batch superseded before consumption counts as a drop.
func (m *Mailbox) Publish(b *mesh.Batch) {
	if b == nil {
		return
	}
	m.published.Add(1)
	if prev := m.slot.Swap(b); prev != nil {
		m.dropped.Add(1)
	}
}

// TakeIfPresent atomically removes and returns the current batch, if any.
func (m *Mailbox) TakeIfPresent() (*mesh.Batch, bool) {
	b := m.slot.Swap(nil)
	return b, b != nil
}

// RequestClear marks a pending clear request. Repeated requests before the
// next TakeClear collapse to one.
func (m *Mailbox) RequestClear() {
	m.clear.Store(true)
}

// TakeClear reports and consumes the pending clear request.
func (m *Mailbox) TakeClear() bool {
	return m.clear.Swap(false)
}

// Drain discards any staged batch and pending clear request. Used on
// disconnect so a stale batch never leaks into the next session.
func (m *Mailbox) Drain() {
	m.slot.Store(nil)
	m.clear.Store(false)
}

// Stats is a snapshot of mailbox counters.
type Stats struct {
	Published uint64
	Dropped   uint64
}

// Stats returns the current counters.
func (m *Mailbox) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Dropped:   m.dropped.Load(),
	}
}
