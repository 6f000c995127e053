package lock

import (
	"sort"

	"github.com/pingcap-incubator/tinyrep/kv/types"
)

// Edge is a wait-for edge: Waiter cannot proceed until Holder releases a lock
// or leaves the waitlist ahead of it.
type Edge struct {
	Waiter types.TxnID
	Holder types.TxnID
}

// Table is the lock table of one site, keyed by variable. Locks are only ever
// released by Release, which a site calls when a transaction commits or aborts.
type Table struct {
	entries map[types.VarID]*Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[types.VarID]*Entry)}
}

func (t *Table) Entry(id types.VarID) (*Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

func (t *Table) entry(id types.VarID) *Entry {
	e, ok := t.entries[id]
	if !ok {
		e = newEntry()
		t.entries[id] = e
	}
	return e
}

// ids returns a sorted snapshot of the locked variable ids.
func (t *Table) ids() []types.VarID {
	ids := make([]types.VarID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AcquireRead grants txn a read lock on id, or queues the request and returns
// false. Re-submitting a queued request does not queue it twice.
func (t *Table) AcquireRead(txn types.TxnID, id types.VarID) bool {
	e := t.entry(id)
	r := Request{Txn: txn, Mode: ModeRead}
	if e.canRead(txn) {
		e.grant(r)
		return true
	}
	e.enqueue(r)
	return false
}

// AcquireWrite grants txn the write lock on id, upgrading a read lock txn holds
// alone, or queues the request and returns false.
func (t *Table) AcquireWrite(txn types.TxnID, id types.VarID) bool {
	e := t.entry(id)
	r := Request{Txn: txn, Mode: ModeWrite}
	if e.canWrite(txn) {
		e.grant(r)
		return true
	}
	e.enqueue(r)
	return false
}

// HeldMode returns the mode of the lock txn holds on id, ModeIdle if none.
func (t *Table) HeldMode(txn types.TxnID, id types.VarID) Mode {
	e, ok := t.entries[id]
	if !ok || !e.Holds(txn) {
		return ModeIdle
	}
	return e.Mode
}

// Revert returns txn's lock on id to prev, the mode it held before a grant. It
// only undoes grants; a revert to a stronger mode is ignored.
func (t *Table) Revert(txn types.TxnID, id types.VarID, prev Mode) {
	e, ok := t.entries[id]
	if !ok || !e.Holds(txn) || prev >= e.Mode {
		return
	}
	if prev == ModeIdle {
		delete(e.holders, txn)
		if len(e.holders) == 0 {
			e.Mode = ModeIdle
		}
	} else {
		e.Mode = prev
	}
	t.Reassign()
}

// Release drops every lock and queued request of txn, then hands freed locks to
// waiting transactions.
func (t *Table) Release(txn types.TxnID) {
	for _, e := range t.entries {
		e.release(txn)
	}
	t.Reassign()
}

// Reassign grants queued requests until a full pass over the table grants
// nothing, and returns the number of grants. Only the head of each waitlist is
// considered, so waitlists are served in FIFO order.
func (t *Table) Reassign() int {
	granted := 0
	for {
		progress := false
		for _, id := range t.ids() {
			e := t.entries[id]
			if len(e.Waitlist) == 0 {
				continue
			}
			head := e.Waitlist[0]
			if !e.headGrantable(head) {
				continue
			}
			e.grant(head)
			e.Waitlist = e.Waitlist[1:]
			granted++
			progress = true
		}
		if !progress {
			return granted
		}
	}
}

// WaitForEdges extracts the wait-for relation of this table. A waiter waits for
// every holder its request conflicts with, and for every conflicting request
// queued ahead of it.
func (t *Table) WaitForEdges() []Edge {
	var edges []Edge
	for _, id := range t.ids() {
		e := t.entries[id]
		if e.Mode == ModeIdle || len(e.Waitlist) == 0 {
			continue
		}
		holders := e.Holders()
		for _, r := range e.Waitlist {
			if !e.blockedBy(r) {
				continue
			}
			for _, h := range holders {
				if h != r.Txn {
					edges = append(edges, Edge{Waiter: r.Txn, Holder: h})
				}
			}
		}
		for i, r := range e.Waitlist {
			for _, ahead := range e.Waitlist[:i] {
				if r.conflictsWith(ahead) {
					edges = append(edges, Edge{Waiter: r.Txn, Holder: ahead.Txn})
				}
			}
		}
	}
	return edges
}
