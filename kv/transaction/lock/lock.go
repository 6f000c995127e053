package lock

import (
	"fmt"
	"sort"

	"github.com/pingcap-incubator/tinyrep/kv/types"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeRead
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Request is a lock request waiting in an entry's waitlist.
type Request struct {
	Txn  types.TxnID
	Mode Mode
}

// conflictsWith reports whether r must wait for other when other is queued ahead
// of it. Two reads never conflict.
func (r Request) conflictsWith(other Request) bool {
	if r.Txn == other.Txn {
		return false
	}
	return r.Mode == ModeWrite || other.Mode == ModeWrite
}

// Entry is the lock state of one variable at one site. holders is empty iff
// Mode is ModeIdle, and a ModeWrite entry has exactly one holder.
type Entry struct {
	Mode     Mode
	holders  map[types.TxnID]struct{}
	Waitlist []Request
}

func newEntry() *Entry {
	return &Entry{holders: make(map[types.TxnID]struct{})}
}

func (e *Entry) Holds(txn types.TxnID) bool {
	_, ok := e.holders[txn]
	return ok
}

// Holders returns the holder set in ascending order.
func (e *Entry) Holders() []types.TxnID {
	txns := make([]types.TxnID, 0, len(e.holders))
	for txn := range e.holders {
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i] < txns[j] })
	return txns
}

func (e *Entry) soleHolder(txn types.TxnID) bool {
	return len(e.holders) == 1 && e.Holds(txn)
}

func (e *Entry) canRead(txn types.TxnID) bool {
	if e.Holds(txn) {
		return true
	}
	if e.Mode == ModeWrite {
		return false
	}
	for _, r := range e.Waitlist {
		if r.Txn != txn && r.Mode == ModeWrite {
			return false
		}
	}
	return true
}

func (e *Entry) canWrite(txn types.TxnID) bool {
	if e.Mode == ModeWrite && e.Holds(txn) {
		return true
	}
	if e.Mode != ModeIdle && !(e.Mode == ModeRead && e.soleHolder(txn)) {
		return false
	}
	for _, r := range e.Waitlist {
		if r.Txn != txn {
			return false
		}
	}
	return true
}

// headGrantable is the compatibility rule for the head of the waitlist. Unlike
// canRead and canWrite it ignores the rest of the queue.
func (e *Entry) headGrantable(r Request) bool {
	if r.Mode == ModeRead {
		return e.Mode != ModeWrite || e.Holds(r.Txn)
	}
	return e.Mode == ModeIdle || (e.Holds(r.Txn) && (e.Mode == ModeWrite || len(e.holders) == 1))
}

func (e *Entry) grant(r Request) {
	switch r.Mode {
	case ModeRead:
		if e.Mode == ModeIdle {
			e.Mode = ModeRead
		}
	case ModeWrite:
		e.Mode = ModeWrite
	}
	e.holders[r.Txn] = struct{}{}
}

func (e *Entry) enqueue(r Request) {
	for _, w := range e.Waitlist {
		if w == r {
			return
		}
	}
	e.Waitlist = append(e.Waitlist, r)
}

// release drops txn from the holder set and the waitlist.
func (e *Entry) release(txn types.TxnID) {
	delete(e.holders, txn)
	kept := e.Waitlist[:0]
	for _, r := range e.Waitlist {
		if r.Txn != txn {
			kept = append(kept, r)
		}
	}
	e.Waitlist = kept
	if len(e.holders) == 0 {
		e.Mode = ModeIdle
	}
}

// blockedBy reports whether the waiting request r conflicts with the current
// holder set.
func (e *Entry) blockedBy(r Request) bool {
	switch {
	case e.Mode == ModeIdle:
		return false
	case e.Mode == ModeWrite:
		return !e.Holds(r.Txn)
	case r.Mode == ModeRead:
		return false
	}
	return !e.soleHolder(r.Txn)
}
