package coordinator

import (
	"github.com/pingcap-incubator/tinyrep/kv/transaction"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/commands"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/lock"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap-incubator/tinyrep/log"
)

// execute tries every pending operation once, in submission order. Operations
// that cannot complete stay buffered in the same relative order.
func (c *Coordinator) execute() {
	left := c.pending[:0]
	for _, op := range c.pending {
		txn, ok := c.txns.Get(op.Txn)
		if !ok || txn.Aborting() {
			continue
		}
		var done bool
		switch op.Kind {
		case commands.OpRead:
			done = c.read(txn, op)
		case commands.OpReadOnly:
			done = c.readOnly(op)
		case commands.OpWrite:
			done = c.write(txn, op)
		}
		if done {
			opCompletedCounter.WithLabelValues(op.Kind.String()).Inc()
			continue
		}
		left = append(left, op)
	}
	c.pending = left
	pendingOpsGauge.Set(float64(len(left)))
}

// read locks and reads the first up site that grants a read lock.
func (c *Coordinator) read(txn *transaction.Txn, op commands.Operation) bool {
	for _, id := range c.hosts[op.Var] {
		s := c.sites[id]
		if !s.Up() {
			continue
		}
		txn.Contact(id)
		if !s.AcquireReadLock(op.Txn, op.Var) {
			continue
		}
		value, err := s.Read(op)
		if err != nil {
			log.Debugf("%v at site %d: %v", op, id, err)
			continue
		}
		txn.Visit(id)
		c.emit(ReadResult{Txn: op.Txn, Var: op.Var, Value: value, Site: id})
		return true
	}
	log.Debugf("%v waits", op)
	return false
}

// readOnly serves a snapshot read from the first up site that has a visible
// version.
func (c *Coordinator) readOnly(op commands.Operation) bool {
	for _, id := range c.hosts[op.Var] {
		s := c.sites[id]
		if !s.Up() {
			continue
		}
		value, err := s.ReadOnly(op)
		if err != nil {
			log.Debugf("%v at site %d: %v", op, id, err)
			continue
		}
		c.emit(ReadResult{Txn: op.Txn, Var: op.Var, Value: value, Site: id})
		return true
	}
	log.Debugf("%v waits", op)
	return false
}

// write needs the write lock at every up site holding the variable. Locks are
// requested at all of them even after a denial, so that the transaction keeps
// its place in every waitlist. Locks granted during a failed attempt are kept
// unless AtomicWriteLocks is set.
func (c *Coordinator) write(txn *transaction.Txn, op commands.Operation) bool {
	var up []types.SiteID
	for _, id := range c.hosts[op.Var] {
		if c.sites[id].Up() {
			up = append(up, id)
		}
	}
	if len(up) == 0 {
		log.Debugf("%v waits: no site holding %v is up", op, op.Var)
		return false
	}

	var prev map[types.SiteID]lock.Mode
	if c.conf.AtomicWriteLocks {
		prev = make(map[types.SiteID]lock.Mode, len(up))
	}
	granted := true
	for _, id := range up {
		s := c.sites[id]
		txn.Contact(id)
		if prev != nil {
			prev[id] = s.LockMode(op.Txn, op.Var)
		}
		if !s.AcquireWriteLock(op.Txn, op.Var) {
			granted = false
		}
	}
	if !granted {
		for id, mode := range prev {
			c.sites[id].RevertLock(op.Txn, op.Var, mode)
		}
		log.Debugf("%v waits", op)
		return false
	}

	for _, id := range up {
		if err := c.sites[id].Write(op); err != nil {
			log.Warnf("%v at site %d: %v", op, id, err)
			continue
		}
		txn.Visit(id)
	}
	return true
}
