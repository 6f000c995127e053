package coordinator

import (
	"github.com/pingcap-incubator/tinyrep/kv/transaction/deadlock"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap-incubator/tinyrep/log"
)

// waitForGraph merges the wait-for edges of every up site.
func (c *Coordinator) waitForGraph() *deadlock.Graph {
	g := deadlock.NewGraph()
	for _, id := range c.siteIDs {
		for _, e := range c.sites[id].WaitForEdges() {
			g.AddEdge(e.Waiter, e.Holder)
		}
	}
	return g
}

// resolveDeadlock aborts the youngest transaction on a wait-for cycle, if any,
// and reports whether it did. At most one victim is aborted per call.
func (c *Coordinator) resolveDeadlock() bool {
	g := c.waitForGraph()
	if g.Empty() {
		return false
	}
	victim, ok := g.Victim(func(id types.TxnID) (types.Timestamp, bool) {
		txn, ok := c.txns.Get(id)
		if !ok || txn.Aborting() {
			return 0, false
		}
		return txn.StartTS, true
	})
	if !ok {
		return false
	}
	txn, _ := c.txns.Get(victim)
	log.Infof("deadlock detected at t=%d, %v is the youngest on the cycle", c.now, victim)
	deadlockVictimCounter.Inc()
	c.abort(txn)
	return true
}
