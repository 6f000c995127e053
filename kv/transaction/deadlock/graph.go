package deadlock

import (
	"sort"

	"github.com/pingcap-incubator/tinyrep/kv/types"
)

// Graph is a wait-for graph. An edge from A to B means A waits for B to release
// a lock, or for B's request queued ahead of A to leave the waitlist.
type Graph struct {
	edges map[types.TxnID]map[types.TxnID]struct{}
}

func NewGraph() *Graph {
	return &Graph{edges: make(map[types.TxnID]map[types.TxnID]struct{})}
}

// AddEdge records that waiter waits for holder. Self edges are ignored.
func (g *Graph) AddEdge(waiter, holder types.TxnID) {
	if waiter == holder {
		return
	}
	holders, ok := g.edges[waiter]
	if !ok {
		holders = make(map[types.TxnID]struct{})
		g.edges[waiter] = holders
	}
	holders[holder] = struct{}{}
}

func (g *Graph) Empty() bool {
	return len(g.edges) == 0
}

// Nodes returns the waiting transactions in ascending order.
func (g *Graph) Nodes() []types.TxnID {
	nodes := make([]types.TxnID, 0, len(g.edges))
	for txn := range g.edges {
		nodes = append(nodes, txn)
	}
	sortTxns(nodes)
	return nodes
}

// InCycle reports whether root can reach itself.
func (g *Graph) InCycle(root types.TxnID) bool {
	return g.reaches(root, root, make(map[types.TxnID]struct{}))
}

func (g *Graph) reaches(cur, root types.TxnID, seen map[types.TxnID]struct{}) bool {
	seen[cur] = struct{}{}
	for _, next := range g.successors(cur) {
		if next == root {
			return true
		}
		if _, ok := seen[next]; ok {
			continue
		}
		if g.reaches(next, root, seen) {
			return true
		}
	}
	return false
}

func (g *Graph) successors(txn types.TxnID) []types.TxnID {
	next := make([]types.TxnID, 0, len(g.edges[txn]))
	for h := range g.edges[txn] {
		next = append(next, h)
	}
	sortTxns(next)
	return next
}

// Victim picks the youngest transaction that lies on a cycle, the one with the
// greatest start timestamp. startTS reports false for transactions that should
// not be chosen, such as ones already aborting. Ties go to the lowest id.
func (g *Graph) Victim(startTS func(types.TxnID) (types.Timestamp, bool)) (types.TxnID, bool) {
	var (
		victim   types.TxnID
		youngest types.Timestamp
		found    bool
	)
	for _, txn := range g.Nodes() {
		ts, ok := startTS(txn)
		if !ok || !g.InCycle(txn) {
			continue
		}
		if !found || ts > youngest {
			victim, youngest, found = txn, ts, true
		}
	}
	return victim, found
}

func sortTxns(txns []types.TxnID) {
	sort.Slice(txns, func(i, j int) bool { return txns[i] < txns[j] })
}
