package transaction

import (
	"sort"

	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap/errors"
)

// Txn is a live transaction.
type Txn struct {
	ID       types.TxnID
	StartTS  types.Timestamp
	ReadOnly bool

	aborting bool
	// visited holds the sites where the transaction was granted a lock or served
	// a read; a failure of any of them dooms the transaction.
	visited map[types.SiteID]struct{}
	// contacted holds every site where the transaction asked for a lock,
	// granted or not. Finishing the transaction clears its state there.
	contacted map[types.SiteID]struct{}
}

func newTxn(id types.TxnID, ts types.Timestamp, readOnly bool) *Txn {
	return &Txn{
		ID:        id,
		StartTS:   ts,
		ReadOnly:  readOnly,
		visited:   make(map[types.SiteID]struct{}),
		contacted: make(map[types.SiteID]struct{}),
	}
}

// Aborting reports whether the transaction is doomed. An aborting transaction
// issues no more operations and aborts when it ends.
func (t *Txn) Aborting() bool {
	return t.aborting
}

func (t *Txn) MarkAborting() {
	t.aborting = true
}

func (t *Txn) Visit(site types.SiteID) {
	t.visited[site] = struct{}{}
	t.contacted[site] = struct{}{}
}

func (t *Txn) Visited(site types.SiteID) bool {
	_, ok := t.visited[site]
	return ok
}

func (t *Txn) Contact(site types.SiteID) {
	t.contacted[site] = struct{}{}
}

// VisitedSites returns the visited sites in ascending order.
func (t *Txn) VisitedSites() []types.SiteID {
	return sortedSites(t.visited)
}

// Sites returns every site the transaction has state at, in ascending order.
func (t *Txn) Sites() []types.SiteID {
	return sortedSites(t.contacted)
}

func sortedSites(set map[types.SiteID]struct{}) []types.SiteID {
	sites := make([]types.SiteID, 0, len(set))
	for s := range set {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	return sites
}

// ErrTxnExists is returned when a transaction id is begun twice while live.
type ErrTxnExists struct {
	ID types.TxnID
}

func (e *ErrTxnExists) Error() string {
	return e.ID.String() + " is already running"
}

// Registry holds the live transactions.
type Registry struct {
	txns map[types.TxnID]*Txn
}

func NewRegistry() *Registry {
	return &Registry{txns: make(map[types.TxnID]*Txn)}
}

func (r *Registry) Begin(id types.TxnID, ts types.Timestamp, readOnly bool) (*Txn, error) {
	if _, ok := r.txns[id]; ok {
		return nil, errors.WithStack(&ErrTxnExists{ID: id})
	}
	txn := newTxn(id, ts, readOnly)
	r.txns[id] = txn
	return txn, nil
}

func (r *Registry) Get(id types.TxnID) (*Txn, bool) {
	txn, ok := r.txns[id]
	return txn, ok
}

func (r *Registry) Remove(id types.TxnID) {
	delete(r.txns, id)
}

func (r *Registry) Len() int {
	return len(r.txns)
}

// Active returns the live transactions in ascending id order.
func (r *Registry) Active() []*Txn {
	txns := make([]*Txn, 0, len(r.txns))
	for _, txn := range r.txns {
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return txns
}
