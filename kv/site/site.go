package site

import (
	"sort"

	"github.com/pingcap-incubator/tinyrep/kv/config"
	"github.com/pingcap-incubator/tinyrep/kv/storage"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/commands"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/lock"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap-incubator/tinyrep/log"
)

type Status int

const (
	StatusUp Status = iota
	StatusDown
)

func (s Status) String() string {
	if s == StatusUp {
		return "up"
	}
	return "down"
}

// volatileState is everything a failure destroys.
type volatileState struct {
	locks *lock.Table
	// fresh marks variables that may be read. A replicated variable is stale
	// after recovery until a transaction commits a write to it here.
	fresh map[types.VarID]bool
	// dirty records the variables each transaction wrote at this site.
	dirty map[types.TxnID]map[types.VarID]struct{}
}

func newVolatileState() volatileState {
	return volatileState{
		locks: lock.NewTable(),
		fresh: make(map[types.VarID]bool),
		dirty: make(map[types.TxnID]map[types.VarID]struct{}),
	}
}

// VariableValue is the latest committed value of a variable.
type VariableValue struct {
	Var   types.VarID
	Value int
}

// Site is one data site: a variable store, a lock table and the history of its
// failures. Sites are not safe for concurrent use; the coordinator drives all
// of them from a single loop.
type Site struct {
	id     types.SiteID
	conf   *config.Config
	status Status
	store  *storage.Store
	vol    volatileState

	failures   []types.Timestamp
	recoveries []types.Timestamp
}

// New creates an up site holding every variable conf places on it, each with its
// initial value.
func New(id types.SiteID, conf *config.Config) *Site {
	s := &Site{
		id:     id,
		conf:   conf,
		status: StatusUp,
		store:  storage.NewStore(),
		vol:    newVolatileState(),
	}
	for i := 1; i <= conf.VariableCount; i++ {
		if !conf.Hosts(int(id), i) {
			continue
		}
		v := types.VarID(i)
		s.store.Init(v, conf.InitialValue(i))
		s.vol.fresh[v] = true
	}
	return s
}

func (s *Site) ID() types.SiteID {
	return s.id
}

func (s *Site) Status() Status {
	return s.status
}

func (s *Site) Up() bool {
	return s.status == StatusUp
}

func (s *Site) Has(id types.VarID) bool {
	return s.store.Has(id)
}

// UpToDate reports whether id may be read here.
func (s *Site) UpToDate(id types.VarID) bool {
	return s.vol.fresh[id]
}

func (s *Site) FailureHistory() []types.Timestamp {
	return append([]types.Timestamp(nil), s.failures...)
}

func (s *Site) RecoveryHistory() []types.Timestamp {
	return append([]types.Timestamp(nil), s.recoveries...)
}

// History returns the committed versions of id at this site, newest first.
func (s *Site) History(id types.VarID) []storage.Version {
	h, ok := s.store.History(id)
	if !ok {
		return nil
	}
	return h.Versions()
}

// Lock returns the lock entry of id, if any transaction ever locked it here.
func (s *Site) Lock(id types.VarID) (*lock.Entry, bool) {
	return s.vol.locks.Entry(id)
}

// AcquireReadLock grants txn a read lock on id. A stale variable is refused
// without queuing the request.
func (s *Site) AcquireReadLock(txn types.TxnID, id types.VarID) bool {
	if !s.Up() || !s.store.Has(id) || !s.vol.fresh[id] {
		return false
	}
	return s.vol.locks.AcquireRead(txn, id)
}

func (s *Site) AcquireWriteLock(txn types.TxnID, id types.VarID) bool {
	if !s.Up() || !s.store.Has(id) {
		return false
	}
	return s.vol.locks.AcquireWrite(txn, id)
}

// LockMode returns the mode of the lock txn holds on id.
func (s *Site) LockMode(txn types.TxnID, id types.VarID) lock.Mode {
	return s.vol.locks.HeldMode(txn, id)
}

// RevertLock undoes a grant, returning txn's lock on id to prev.
func (s *Site) RevertLock(txn types.TxnID, id types.VarID, prev lock.Mode) {
	if !s.Up() {
		return
	}
	s.vol.locks.Revert(txn, id, prev)
}

// Read returns the working value of op.Var, so a transaction sees its own
// uncommitted writes. The transaction must hold a lock on the variable.
func (s *Site) Read(op commands.Operation) (int, error) {
	if !s.Up() {
		return 0, ErrSiteDown
	}
	if !s.store.Has(op.Var) {
		return 0, ErrNotResident
	}
	if !s.vol.fresh[op.Var] {
		return 0, ErrStale
	}
	if s.vol.locks.HeldMode(op.Txn, op.Var) == lock.ModeIdle {
		err := &ErrLockNotHeld{Site: s.id, Txn: op.Txn, Var: op.Var, Need: lock.ModeRead}
		log.Warnf("protocol violation: %v", err)
		return 0, err
	}
	value, _ := s.store.Uncommitted(op.Var)
	return value, nil
}

// Write stores op.Value as the working value of op.Var. The transaction must
// hold the write lock.
func (s *Site) Write(op commands.Operation) error {
	if !s.Up() {
		return ErrSiteDown
	}
	if !s.store.Has(op.Var) {
		return ErrNotResident
	}
	if s.vol.locks.HeldMode(op.Txn, op.Var) != lock.ModeWrite {
		err := &ErrLockNotHeld{Site: s.id, Txn: op.Txn, Var: op.Var, Need: lock.ModeWrite}
		log.Warnf("protocol violation: %v", err)
		return err
	}
	s.store.SetUncommitted(op.Var, op.Value)
	vars, ok := s.vol.dirty[op.Txn]
	if !ok {
		vars = make(map[types.VarID]struct{})
		s.vol.dirty[op.Txn] = vars
	}
	vars[op.Var] = struct{}{}
	return nil
}

// ReadOnly serves a snapshot read at op.TS from the version history without
// locking. For a replicated variable, a version is skipped when this site
// failed after it was committed and no later than op.TS: the site may have
// missed writes committed elsewhere during the outage.
func (s *Site) ReadOnly(op commands.Operation) (int, error) {
	h, ok := s.store.History(op.Var)
	if !ok {
		return 0, ErrNotResident
	}
	replicated := s.conf.IsReplicated(int(op.Var))
	var (
		value int
		found bool
	)
	h.VisibleAt(op.TS, func(v storage.Version) bool {
		if replicated && s.failedWithin(v.CommitTS, op.TS) {
			return true
		}
		value, found = v.Value, true
		return false
	})
	if !found {
		return 0, ErrNoVisibleVersion
	}
	return value, nil
}

// failedWithin reports whether the site failed in (from, to].
func (s *Site) failedWithin(from, to types.Timestamp) bool {
	for _, ts := range s.failures {
		if ts > from && ts <= to {
			return true
		}
	}
	return false
}

// Commit installs every value txn wrote here as a version at ts, then releases
// txn's locks.
func (s *Site) Commit(txn types.TxnID, ts types.Timestamp) {
	if !s.Up() {
		log.Warnf("site %d is down, commit of %v ignored", s.id, txn)
		return
	}
	for id := range s.vol.dirty[txn] {
		s.store.Promote(id, ts)
		s.vol.fresh[id] = true
	}
	delete(s.vol.dirty, txn)
	s.vol.locks.Release(txn)
}

// Abort discards every value txn wrote here, then releases txn's locks.
func (s *Site) Abort(txn types.TxnID) {
	if !s.Up() {
		return
	}
	for id := range s.vol.dirty[txn] {
		s.store.Rollback(id)
	}
	delete(s.vol.dirty, txn)
	s.vol.locks.Release(txn)
}

// Fail takes the site down at ts. Locks, working values, freshness and write
// sets are lost; committed histories survive. It returns false if the site was
// already down.
func (s *Site) Fail(ts types.Timestamp) bool {
	if !s.Up() {
		return false
	}
	s.status = StatusDown
	s.vol = newVolatileState()
	s.store.DropUncommitted()
	s.failures = append(s.failures, ts)
	log.Infof("site %d fails at %d", s.id, ts)
	return true
}

// Recover brings the site up at ts. Working values are rebuilt from the latest
// committed versions; replicated variables stay unreadable until a commit here
// refreshes them. It returns false if the site was already up.
func (s *Site) Recover(ts types.Timestamp) bool {
	if s.Up() {
		return false
	}
	s.status = StatusUp
	s.recoveries = append(s.recoveries, ts)
	s.store.ResetUncommitted()
	for _, id := range s.store.Variables() {
		s.vol.fresh[id] = !s.conf.IsReplicated(int(id))
	}
	log.Infof("site %d recovers at %d", s.id, ts)
	return true
}

// WaitForEdges returns the wait-for edges of this site's lock table.
func (s *Site) WaitForEdges() []lock.Edge {
	if !s.Up() {
		return nil
	}
	return s.vol.locks.WaitForEdges()
}

// Dump returns the latest committed value of every resident variable in
// ascending id order.
func (s *Site) Dump() []VariableValue {
	ids := s.store.Variables()
	values := make([]VariableValue, 0, len(ids))
	for _, id := range ids {
		latest, _ := s.store.Latest(id)
		values = append(values, VariableValue{Var: id, Value: latest.Value})
	}
	return values
}

func (s *Site) DumpVariable(id types.VarID) (int, bool) {
	latest, ok := s.store.Latest(id)
	return latest.Value, ok
}

// dirtyVars is used by tests.
func (s *Site) dirtyVars(txn types.TxnID) []types.VarID {
	ids := make([]types.VarID, 0, len(s.vol.dirty[txn]))
	for id := range s.vol.dirty[txn] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
