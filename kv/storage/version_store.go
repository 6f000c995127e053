package storage

import (
	"sort"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinyrep/kv/types"
)

const historyDegree = 8

// Version is one committed value of a variable.
type Version struct {
	Value    int
	CommitTS types.Timestamp
}

// Less orders versions by commit timestamp, newest first, so that an ascending
// walk of the tree goes from the latest version back in time.
func (v Version) Less(than btree.Item) bool {
	return v.CommitTS > than.(Version).CommitTS
}

// History holds the committed versions of one variable at one site. Commit
// timestamps are unique; adding a version at an existing timestamp replaces it.
type History struct {
	tree *btree.BTree
}

func newHistory(initial Version) *History {
	h := &History{tree: btree.New(historyDegree)}
	h.tree.ReplaceOrInsert(initial)
	return h
}

// Latest returns the newest committed version.
func (h *History) Latest() Version {
	return h.tree.Min().(Version)
}

func (h *History) Add(v Version) {
	h.tree.ReplaceOrInsert(v)
}

func (h *History) Len() int {
	return h.tree.Len()
}

// VisibleAt calls fn for each version with CommitTS <= ts, newest first, until fn
// returns false.
func (h *History) VisibleAt(ts types.Timestamp, fn func(Version) bool) {
	h.tree.AscendGreaterOrEqual(Version{CommitTS: ts}, func(i btree.Item) bool {
		return fn(i.(Version))
	})
}

// Versions returns all versions, newest first.
func (h *History) Versions() []Version {
	vs := make([]Version, 0, h.tree.Len())
	h.tree.Ascend(func(i btree.Item) bool {
		vs = append(vs, i.(Version))
		return true
	})
	return vs
}

// Store is the variable store of one site: the committed history of every
// resident variable plus an uncommitted working value that in-flight writes
// modify. Committed histories survive site failure; working values do not.
type Store struct {
	histories   map[types.VarID]*History
	uncommitted map[types.VarID]int
}

func NewStore() *Store {
	return &Store{
		histories:   make(map[types.VarID]*History),
		uncommitted: make(map[types.VarID]int),
	}
}

// Init makes id resident with a single version at InitialTS.
func (s *Store) Init(id types.VarID, value int) {
	s.histories[id] = newHistory(Version{Value: value, CommitTS: types.InitialTS})
	s.uncommitted[id] = value
}

func (s *Store) Has(id types.VarID) bool {
	_, ok := s.histories[id]
	return ok
}

// Variables returns the resident variable ids in ascending order.
func (s *Store) Variables() []types.VarID {
	ids := make([]types.VarID, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) History(id types.VarID) (*History, bool) {
	h, ok := s.histories[id]
	return h, ok
}

func (s *Store) Latest(id types.VarID) (Version, bool) {
	h, ok := s.histories[id]
	if !ok {
		return Version{}, false
	}
	return h.Latest(), true
}

func (s *Store) Uncommitted(id types.VarID) (int, bool) {
	v, ok := s.uncommitted[id]
	return v, ok
}

func (s *Store) SetUncommitted(id types.VarID, value int) {
	s.uncommitted[id] = value
}

// Promote turns the working value of id into a committed version at ts.
func (s *Store) Promote(id types.VarID, ts types.Timestamp) {
	h, ok := s.histories[id]
	if !ok {
		return
	}
	value, ok := s.uncommitted[id]
	if !ok {
		value = h.Latest().Value
	}
	h.Add(Version{Value: value, CommitTS: ts})
}

// Rollback resets the working value of id to its latest committed value.
func (s *Store) Rollback(id types.VarID) {
	if h, ok := s.histories[id]; ok {
		s.uncommitted[id] = h.Latest().Value
	}
}

// DropUncommitted discards every working value.
func (s *Store) DropUncommitted() {
	s.uncommitted = make(map[types.VarID]int)
}

// ResetUncommitted rebuilds every working value from the latest committed version.
func (s *Store) ResetUncommitted() {
	s.uncommitted = make(map[types.VarID]int, len(s.histories))
	for id, h := range s.histories {
		s.uncommitted[id] = h.Latest().Value
	}
}
