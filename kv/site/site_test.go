package site

import (
	"testing"

	"github.com/pingcap-incubator/tinyrep/kv/config"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/commands"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/lock"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSite(id types.SiteID) *Site {
	return New(id, config.NewTestConfig())
}

func read(txn types.TxnID, id types.VarID) commands.Operation {
	return commands.Operation{Kind: commands.OpRead, Txn: txn, Var: id}
}

func write(txn types.TxnID, id types.VarID, value int) commands.Operation {
	return commands.Operation{Kind: commands.OpWrite, Txn: txn, Var: id, Value: value}
}

func readOnly(txn types.TxnID, id types.VarID, ts types.Timestamp) commands.Operation {
	return commands.Operation{Kind: commands.OpReadOnly, Txn: txn, Var: id, TS: ts}
}

func TestPlacement(t *testing.T) {
	s := newTestSite(2)
	assert.True(t, s.Has(1))
	assert.True(t, s.Has(11))
	assert.False(t, s.Has(3))
	for i := 2; i <= 20; i += 2 {
		assert.True(t, s.Has(types.VarID(i)))
	}

	dump := s.Dump()
	require.Len(t, dump, 12)
	assert.Equal(t, VariableValue{Var: 1, Value: 10}, dump[0])
	assert.Equal(t, VariableValue{Var: 2, Value: 20}, dump[1])
	assert.Equal(t, VariableValue{Var: 20, Value: 200}, dump[11])

	_, ok := s.DumpVariable(3)
	assert.False(t, ok)
}

func TestReadRequiresLock(t *testing.T) {
	s := newTestSite(1)
	_, err := s.Read(read(1, 2))
	_, ok := err.(*ErrLockNotHeld)
	assert.True(t, ok)
	assert.False(t, IsRetryable(err))

	require.True(t, s.AcquireReadLock(1, 2))
	v, err := s.Read(read(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	assert.Equal(t, ErrNotResident, s.Write(write(1, 3, 5)))
	_, ok = s.Write(write(1, 2, 5)).(*ErrLockNotHeld)
	assert.True(t, ok)
}

func TestWriteThenCommit(t *testing.T) {
	s := newTestSite(1)
	require.True(t, s.AcquireWriteLock(1, 2))
	require.NoError(t, s.Write(write(1, 2, 99)))
	assert.Equal(t, []types.VarID{2}, s.dirtyVars(1))

	// Reads see the working value, dumps see committed values.
	v, err := s.Read(read(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 99, v)
	v, _ = s.DumpVariable(2)
	assert.Equal(t, 20, v)

	s.Commit(1, 4)
	v, _ = s.DumpVariable(2)
	assert.Equal(t, 99, v)
	assert.Equal(t, lock.ModeIdle, s.LockMode(1, 2))
	assert.Empty(t, s.dirtyVars(1))
	assert.Len(t, s.History(2), 2)
}

func TestAbortRollsBack(t *testing.T) {
	s := newTestSite(1)
	require.True(t, s.AcquireWriteLock(1, 2))
	require.NoError(t, s.Write(write(1, 2, 99)))
	assert.False(t, s.AcquireReadLock(2, 2))

	s.Abort(1)
	v, _ := s.DumpVariable(2)
	assert.Equal(t, 20, v)

	// The release hands the lock to T2's queued read.
	assert.Equal(t, lock.ModeRead, s.LockMode(2, 2))
	v, err := s.Read(read(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestFailAndRecover(t *testing.T) {
	s := newTestSite(2)
	require.True(t, s.AcquireWriteLock(1, 2))
	require.NoError(t, s.Write(write(1, 2, 99)))

	assert.True(t, s.Fail(3))
	assert.False(t, s.Fail(4))
	assert.False(t, s.Up())
	assert.Equal(t, StatusDown, s.Status())
	assert.False(t, s.AcquireReadLock(2, 1))
	assert.False(t, s.AcquireWriteLock(2, 1))
	_, err := s.Read(read(1, 2))
	assert.Equal(t, ErrSiteDown, err)
	assert.Nil(t, s.WaitForEdges())

	assert.True(t, s.Recover(5))
	assert.False(t, s.Recover(6))
	assert.Equal(t, []types.Timestamp{3}, s.FailureHistory())
	assert.Equal(t, []types.Timestamp{5}, s.RecoveryHistory())

	// The uncommitted write did not survive and no lock is held.
	assert.Equal(t, lock.ModeIdle, s.LockMode(1, 2))
	v, _ := s.DumpVariable(2)
	assert.Equal(t, 20, v)

	// Non-replicated variables are readable again, replicated ones are not.
	assert.True(t, s.UpToDate(1))
	assert.False(t, s.UpToDate(2))
	assert.False(t, s.AcquireReadLock(2, 2))
	entry, ok := s.Lock(2)
	assert.False(t, ok, "a stale read must not queue")
	assert.Nil(t, entry)

	// A committed write refreshes the copy.
	require.True(t, s.AcquireWriteLock(3, 2))
	require.NoError(t, s.Write(write(3, 2, 55)))
	s.Commit(3, 7)
	assert.True(t, s.UpToDate(2))
	require.True(t, s.AcquireReadLock(4, 2))
	v, err = s.Read(read(4, 2))
	require.NoError(t, err)
	assert.Equal(t, 55, v)
}

func TestReadOnlySnapshot(t *testing.T) {
	s := newTestSite(2)
	require.True(t, s.AcquireWriteLock(1, 2))
	require.NoError(t, s.Write(write(1, 2, 55)))
	s.Commit(1, 3)

	v, err := s.ReadOnly(readOnly(9, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	v, err = s.ReadOnly(readOnly(9, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, 55, v)

	s.Fail(5)
	s.Recover(6)

	// Every version of x2 predates the failure at 5.
	_, err = s.ReadOnly(readOnly(9, 2, 7))
	assert.Equal(t, ErrNoVisibleVersion, err)
	assert.True(t, IsRetryable(err))
	// A snapshot taken before the failure is unaffected by it.
	v, err = s.ReadOnly(readOnly(9, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, 55, v)
	// Non-replicated variables ignore failures.
	v, err = s.ReadOnly(readOnly(9, 1, 7))
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = s.ReadOnly(readOnly(9, 3, 7))
	assert.Equal(t, ErrNotResident, err)
}

func TestRevertLock(t *testing.T) {
	s := newTestSite(1)
	prev := s.LockMode(1, 2)
	require.True(t, s.AcquireWriteLock(1, 2))
	s.RevertLock(1, 2, prev)
	assert.Equal(t, lock.ModeIdle, s.LockMode(1, 2))
	assert.True(t, s.AcquireWriteLock(2, 2))
}

func TestSiteWaitForEdges(t *testing.T) {
	s := newTestSite(1)
	require.True(t, s.AcquireWriteLock(1, 2))
	assert.False(t, s.AcquireWriteLock(2, 2))
	assert.Equal(t, []lock.Edge{{Waiter: 2, Holder: 1}}, s.WaitForEdges())
}
