package transaction

import (
	"testing"

	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBegin(t *testing.T) {
	r := NewRegistry()
	txn, err := r.Begin(1, 0, false)
	require.NoError(t, err)
	assert.Equal(t, types.Timestamp(0), txn.StartTS)

	_, err = r.Begin(1, 3, true)
	_, ok := errors.Cause(err).(*ErrTxnExists)
	assert.True(t, ok)

	_, err = r.Begin(3, 4, true)
	require.NoError(t, err)
	_, err = r.Begin(2, 5, false)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	active := r.Active()
	assert.Equal(t, types.TxnID(1), active[0].ID)
	assert.Equal(t, types.TxnID(2), active[1].ID)
	assert.Equal(t, types.TxnID(3), active[2].ID)

	r.Remove(1)
	_, ok = r.Get(1)
	assert.False(t, ok)
	_, err = r.Begin(1, 6, false)
	assert.NoError(t, err)
}

func TestTxnSites(t *testing.T) {
	txn := newTxn(1, 0, false)
	txn.Contact(4)
	txn.Visit(2)
	txn.Visit(7)
	txn.Contact(2)

	assert.True(t, txn.Visited(2))
	assert.False(t, txn.Visited(4))
	assert.Equal(t, []types.SiteID{2, 7}, txn.VisitedSites())
	assert.Equal(t, []types.SiteID{2, 4, 7}, txn.Sites())

	assert.False(t, txn.Aborting())
	txn.MarkAborting()
	assert.True(t, txn.Aborting())
}
