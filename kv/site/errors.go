package site

import (
	"fmt"

	"github.com/pingcap-incubator/tinyrep/kv/transaction/lock"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap/errors"
)

// ErrLockNotHeld is returned when a transaction reads or writes a variable without
// holding the lock the access needs. The coordinator always locks first, so this
// is a protocol violation rather than a retryable condition.
type ErrLockNotHeld struct {
	Site types.SiteID
	Txn  types.TxnID
	Var  types.VarID
	Need lock.Mode
}

func (e *ErrLockNotHeld) Error() string {
	return fmt.Sprintf("%v accesses %v at site %d without a %v lock", e.Txn, e.Var, e.Site, e.Need)
}

var (
	ErrSiteDown         = errors.New("site is down")
	ErrNotResident      = errors.New("variable is not stored at this site")
	ErrStale            = errors.New("variable is not up to date since recovery")
	ErrNoVisibleVersion = errors.New("no committed version is visible at the read timestamp")
)

// IsRetryable reports whether err only means the access should be tried again
// later or at another site.
func IsRetryable(err error) bool {
	switch errors.Cause(err) {
	case ErrSiteDown, ErrNotResident, ErrStale, ErrNoVisibleVersion:
		return true
	}
	return false
}
