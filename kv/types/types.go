package types

import "fmt"

// TxnID identifies a transaction, Tn in a script.
type TxnID int

// VarID identifies a variable, xk in a script.
type VarID int

// SiteID identifies a site. Site ids start from 1.
type SiteID int

// Timestamp is a logical clock value. The clock advances by one for every
// consumed input line, starting from 0.
type Timestamp int

// InitialTS is the commit timestamp of the versions every site starts with.
// It precedes all logical ticks.
const InitialTS Timestamp = -1

func (t TxnID) String() string {
	return fmt.Sprintf("T%d", int(t))
}

func (v VarID) String() string {
	return fmt.Sprintf("x%d", int(v))
}
