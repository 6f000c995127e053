package commands

import (
	"fmt"

	"github.com/pingcap-incubator/tinyrep/kv/types"
)

type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
	// OpReadOnly is a read issued by a read-only transaction. It is served from
	// the version history and takes no locks.
	OpReadOnly
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReadOnly:
		return "read-only"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Operation is a read or write waiting to be executed against the sites. TS is
// the start timestamp of the issuing transaction.
type Operation struct {
	Kind  OpKind
	Txn   types.TxnID
	Var   types.VarID
	Value int
	TS    types.Timestamp
}

func (op Operation) String() string {
	if op.Kind == OpWrite {
		return fmt.Sprintf("W(%v,%v,%d)", op.Txn, op.Var, op.Value)
	}
	return fmt.Sprintf("R(%v,%v)", op.Txn, op.Var)
}

// Command is one decoded script line.
type Command interface {
	fmt.Stringer
	command()
}

// Begin starts a transaction; beginRO(Tn) sets ReadOnly.
type Begin struct {
	Txn      types.TxnID
	ReadOnly bool
}

// End commits the transaction, or reports its abort.
type End struct {
	Txn types.TxnID
}

type Fail struct {
	Site types.SiteID
}

type Recover struct {
	Site types.SiteID
}

// DumpAll dumps the committed values of every site.
type DumpAll struct{}

type DumpSite struct {
	Site types.SiteID
}

// DumpVariable dumps the committed value of a variable at every site holding it.
type DumpVariable struct {
	Var types.VarID
}

type Read struct {
	Txn types.TxnID
	Var types.VarID
}

type Write struct {
	Txn   types.TxnID
	Var   types.VarID
	Value int
}

func (Begin) command()        {}
func (End) command()          {}
func (Fail) command()         {}
func (Recover) command()      {}
func (DumpAll) command()      {}
func (DumpSite) command()     {}
func (DumpVariable) command() {}
func (Read) command()         {}
func (Write) command()        {}

func (c Begin) String() string {
	if c.ReadOnly {
		return fmt.Sprintf("beginRO(%v)", c.Txn)
	}
	return fmt.Sprintf("begin(%v)", c.Txn)
}

func (c End) String() string          { return fmt.Sprintf("end(%v)", c.Txn) }
func (c Fail) String() string         { return fmt.Sprintf("fail(%d)", c.Site) }
func (c Recover) String() string      { return fmt.Sprintf("recover(%d)", c.Site) }
func (DumpAll) String() string        { return "dump()" }
func (c DumpSite) String() string     { return fmt.Sprintf("dump(%d)", c.Site) }
func (c DumpVariable) String() string { return fmt.Sprintf("dump(%v)", c.Var) }
func (c Read) String() string         { return fmt.Sprintf("R(%v,%v)", c.Txn, c.Var) }
func (c Write) String() string        { return fmt.Sprintf("W(%v,%v,%d)", c.Txn, c.Var, c.Value) }
