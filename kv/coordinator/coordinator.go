package coordinator

import (
	"context"
	"io"

	"github.com/pingcap-incubator/tinyrep/kv/config"
	"github.com/pingcap-incubator/tinyrep/kv/site"
	"github.com/pingcap-incubator/tinyrep/kv/transaction"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/commands"
	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap-incubator/tinyrep/log"
	"github.com/pingcap/errors"
)

// Coordinator is the transaction manager. It owns the sites, the live
// transactions and the buffer of operations that could not run yet, and it
// advances the logical clock by one tick per input line.
//
// A Coordinator is not safe for concurrent use.
type Coordinator struct {
	conf *config.Config
	out  Output

	sites   map[types.SiteID]*site.Site
	siteIDs []types.SiteID
	// hosts maps a variable to the sites holding a copy, in ascending order.
	hosts map[types.VarID][]types.SiteID

	txns    *transaction.Registry
	pending []commands.Operation
	now     types.Timestamp

	// err is the first error returned by out.
	err error
}

func New(conf *config.Config, out Output) *Coordinator {
	c := &Coordinator{
		conf:  conf,
		out:   out,
		sites: make(map[types.SiteID]*site.Site, conf.SiteCount),
		hosts: make(map[types.VarID][]types.SiteID, conf.VariableCount),
		txns:  transaction.NewRegistry(),
	}
	for i := 1; i <= conf.SiteCount; i++ {
		id := types.SiteID(i)
		c.sites[id] = site.New(id, conf)
		c.siteIDs = append(c.siteIDs, id)
	}
	for v := 1; v <= conf.VariableCount; v++ {
		for _, id := range c.siteIDs {
			if conf.Hosts(int(id), v) {
				c.hosts[types.VarID(v)] = append(c.hosts[types.VarID(v)], id)
			}
		}
	}
	return c
}

// Now returns the current logical time.
func (c *Coordinator) Now() types.Timestamp {
	return c.now
}

func (c *Coordinator) Site(id types.SiteID) (*site.Site, bool) {
	s, ok := c.sites[id]
	return s, ok
}

func (c *Coordinator) Txn(id types.TxnID) (*transaction.Txn, bool) {
	return c.txns.Get(id)
}

// Pending returns the buffered operations in submission order.
func (c *Coordinator) Pending() []commands.Operation {
	return append([]commands.Operation(nil), c.pending...)
}

// Run drives the coordinator from src until it is exhausted. Before every line,
// and once more after the last one, deadlocks are resolved. Every line read
// advances the clock, including lines that carry no command.
func (c *Coordinator) Run(ctx context.Context, src commands.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Settle()
		cmd, err := src.Next()
		if err != nil {
			if errors.Cause(err) == io.EOF {
				return c.err
			}
			return errors.Trace(err)
		}
		c.Step(cmd)
		if c.err != nil {
			return c.err
		}
	}
}

// Settle aborts one deadlock victim, if there is a deadlock, and retries the
// pending operations. It reports whether a victim was aborted.
func (c *Coordinator) Settle() bool {
	if !c.resolveDeadlock() {
		return false
	}
	c.execute()
	return true
}

// Step applies cmd, which may be nil, retries the pending operations and
// advances the clock.
func (c *Coordinator) Step(cmd commands.Command) {
	if cmd != nil {
		c.Apply(cmd)
	}
	c.execute()
	c.now++
}

// Apply performs cmd at the current time without retrying pending operations.
func (c *Coordinator) Apply(cmd commands.Command) {
	log.Debugf("t=%d %v", c.now, cmd)
	switch cmd := cmd.(type) {
	case commands.Begin:
		c.Begin(cmd.Txn, cmd.ReadOnly)
	case commands.End:
		c.Finish(cmd.Txn)
	case commands.Fail:
		c.Fail(cmd.Site)
	case commands.Recover:
		c.Recover(cmd.Site)
	case commands.DumpAll:
		c.DumpAll()
	case commands.DumpSite:
		c.DumpSite(cmd.Site)
	case commands.DumpVariable:
		c.DumpVariable(cmd.Var)
	case commands.Read:
		c.submit(cmd.Txn, cmd.Var, commands.OpRead, 0)
	case commands.Write:
		c.submit(cmd.Txn, cmd.Var, commands.OpWrite, cmd.Value)
	default:
		log.Warnf("unsupported command %v", cmd)
	}
}

// Begin starts a transaction at the current time.
func (c *Coordinator) Begin(id types.TxnID, readOnly bool) {
	if _, err := c.txns.Begin(id, c.now, readOnly); err != nil {
		log.Warnf("begin ignored: %v", err)
	}
}

// Finish ends a transaction. A doomed transaction is reported as aborted;
// otherwise its writes are committed at the current time at every site it
// touched.
func (c *Coordinator) Finish(id types.TxnID) {
	txn, ok := c.txns.Get(id)
	if !ok {
		log.Warnf("end ignored: %v is not running", id)
		return
	}
	if txn.Aborting() {
		txnFinishCounter.WithLabelValues("abort").Inc()
		c.emit(AbortResult{Txn: id})
	} else {
		for _, sid := range txn.Sites() {
			if s := c.sites[sid]; s.Up() {
				s.Commit(id, c.now)
			}
		}
		txnFinishCounter.WithLabelValues("commit").Inc()
		c.emit(CommitResult{Txn: id})
	}
	c.txns.Remove(id)
}

// abort dooms txn and rolls back its effects at every up site. Aborting a
// doomed transaction does nothing.
func (c *Coordinator) abort(txn *transaction.Txn) {
	if txn.Aborting() {
		return
	}
	for _, sid := range txn.Sites() {
		if s := c.sites[sid]; s.Up() {
			s.Abort(txn.ID)
		}
	}
	txn.MarkAborting()
	log.Infof("%v will abort", txn.ID)
}

// Fail takes a site down and dooms every read-write transaction that accessed
// it. Read-only transactions are unaffected.
func (c *Coordinator) Fail(id types.SiteID) {
	s, ok := c.sites[id]
	if !ok {
		log.Warnf("fail ignored: site %d does not exist", id)
		return
	}
	if !s.Fail(c.now) {
		log.Warnf("fail ignored: site %d is already down", id)
		return
	}
	siteEventCounter.WithLabelValues("fail").Inc()
	for _, txn := range c.txns.Active() {
		if !txn.ReadOnly && !txn.Aborting() && txn.Visited(id) {
			c.abort(txn)
		}
	}
}

func (c *Coordinator) Recover(id types.SiteID) {
	s, ok := c.sites[id]
	if !ok {
		log.Warnf("recover ignored: site %d does not exist", id)
		return
	}
	if !s.Recover(c.now) {
		log.Warnf("recover ignored: site %d is already up", id)
		return
	}
	siteEventCounter.WithLabelValues("recover").Inc()
}

func (c *Coordinator) DumpAll() {
	var values []SiteValue
	for _, id := range c.siteIDs {
		values = append(values, c.siteValues(id)...)
	}
	c.emit(DumpResult{Values: values})
}

func (c *Coordinator) DumpSite(id types.SiteID) {
	if _, ok := c.sites[id]; !ok {
		log.Warnf("dump ignored: site %d does not exist", id)
		return
	}
	c.emit(DumpResult{Values: c.siteValues(id)})
}

// DumpVariable dumps the committed value of v at every site holding it.
func (c *Coordinator) DumpVariable(v types.VarID) {
	hosts, ok := c.hosts[v]
	if !ok {
		log.Warnf("dump ignored: %v does not exist", v)
		return
	}
	values := make([]SiteValue, 0, len(hosts))
	for _, id := range hosts {
		value, _ := c.sites[id].DumpVariable(v)
		values = append(values, SiteValue{Site: id, Var: v, Value: value})
	}
	c.emit(DumpResult{Values: values})
}

func (c *Coordinator) siteValues(id types.SiteID) []SiteValue {
	dump := c.sites[id].Dump()
	values := make([]SiteValue, 0, len(dump))
	for _, v := range dump {
		values = append(values, SiteValue{Site: id, Var: v.Var, Value: v.Value})
	}
	return values
}

// submit buffers a read or write of a live transaction. Operations of doomed
// transactions are dropped.
func (c *Coordinator) submit(id types.TxnID, v types.VarID, kind commands.OpKind, value int) {
	txn, ok := c.txns.Get(id)
	if !ok {
		log.Warnf("operation ignored: %v is not running", id)
		return
	}
	if _, ok := c.hosts[v]; !ok {
		log.Warnf("operation ignored: %v does not exist", v)
		return
	}
	if txn.Aborting() {
		log.Debugf("%v will abort, operation on %v dropped", id, v)
		return
	}
	if txn.ReadOnly {
		if kind == commands.OpWrite {
			log.Warnf("operation ignored: %v is read-only and cannot write %v", id, v)
			return
		}
		kind = commands.OpReadOnly
	}
	c.pending = append(c.pending, commands.Operation{
		Kind:  kind,
		Txn:   id,
		Var:   v,
		Value: value,
		TS:    txn.StartTS,
	})
	pendingOpsGauge.Set(float64(len(c.pending)))
}

func (c *Coordinator) emit(r Result) {
	if err := c.out.Emit(r); err != nil && c.err == nil {
		c.err = err
	}
}
