package coordinator

import (
	"fmt"
	"io"
	"strings"

	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap/errors"
)

// Result is something the coordinator reports to the user.
type Result interface {
	fmt.Stringer
	result()
}

// ReadResult is the value returned by a successful read. Site is the site that
// served it.
type ReadResult struct {
	Txn   types.TxnID
	Var   types.VarID
	Value int
	Site  types.SiteID
}

type CommitResult struct {
	Txn types.TxnID
}

type AbortResult struct {
	Txn types.TxnID
}

// SiteValue is the committed value of a variable at a site.
type SiteValue struct {
	Site  types.SiteID
	Var   types.VarID
	Value int
}

// DumpResult holds committed values ordered by site, then variable.
type DumpResult struct {
	Values []SiteValue
}

func (ReadResult) result()   {}
func (CommitResult) result() {}
func (AbortResult) result()  {}
func (DumpResult) result()   {}

func (r ReadResult) String() string   { return fmt.Sprintf("%v: %d", r.Var, r.Value) }
func (r CommitResult) String() string { return fmt.Sprintf("%v commits", r.Txn) }
func (r AbortResult) String() string  { return fmt.Sprintf("%v aborts", r.Txn) }

// String renders one line per site, e.g. "site 1 - x2: 20, x4: 40".
func (r DumpResult) String() string {
	var (
		b     strings.Builder
		site  types.SiteID
		first = true
	)
	for _, v := range r.Values {
		if first || v.Site != site {
			if !first {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "site %d - %v: %d", v.Site, v.Var, v.Value)
			site, first = v.Site, false
			continue
		}
		fmt.Fprintf(&b, ", %v: %d", v.Var, v.Value)
	}
	return b.String()
}

// Output consumes results in the order they happen.
type Output interface {
	Emit(Result) error
}

// TextOutput writes every result as text lines.
type TextOutput struct {
	w io.Writer
}

func NewTextOutput(w io.Writer) *TextOutput {
	return &TextOutput{w: w}
}

func (o *TextOutput) Emit(r Result) error {
	text := r.String()
	if text == "" {
		return nil
	}
	_, err := io.WriteString(o.w, text+"\n")
	return errors.Trace(err)
}

// MemOutput keeps results in memory.
type MemOutput struct {
	Results []Result
}

func (o *MemOutput) Emit(r Result) error {
	o.Results = append(o.Results, r)
	return nil
}

// Lines returns the text form of every result, one entry per line.
func (o *MemOutput) Lines() []string {
	var lines []string
	for _, r := range o.Results {
		if text := r.String(); text != "" {
			lines = append(lines, strings.Split(text, "\n")...)
		}
	}
	return lines
}
