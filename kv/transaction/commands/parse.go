package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pingcap-incubator/tinyrep/kv/types"
	"github.com/pingcap-incubator/tinyrep/log"
	"github.com/pingcap/errors"
)

// ParseError describes a script line that is not a valid command.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Line, e.Reason)
}

// Parse decodes one script line. Whitespace is insignificant and everything
// after "//" is a comment. Parse returns a nil Command for blank lines.
func Parse(line string) (Command, error) {
	raw := line
	if idx := strings.Index(line, "//"); idx != -1 {
		line = line[:idx]
	}
	line = strings.Join(strings.Fields(line), "")
	if len(line) == 0 {
		return nil, nil
	}

	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return nil, &ParseError{Line: raw, Reason: "expected name(args)"}
	}
	name := line[:open]
	body := line[open+1 : len(line)-1]
	var args []string
	if body != "" {
		args = strings.Split(body, ",")
	}

	fail := func(reason string) (Command, error) {
		return nil, &ParseError{Line: raw, Reason: reason}
	}
	want := func(n int) bool { return len(args) == n }

	switch name {
	case "begin", "beginRO":
		if !want(1) {
			return fail(name + " takes one transaction")
		}
		txn, err := parseTxn(args[0])
		if err != nil {
			return fail(err.Error())
		}
		return Begin{Txn: txn, ReadOnly: name == "beginRO"}, nil
	case "end":
		if !want(1) {
			return fail("end takes one transaction")
		}
		txn, err := parseTxn(args[0])
		if err != nil {
			return fail(err.Error())
		}
		return End{Txn: txn}, nil
	case "fail", "recover":
		if !want(1) {
			return fail(name + " takes one site")
		}
		site, err := parseSite(args[0])
		if err != nil {
			return fail(err.Error())
		}
		if name == "fail" {
			return Fail{Site: site}, nil
		}
		return Recover{Site: site}, nil
	case "dump":
		switch {
		case want(0):
			return DumpAll{}, nil
		case !want(1):
			return fail("dump takes at most one argument")
		case strings.HasPrefix(args[0], "x"):
			id, err := parseVar(args[0])
			if err != nil {
				return fail(err.Error())
			}
			return DumpVariable{Var: id}, nil
		}
		site, err := parseSite(args[0])
		if err != nil {
			return fail(err.Error())
		}
		return DumpSite{Site: site}, nil
	case "R":
		if !want(2) {
			return fail("R takes a transaction and a variable")
		}
		txn, err := parseTxn(args[0])
		if err != nil {
			return fail(err.Error())
		}
		id, err := parseVar(args[1])
		if err != nil {
			return fail(err.Error())
		}
		return Read{Txn: txn, Var: id}, nil
	case "W":
		if !want(3) {
			return fail("W takes a transaction, a variable and a value")
		}
		txn, err := parseTxn(args[0])
		if err != nil {
			return fail(err.Error())
		}
		id, err := parseVar(args[1])
		if err != nil {
			return fail(err.Error())
		}
		value, err := strconv.Atoi(args[2])
		if err != nil {
			return fail(fmt.Sprintf("bad value %q", args[2]))
		}
		return Write{Txn: txn, Var: id, Value: value}, nil
	}
	return fail(fmt.Sprintf("unknown command %q", name))
}

func parseID(s string, prefix string) (int, error) {
	if !strings.HasPrefix(s, prefix) {
		return 0, errors.Errorf("%q should start with %s", s, prefix)
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil || n <= 0 {
		return 0, errors.Errorf("bad id %q", s)
	}
	return n, nil
}

func parseTxn(s string) (types.TxnID, error) {
	n, err := parseID(s, "T")
	return types.TxnID(n), err
}

func parseVar(s string) (types.VarID, error) {
	n, err := parseID(s, "x")
	return types.VarID(n), err
}

func parseSite(s string) (types.SiteID, error) {
	n, err := parseID(s, "")
	return types.SiteID(n), err
}

// Source yields decoded commands, one per logical tick. A nil Command with a
// nil error is a line that carries no command (blank, comment or malformed);
// it still consumes a tick. Next returns io.EOF when input is exhausted.
type Source interface {
	Next() (Command, error)
}

// LineReader returns the next raw line, or io.EOF.
type LineReader interface {
	ReadLine() (string, error)
}

// LineSource parses the lines of a LineReader. Malformed lines are logged and
// yield a nil Command.
type LineSource struct {
	r    LineReader
	line int
}

func NewLineSource(r LineReader) *LineSource {
	return &LineSource{r: r}
}

func (s *LineSource) Next() (Command, error) {
	text, err := s.r.ReadLine()
	if err != nil {
		if errors.Cause(err) == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Trace(err)
	}
	s.line++
	cmd, err := Parse(text)
	if err != nil {
		log.Warnf("line %d ignored: %v", s.line, err)
		return nil, nil
	}
	return cmd, nil
}

type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// NewScriptSource reads commands from the lines of r.
func NewScriptSource(r io.Reader) *LineSource {
	return NewLineSource(&scannerReader{scanner: bufio.NewScanner(r)})
}
