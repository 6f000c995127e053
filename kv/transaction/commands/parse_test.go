package commands

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		cmd  Command
	}{
		{"begin(T1)", Begin{Txn: 1}},
		{"beginRO(T12)", Begin{Txn: 12, ReadOnly: true}},
		{"end(T3)", End{Txn: 3}},
		{"fail(10)", Fail{Site: 10}},
		{"recover(2)", Recover{Site: 2}},
		{"dump()", DumpAll{}},
		{"dump(x4)", DumpVariable{Var: 4}},
		{"dump(3)", DumpSite{Site: 3}},
		{"R(T1,x2)", Read{Txn: 1, Var: 2}},
		{"W(T2, x3, -50)", Write{Txn: 2, Var: 3, Value: -50}},
		{"  W( T2 ,x3,50 ) // a comment", Write{Txn: 2, Var: 3, Value: 50}},
	}
	for _, c := range cases {
		cmd, err := Parse(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.cmd, cmd, c.line)
	}
}

func TestParseBlank(t *testing.T) {
	for _, line := range []string{"", "   ", "// only a comment", "\t"} {
		cmd, err := Parse(line)
		assert.NoError(t, err)
		assert.Nil(t, cmd)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, line := range []string{
		"begin",
		"begin(1)",
		"begin(T1,T2)",
		"R(T1)",
		"W(T1,x2)",
		"W(T1,x2,abc)",
		"fail(x1)",
		"dump(1,2)",
		"commit(T1)",
		"R(T0,x1)",
	} {
		cmd, err := Parse(line)
		assert.Nil(t, cmd, line)
		_, ok := err.(*ParseError)
		assert.True(t, ok, line)
	}
}

func TestScriptSource(t *testing.T) {
	src := NewScriptSource(strings.NewReader("begin(T1)\n\nbogus\nR(T1,x1)\n"))

	cmd, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, Begin{Txn: 1}, cmd)

	// Blank and malformed lines still produce a tick.
	cmd, err = src.Next()
	require.NoError(t, err)
	assert.Nil(t, cmd)
	cmd, err = src.Next()
	require.NoError(t, err)
	assert.Nil(t, cmd)

	cmd, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, Read{Txn: 1, Var: 1}, cmd)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "beginRO(T2)", Begin{Txn: 2, ReadOnly: true}.String())
	assert.Equal(t, "W(T1,x3,7)", Write{Txn: 1, Var: 3, Value: 7}.String())
	assert.Equal(t, "dump(x4)", DumpVariable{Var: 4}.String())
	assert.Equal(t, "R(T1,x2)", Operation{Kind: OpReadOnly, Txn: 1, Var: 2}.String())
	assert.Equal(t, "read-only", OpReadOnly.String())
}
