package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPlacement(t *testing.T) {
	c := NewDefaultConfig()
	require.NoError(t, c.Validate())

	assert.True(t, c.IsReplicated(2))
	assert.False(t, c.IsReplicated(3))
	assert.Equal(t, 2, c.HomeSite(1))
	assert.Equal(t, 4, c.HomeSite(3))
	assert.Equal(t, 10, c.HomeSite(19))
	assert.Equal(t, 1, c.HomeSite(10))

	assert.True(t, c.Hosts(7, 4))
	assert.True(t, c.Hosts(4, 3))
	assert.False(t, c.Hosts(5, 3))
	assert.Equal(t, 150, c.InitialValue(15))
}

func TestValidate(t *testing.T) {
	c := NewTestConfig()
	c.SiteCount = 0
	assert.Error(t, c.Validate())

	c = NewTestConfig()
	c.VariableCount = -1
	assert.Error(t, c.Validate())

	c = NewTestConfig()
	c.LogFile = "tinyrep.log"
	c.LogMaxSizeMB = 0
	assert.Error(t, c.Validate())
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinyrep-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tinyrep.toml")
	content := `
site-count = 4
variable-count = 8
atomic-write-locks = true
log-level = "debug"
no-such-key = 1
`
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.SiteCount)
	assert.Equal(t, 8, c.VariableCount)
	assert.True(t, c.AtomicWriteLocks)
	assert.Equal(t, "debug", c.LogLevel)
	// Keys missing from the file keep their defaults.
	assert.Equal(t, 10, c.InitialValueFactor)

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
