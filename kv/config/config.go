package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinyrep/log"
	"github.com/pingcap/errors"
)

type Config struct {
	// Number of sites. Site ids run from 1 to SiteCount.
	SiteCount int `toml:"site-count"`
	// Number of variables. Variable ids run from 1 to VariableCount; even ids are
	// replicated at every site, odd id i lives at site 1 + i%SiteCount.
	VariableCount int `toml:"variable-count"`
	// Variable i starts with the value InitialValueFactor*i.
	InitialValueFactor int `toml:"initial-value-factor"`

	// AtomicWriteLocks releases the write locks granted by a write attempt that
	// was denied at some other site. Off by default, which keeps granted locks
	// until the transaction ends.
	AtomicWriteLocks bool `toml:"atomic-write-locks"`

	LogLevel string `toml:"log-level"`
	// Log to this file instead of stderr. Rotated by size.
	LogFile       string `toml:"log-file"`
	LogMaxSizeMB  int    `toml:"log-max-size"`
	LogMaxBackups int    `toml:"log-max-backups"`

	// If set, prometheus metrics are served on http://StatusAddr/metrics.
	StatusAddr string `toml:"status-addr"`
}

func (c *Config) Validate() error {
	if c.SiteCount <= 0 {
		return errors.Errorf("site count must be greater than 0, got %d", c.SiteCount)
	}
	if c.VariableCount <= 0 {
		return errors.Errorf("variable count must be greater than 0, got %d", c.VariableCount)
	}
	if c.VariableCount < 2 && c.SiteCount > 1 {
		log.Warnf("no replicated variable exists with variable count %d", c.VariableCount)
	}
	if c.LogFile != "" && c.LogMaxSizeMB <= 0 {
		return errors.Errorf("log max size must be greater than 0 when logging to %s", c.LogFile)
	}
	return nil
}

// IsReplicated reports whether variable id lives at every site.
func (c *Config) IsReplicated(id int) bool {
	return id%2 == 0
}

// HomeSite is the only site holding the non-replicated variable id.
func (c *Config) HomeSite(id int) int {
	return 1 + id%c.SiteCount
}

// Hosts reports whether site holds a copy of variable id.
func (c *Config) Hosts(site, id int) bool {
	return c.IsReplicated(id) || c.HomeSite(id) == site
}

func (c *Config) InitialValue(id int) int {
	return c.InitialValueFactor * id
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		SiteCount:          10,
		VariableCount:      20,
		InitialValueFactor: 10,
		LogLevel:           getLogLevel(),
		LogMaxSizeMB:       64,
		LogMaxBackups:      3,
	}
}

func NewTestConfig() *Config {
	c := NewDefaultConfig()
	c.LogLevel = "warn"
	return c
}

// LoadFile overlays the TOML file at path onto the default config. Unknown keys
// are logged and otherwise ignored.
func LoadFile(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		log.Warnf("config %s contains unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return c, nil
}
