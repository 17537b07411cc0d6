// Package config is used to load the patch plan from flags, env and the config file
package config

import (
	"fmt"
	"os"

	"github.com/blacktop/objcpatch/pkg/objcpatch"
	"github.com/spf13/viper"
)

// Config is the configuration struct
type Config struct {
	Quiet   bool
	DryRun  bool
	Exclude []string
	Replace []string
	Seed    uint64
	Map     string
}

func (c *Config) verify() error {
	switch len(c.Replace) {
	case 0:
	case 2:
		if c.Replace[0] == "" {
			return objcpatch.ErrEmptyPattern
		}
		if len(c.Replace[0]) != len(c.Replace[1]) {
			return objcpatch.ErrLengthMismatch
		}
	default:
		return fmt.Errorf("--replace expects exactly 2 values (PATTERN REPLACEMENT), got %d", len(c.Replace))
	}
	return nil
}

// LoadConfig reads the settings stored under prefix (i.e. "objcpatch")
func LoadConfig(v *viper.Viper, prefix string) (*Config, error) {
	key := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	c := &Config{
		Quiet:   v.GetBool(key("quiet")),
		DryRun:  v.GetBool(key("dry-run")),
		Exclude: v.GetStringSlice(key("exclude")),
		Replace: v.GetStringSlice(key("replace")),
		Seed:    v.GetUint64(key("seed")),
		Map:     v.GetString(key("map")),
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %w", err)
	}

	return c, nil
}

// Plan converts the configuration into a patch plan for path.
func (c *Config) Plan(path string) (*objcpatch.Plan, error) {
	if info, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s does not exist", path)
	} else if err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	p := &objcpatch.Plan{
		Path:    path,
		Quiet:   c.Quiet,
		DryRun:  c.DryRun,
		Exclude: objcpatch.NewExcludeSet(c.Exclude),
		Seed:    c.Seed,
		MapFile: c.Map,
	}
	if len(c.Replace) == 2 {
		p.Pattern = c.Replace[0]
		p.Replacement = c.Replace[1]
	}

	return p, p.Validate()
}
