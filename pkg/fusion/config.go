package fusion

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/cgfuse/cgfuse/pkg/errors"
)

// DefaultConfigName is the config file looked up next to the challenge
// manifest when --config is not given.
const DefaultConfigName = "cgfuse.toml"

// Config is the optional per-challenge configuration file. It persists the
// answers a user gives in the impl-item dialog so repeated runs need no
// interaction, and can pin the target platform.
type Config struct {
	// Platform selects the crate allow-list ("codingame" or "other").
	Platform string `toml:"platform,omitempty"`

	// SupportedCrates lists the allowed external crates when Platform is
	// "other".
	SupportedCrates []string `toml:"supported-crates,omitempty"`

	// IncludeImplItems and ExcludeImplItems record impl-item decisions as
	// Type::item paths. Include wins over exclude.
	IncludeImplItems []string `toml:"include-impl-items,omitempty"`
	ExcludeImplItems []string `toml:"exclude-impl-items,omitempty"`

	path string
}

// LoadConfig reads the config file at path. A missing file is not an
// error: it yields a zero config that remembers the path for a later
// [Config.Save].
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "cannot read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "cannot parse config %s", path)
	}
	return cfg, nil
}

// ConfigPathFor returns the default config location for a challenge
// manifest.
func ConfigPathFor(manifestPath string) string {
	return filepath.Join(filepath.Dir(manifestPath), DefaultConfigName)
}

// Path returns where the config was loaded from or will be saved to.
func (c *Config) Path() string { return c.path }

// Save writes the config back to its path.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New(errors.ErrCodeConfig, "config has no file path")
	}
	f, err := os.Create(c.path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "cannot write config %s", c.path)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeConfig, err, "cannot encode config %s", c.path)
	}
	return f.Close()
}

// ResolvePlatform returns the platform the config selects, falling back
// to CodinGame when unset.
func (c *Config) ResolvePlatform() (Platform, error) {
	switch c.Platform {
	case "", PlatformCodinGame:
		return CodinGame(), nil
	case PlatformOther:
		if len(c.SupportedCrates) == 0 {
			return Platform{}, errors.New(errors.ErrCodeConfig,
				"platform %q needs a supported-crates list", PlatformOther)
		}
		return NewPlatform(PlatformOther, c.SupportedCrates), nil
	default:
		return Platform{}, errors.New(errors.ErrCodeConfig, "unknown platform %q", c.Platform)
	}
}

// IncludesImplItem reports whether the config pins the impl item in.
func (c *Config) IncludesImplItem(path string) bool {
	return containsPath(c.IncludeImplItems, path)
}

// ExcludesImplItem reports whether the config pins the impl item out.
// Include wins when both lists name the same item.
func (c *Config) ExcludesImplItem(path string) bool {
	return !c.IncludesImplItem(path) && containsPath(c.ExcludeImplItems, path)
}

// RecordImplItem appends a fresh decision unless one is already present.
func (c *Config) RecordImplItem(path string, include bool) {
	if containsPath(c.IncludeImplItems, path) || containsPath(c.ExcludeImplItems, path) {
		return
	}
	if include {
		c.IncludeImplItems = append(c.IncludeImplItems, path)
	} else {
		c.ExcludeImplItems = append(c.ExcludeImplItems, path)
	}
}

func containsPath(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}
