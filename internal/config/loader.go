package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for in the
// current and home directories.
const DefaultConfigFile = ".deepcrawl"

// LoadConfigFile reads a YAML configuration file. Keys missing from the
// file keep their default values. It returns ErrConfigNotFound when the
// file does not exist.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := NewFile()
	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, err
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return cf, nil
}

// FindConfigFile returns the configuration file to load, or "" when none
// exists. The search order is configPath when given, ./.deepcrawl,
// ~/.deepcrawl and finally config.yaml in the XDG config directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyFile copies the file sections into c and keeps the file for
// per-site lookups. Call it before applying CLI flags.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.Crawl = cf.Crawl
	c.RateLimit = cf.RateLimit
	c.Proxies = cf.Proxies
	c.Dispatcher = cf.Dispatcher
	c.Scoring = cf.Scoring
	c.SiteConfigs = cf
}
