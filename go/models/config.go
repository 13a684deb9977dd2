package models

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

const configName = "config.toml"

type Config struct {
	Color   bool `toml:"color"`
	Verbose bool `toml:"verbose"`

	ForceBase       uint64 `toml:"base"`
	ForceInterpBase uint64 `toml:"interp_base"`
	LoadPrefix      string `toml:"prefix"`
	StackSize       uint64 `toml:"stack_size"`
	// AT_HWCAP override, zero uses the host mask
	Hwcap uint64 `toml:"hwcap"`
	// non-empty seeds AT_RANDOM deterministically
	Seed string `toml:"seed"`
	// extra environment entries appended before launch
	Env []string `toml:"env"`
}

// DefaultConfigPath returns the first config.toml found in the user or system config folders.
func DefaultConfigPath() string {
	dirs := configdir.New("lunixbochs", "elfhost")
	if folder := dirs.QueryFolderContainsFile(configName); folder != nil {
		return filepath.Join(folder.Path, configName)
	}
	return ""
}

// LoadConfig decodes a TOML file over the provided defaults.
func LoadConfig(path string, c *Config) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return errors.Errorf("%s: unknown config keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// same limit as the kernel's MAXSYMLINKS
const maxSymlinks = 40

func (c *Config) resolveSymlink(path, target string, force bool, depth int) (string, error) {
	link, err := os.Lstat(target)
	if err == nil && link.Mode()&os.ModeSymlink != 0 {
		if linked, err := os.Readlink(target); err == nil {
			if depth >= maxSymlinks {
				return "", errors.Wrapf(syscall.ELOOP, "%s", path)
			}
			// relative links stay inside the prefix
			if !filepath.IsAbs(linked) {
				linked = filepath.Join(filepath.Dir(path), linked)
			}
			return c.prefixPath(linked, force, depth+1)
		}
	}
	exists := !os.IsNotExist(err)
	if force || exists {
		return target, nil
	}
	return path, nil
}

// PrefixPath maps an absolute guest path into LoadPrefix, following symlinks inside the prefix.
// Without force, paths missing from the prefix fall back to the host path.
func (c *Config) PrefixPath(path string, force bool) (string, error) {
	return c.prefixPath(path, force, 0)
}

func (c *Config) prefixPath(path string, force bool, depth int) (string, error) {
	if c.LoadPrefix == "" {
		return path, nil
	}
	target := path
	if filepath.IsAbs(path) {
		target = filepath.Join(c.LoadPrefix, path)
	}
	return c.resolveSymlink(path, target, force, depth)
}

// Resolve opens path through the load prefix.
func (c *Config) Resolve(path string) (File, error) {
	host, err := c.PrefixPath(path, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(host)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return f, nil
}
